// Copyright 2026 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
package kv

import (
	"time"

	"github.com/bmatsuo/lmdb-go/lmdb"

	"github.com/northerntech/lmdbkv/kv/dbmetrics"
)

// txnState tracks where a Txn sits in its lifecycle, per spec §4.6's
// READY/DONE/RESET state machine (RELEASED added here to mark that the Env
// reference slot has been returned). Commit moves a READY Txn, and Abort a
// READY or RESET one, straight to RELEASED, so the slot is returned once and
// never twice.
type txnState int32

const (
	txnReady txnState = iota
	txnDone
	txnReset
	txnReleased
)

// Txn wraps one native transaction. A read-write Txn is exclusive: the
// engine blocks a second concurrent BeginTxn(nil, write) on the same Env
// until this one ends, matching the single-writer model in spec §2.
type Txn[T any] struct {
	env      *Env[T]
	raw      *lmdb.Txn
	release  releaser
	readOnly bool
	state    txnState
	kv       *KeyVal[T]
}

// ReadOnly reports whether this Txn was opened read-only.
func (t *Txn[T]) ReadOnly() bool { return t.readOnly }

// ID returns the Txn's identifier, usable to tell whether a snapshot it
// observed is still current.
func (t *Txn[T]) ID() uintptr { return uintptr(t.raw.ID()) }

func (t *Txn[T]) checkReady() error {
	if t.state != txnReady {
		return ErrTxnNotReady
	}
	return nil
}

// finish releases the Env's reference-counter slot exactly once, whether the
// caller reaches it via Commit or Abort.
func (t *Txn[T]) finish() {
	if t.state == txnReleased {
		return
	}
	t.kv.Close()
	if t.release != nil {
		t.release.release()
	}
	dbmetrics.ReleaseReaderSlot()
	t.state = txnReleased
}

// Commit finalizes the transaction's writes. Calling Commit a second time,
// or calling it after Abort, returns ErrCommitted.
func (t *Txn[T]) Commit() error {
	if t.state != txnReady {
		return ErrCommitted
	}
	start := time.Now()
	err := translate(t.raw.Commit())
	if err == nil {
		dbmetrics.RecordCommit(time.Since(start))
	}
	t.finish()
	return err
}

// Abort discards the transaction's writes (a no-op for a read-only Txn
// beyond releasing its reader slot). Safe to call more than once.
func (t *Txn[T]) Abort() {
	if t.state == txnReleased {
		return
	}
	t.raw.Abort()
	dbmetrics.RecordAbort()
	t.finish()
}

// Reset parks a read-only Txn so it can later be cheaply Renew'd without
// acquiring a fresh reader slot from scratch (spec §4.6). Only legal on a
// read-only Txn currently in READY state.
func (t *Txn[T]) Reset() error {
	if !t.readOnly {
		return ErrReadOnly
	}
	if err := t.checkReady(); err != nil {
		return err
	}
	t.raw.Reset()
	t.state = txnReset
	return nil
}

// Renew reactivates a Txn previously parked with Reset, giving it a new
// consistent snapshot. Only legal while in RESET state.
func (t *Txn[T]) Renew() error {
	if t.state != txnReset {
		return ErrNotReset
	}
	if err := translate(t.raw.Renew()); err != nil {
		return err
	}
	t.state = txnReady
	return nil
}

func (t *Txn[T]) openRootRaw() (lmdb.DBI, error) {
	dbi, err := t.raw.OpenRoot(0)
	if err != nil {
		return 0, translate(err)
	}
	return dbi, nil
}

// OpenDbi opens (or, with DbiCreate set, creates) a named Dbi scoped to this
// transaction using the DEFAULT comparator policy. name == nil opens the
// environment's root database. The Txn must still be READY and read-write
// if DbiCreate is set.
func (t *Txn[T]) OpenDbi(name []byte, flags FlagSet) (*Dbi[T], error) {
	if err := t.checkReady(); err != nil {
		return nil, err
	}
	raw, err := openRawDbi(t.raw, name, flags)
	if err != nil {
		return nil, err
	}
	return &Dbi[T]{
		env:    t.env,
		raw:    raw,
		flags:  flags,
		policy: ComparatorDefault,
		cmp:    t.env.proxy.Comparator(flags),
		name:   name,
	}, nil
}

func openRawDbi(txn *lmdb.Txn, name []byte, flags FlagSet) (lmdb.DBI, error) {
	if name == nil {
		dbi, err := txn.OpenRoot(flags.Mask())
		if err != nil {
			return 0, translate(err)
		}
		return dbi, nil
	}
	dbi, err := txn.OpenDBI(string(name), flags.Mask())
	if err != nil {
		return 0, translate(err)
	}
	return dbi, nil
}
