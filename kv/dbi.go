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

import "github.com/bmatsuo/lmdb-go/lmdb"

// ComparatorPolicy selects how a Dbi's ordering is decided, per spec §4.5.
// The underlying engine binding (bmatsuo/lmdb-go) does not expose a hook to
// install a custom native mdb_cmp callback -- installing one is inherently
// unsafe across the cgo boundary and the binding deliberately omits it -- so
// every policy here shares the same on-disk order (driven purely by DbiFlag
// bits such as DbiReverseKey/DbiIntegerKey) and differs only in which
// Comparator governs host-side range-window tests (KeyRange bound checks,
// Spliterator boundary checks).
type ComparatorPolicy int

const (
	// ComparatorDefault uses the proxy's built-in comparator for the given
	// flags (signed lexicographic, or unsigned integer order under
	// DbiIntegerKey). Correct for every Dbi that does not set a flag the
	// proxy doesn't already account for.
	ComparatorDefault ComparatorPolicy = iota

	// ComparatorNative documents, rather than changes, behavior: the caller
	// is asserting that the DbiFlag bits alone select the desired native
	// order (e.g. DbiReverseKey) and the proxy's default comparator matches
	// it. It exists so call sites can be explicit about the intent even
	// though no distinct code path is required.
	ComparatorNative

	// ComparatorCallback installs a caller-supplied Comparator used for
	// host-side range-window filtering only; it cannot reorder on-disk
	// storage. Use this when iteration needs a notion of order the stored
	// bytes' native comparator doesn't directly express (e.g. comparing by
	// a decoded suffix).
	ComparatorCallback

	// ComparatorIterator is like Callback, but documents that the supplied
	// Comparator is evaluated lazily, only when a Spliterator actually needs
	// to test a boundary, rather than up front.
	ComparatorIterator
)

// Dbi is a handle to one named (or the root, unnamed) database within an
// Env. It is safe to share across goroutines: every operation takes an
// explicit Txn, and LMDB itself serializes writers.
type Dbi[T any] struct {
	env    *Env[T]
	raw    lmdb.DBI
	flags  FlagSet
	policy ComparatorPolicy
	cmp    Comparator
	name   []byte
}

// Name returns the Dbi's name, or nil for the root database.
func (d *Dbi[T]) Name() []byte { return d.name }

// Flags returns the DbiFlag bits this Dbi was opened with.
func (d *Dbi[T]) Flags() FlagSet { return d.flags }

// Comparator returns the Comparator used for this Dbi's host-side range
// tests (see ComparatorPolicy).
func (d *Dbi[T]) Comparator() Comparator { return d.cmp }

// DbiBuilder is the staged builder spec §4.5 requires: callers must name a
// comparator policy explicitly via Default/Native/Callback/Iterator rather
// than getting one silently, so the choice always shows up at the call
// site.
type DbiBuilder[T any] struct {
	env   *Env[T]
	name  []byte
	flags FlagSet
}

func (b *DbiBuilder[T]) WithName(name []byte) *DbiBuilder[T] {
	b.name = name
	return b
}

func (b *DbiBuilder[T]) WithFlags(flags FlagSet) *DbiBuilder[T] {
	b.flags = flags
	return b
}

func (b *DbiBuilder[T]) open(policy ComparatorPolicy, cmp Comparator) (*Dbi[T], error) {
	txn, err := b.env.TxnWrite()
	if err != nil {
		return nil, err
	}
	raw, err := openRawDbi(txn.raw, b.name, b.flags)
	if err != nil {
		txn.Abort()
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	if cmp == nil {
		cmp = b.env.proxy.Comparator(b.flags)
	}
	return &Dbi[T]{
		env:    b.env,
		raw:    raw,
		flags:  b.flags,
		policy: policy,
		cmp:    cmp,
		name:   b.name,
	}, nil
}

// Default opens the Dbi with ComparatorDefault.
func (b *DbiBuilder[T]) Default() (*Dbi[T], error) {
	return b.open(ComparatorDefault, nil)
}

// Native opens the Dbi with ComparatorNative; see that constant's doc for
// why it shares a code path with Default.
func (b *DbiBuilder[T]) Native() (*Dbi[T], error) {
	return b.open(ComparatorNative, nil)
}

// Callback opens the Dbi with a caller-supplied host-side Comparator.
func (b *DbiBuilder[T]) Callback(cmp Comparator) (*Dbi[T], error) {
	return b.open(ComparatorCallback, cmp)
}

// Iterator opens the Dbi with a caller-supplied, lazily-evaluated host-side
// Comparator.
func (b *DbiBuilder[T]) Iterator(cmp Comparator) (*Dbi[T], error) {
	return b.open(ComparatorIterator, cmp)
}

// Get looks up key within txn, returning ok=false rather than an error when
// the key is absent.
func (d *Dbi[T]) Get(txn *Txn[T], key T) (value T, ok bool, err error) {
	raw, err := txn.raw.Get(d.raw, txn.kv.KeyIn(key))
	if err != nil {
		if IsNotFound(err) {
			var zero T
			return zero, false, nil
		}
		var zero T
		return zero, false, translate(err)
	}
	return txn.kv.ValOut(raw), true, nil
}

// Put stores key/value within txn, subject to flags (e.g. PutNoOverwrite).
// It returns false, rather than an error, when PutNoOverwrite or
// PutNoDupData is set and the key (or key/value pair) already exists; any
// other failure is returned as an error.
func (d *Dbi[T]) Put(txn *Txn[T], key, value T, flags FlagSet) (bool, error) {
	if err := requireReadWrite(txn); err != nil {
		return false, err
	}
	err := txn.raw.Put(d.raw, txn.kv.KeyIn(key), txn.kv.ValIn(value), flags.Mask())
	if err != nil {
		if opErr, ok := err.(*lmdb.OpError); ok && opErr.Errno == lmdb.KeyExist && rejectsExisting(flags) {
			return false, nil
		}
		return false, translate(err)
	}
	return true, nil
}

// Reserve stores key with n freshly-allocated bytes in the engine's own
// buffer and returns them for the caller to fill in directly, avoiding an
// extra copy on the write path. Unsupported on DUPSORT databases.
func (d *Dbi[T]) Reserve(txn *Txn[T], key T, n int, flags FlagSet) ([]byte, error) {
	if err := requireReadWrite(txn); err != nil {
		return nil, err
	}
	if d.flags.Has(FlagSet{mask: uint(DbiDupSort)}) {
		return nil, ErrReserveOnDup
	}
	reserveFlags := flags.Union(FlagSet{mask: uint(PutReserve)})
	raw, err := txn.raw.PutReserve(d.raw, txn.kv.KeyIn(key), n, reserveFlags.Mask())
	if err != nil {
		return nil, translate(err)
	}
	return raw, nil
}

// Delete removes key (every value under it, if DUPSORT) from txn.
func (d *Dbi[T]) Delete(txn *Txn[T], key T) error {
	if err := requireReadWrite(txn); err != nil {
		return err
	}
	err := txn.raw.Del(d.raw, txn.kv.KeyIn(key), nil)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return translate(err)
}

// DeleteValue removes exactly one key/value pair from a DUPSORT database.
func (d *Dbi[T]) DeleteValue(txn *Txn[T], key, value T) error {
	if err := requireReadWrite(txn); err != nil {
		return err
	}
	err := txn.raw.Del(d.raw, txn.kv.KeyIn(key), txn.kv.ValIn(value))
	if err != nil && IsNotFound(err) {
		return nil
	}
	return translate(err)
}

// Drop empties the database. If del is true, the database itself is also
// removed from the environment (its name may be reused afterwards).
func (d *Dbi[T]) Drop(txn *Txn[T], del bool) error {
	if err := requireReadWrite(txn); err != nil {
		return err
	}
	return translate(txn.raw.Drop(d.raw, del))
}

// Stat reports this Dbi's B+tree statistics as of txn's snapshot.
func (d *Dbi[T]) Stat(txn *Txn[T]) (Stat, error) {
	s, err := txn.raw.Stat(d.raw)
	if err != nil {
		return Stat{}, translate(err)
	}
	return statFromNative(s), nil
}

// OpenCursor opens a Cursor positioned before the first entry, scoped to
// txn's lifetime.
func (d *Dbi[T]) OpenCursor(txn *Txn[T]) (*Cursor[T], error) {
	raw, err := txn.raw.OpenCursor(d.raw)
	if err != nil {
		return nil, translate(err)
	}
	return &Cursor[T]{dbi: d, txn: txn, raw: raw}, nil
}

func requireReadWrite(txn interface{ ReadOnly() bool }) error {
	if txn.ReadOnly() {
		return ErrReadWrite
	}
	return nil
}
