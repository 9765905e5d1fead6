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
	"github.com/bmatsuo/lmdb-go/lmdb"
)

// CursorOp names a positioning operation understood by Cursor.Get, mirroring
// the native MDB_cursor_op family.
type CursorOp uint

const (
	First        CursorOp = CursorOp(lmdb.First)
	FirstDup     CursorOp = CursorOp(lmdb.FirstDup)
	GetCurrent   CursorOp = CursorOp(lmdb.GetCurrent)
	GetBoth      CursorOp = CursorOp(lmdb.GetBoth)
	GetBothRange CursorOp = CursorOp(lmdb.GetBothRange)
	Last         CursorOp = CursorOp(lmdb.Last)
	LastDup      CursorOp = CursorOp(lmdb.LastDup)
	Next         CursorOp = CursorOp(lmdb.Next)
	NextDup      CursorOp = CursorOp(lmdb.NextDup)
	NextNoDup    CursorOp = CursorOp(lmdb.NextNoDup)
	Prev         CursorOp = CursorOp(lmdb.Prev)
	PrevDup      CursorOp = CursorOp(lmdb.PrevDup)
	PrevNoDup    CursorOp = CursorOp(lmdb.PrevNoDup)
	Set          CursorOp = CursorOp(lmdb.Set)
	SetKey       CursorOp = CursorOp(lmdb.SetKey)
	SetRange     CursorOp = CursorOp(lmdb.SetRange)
)

var cursorClosed = newErr(KindClosed, "cursor is closed")

// Cursor walks a Dbi's entries in key order. A Cursor opened on a read-write
// Txn is released by the engine when that Txn terminates. One opened on a
// read-only Txn stays allocated until Close is called, and after its Txn
// ends it can be rebound to another read-only Txn with Renew; it must not
// be positioned again until then.
type Cursor[T any] struct {
	dbi    *Dbi[T]
	txn    *Txn[T]
	raw    *lmdb.Cursor
	closed bool
}

// Close releases the native cursor. Idempotent.
func (c *Cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return translate(c.raw.Close())
}

// Get positions the cursor per op (optionally seeded by key/val for the
// SET/GetBoth family) and returns the entry now under it. ok is false, with
// a nil error, when op reaches past either end of the database.
func (c *Cursor[T]) Get(key, val T, op CursorOp) (k, v T, ok bool, err error) {
	if c.closed {
		var zero T
		return zero, zero, false, cursorClosed
	}
	var keyBytes, valBytes []byte
	switch op {
	case Set, SetKey, SetRange:
		keyBytes = c.txn.kv.KeyIn(key)
	case GetBoth, GetBothRange:
		keyBytes = c.txn.kv.KeyIn(key)
		valBytes = c.txn.kv.ValIn(val)
	}

	rawKey, rawVal, err := c.raw.Get(keyBytes, valBytes, uint(op))
	if err != nil {
		if IsNotFound(err) {
			var zero T
			return zero, zero, false, nil
		}
		var zero T
		return zero, zero, false, translate(err)
	}
	return c.txn.kv.KeyOut(rawKey), c.txn.kv.ValOut(rawVal), true, nil
}

// Put stores key/value at the cursor's Dbi, subject to flags. It returns
// false, rather than an error, when PutNoOverwrite or PutNoDupData is set
// and the key (or key/value pair) already exists; any other failure is
// returned as an error.
func (c *Cursor[T]) Put(key, value T, flags FlagSet) (bool, error) {
	if c.closed {
		return false, cursorClosed
	}
	if err := requireReadWrite(c.txn); err != nil {
		return false, err
	}
	err := c.raw.Put(c.txn.kv.KeyIn(key), c.txn.kv.ValIn(value), flags.Mask())
	if err != nil {
		if opErr, ok := err.(*lmdb.OpError); ok && opErr.Errno == lmdb.KeyExist && rejectsExisting(flags) {
			return false, nil
		}
		return false, translate(err)
	}
	return true, nil
}

// PutReserve behaves like Dbi.Reserve but positions via the cursor.
func (c *Cursor[T]) PutReserve(key T, n int, flags FlagSet) ([]byte, error) {
	if c.closed {
		return nil, cursorClosed
	}
	if err := requireReadWrite(c.txn); err != nil {
		return nil, err
	}
	if c.dbi.flags.Has(FlagSet{mask: uint(DbiDupSort)}) {
		return nil, ErrReserveOnDup
	}
	reserveFlags := flags.Union(FlagSet{mask: uint(PutReserve)})
	raw, err := c.raw.PutReserve(c.txn.kv.KeyIn(key), n, reserveFlags.Mask())
	if err != nil {
		return nil, translate(err)
	}
	return raw, nil
}

// Delete removes the entry the cursor currently sits on.
func (c *Cursor[T]) Delete(flags FlagSet) error {
	if c.closed {
		return cursorClosed
	}
	if err := requireReadWrite(c.txn); err != nil {
		return err
	}
	return translate(c.raw.Del(flags.Mask()))
}

// Count returns the number of duplicates for the key the cursor currently
// sits on (DUPSORT databases only).
func (c *Cursor[T]) Count() (uint64, error) {
	if c.closed {
		return 0, cursorClosed
	}
	n, err := c.raw.Count()
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Renew rebinds a cursor opened on a read-only Txn to a new one of the same
// Dbi, avoiding the cost of opening a fresh native cursor.
func (c *Cursor[T]) Renew(txn *Txn[T]) error {
	if err := c.raw.Renew(txn.raw); err != nil {
		return translate(err)
	}
	c.txn = txn
	c.closed = false
	return nil
}
