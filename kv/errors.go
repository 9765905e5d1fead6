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
	"fmt"

	"github.com/bmatsuo/lmdb-go/lmdb"
)

// Kind tags an Error so callers can switch on misuse vs. native failure
// without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindAlreadyClosed
	KindAlreadyOpen
	KindEnvInUse
	KindCommitted
	KindNotReset
	KindReadOnlyRequired
	KindReadWriteRequired
	KindClosed
	KindInvalidCopyDestination
	KindBadValueSize
	KindBadDbi
	KindBadReaderSlot
	KindBadTxn
	KindMapFull
	KindMapResized
	KindReadersFull
	KindTxnFull
	KindCursorFull
	KindPageFull
	KindPageNotFound
	KindCorrupted
	KindPanic
	KindVersionMismatch
	KindFileInvalid
	KindIncompatible
	KindKeyExists
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindAlreadyClosed:
		return "already closed"
	case KindAlreadyOpen:
		return "already open"
	case KindEnvInUse:
		return "environment in use"
	case KindCommitted:
		return "transaction already terminated"
	case KindNotReset:
		return "transaction not reset"
	case KindReadOnlyRequired:
		return "read-only transaction required"
	case KindReadWriteRequired:
		return "read-write transaction required"
	case KindClosed:
		return "closed"
	case KindInvalidCopyDestination:
		return "invalid copy destination"
	case KindBadValueSize:
		return "bad value size"
	case KindBadDbi:
		return "bad dbi"
	case KindBadReaderSlot:
		return "bad reader slot"
	case KindBadTxn:
		return "bad transaction"
	case KindMapFull:
		return "map full"
	case KindMapResized:
		return "map resized"
	case KindReadersFull:
		return "readers full"
	case KindTxnFull:
		return "transaction full"
	case KindCursorFull:
		return "cursor full"
	case KindPageFull:
		return "page full"
	case KindPageNotFound:
		return "page not found"
	case KindCorrupted:
		return "corrupted"
	case KindPanic:
		return "panic"
	case KindVersionMismatch:
		return "version mismatch"
	case KindFileInvalid:
		return "file invalid"
	case KindIncompatible:
		return "incompatible"
	case KindKeyExists:
		return "key exists"
	case KindNative:
		return "native error"
	default:
		return "unknown"
	}
}

// Error is the structured error kind returned by this package. It carries
// the engine return code when the error originated from a native call.
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("kv: %s (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("kv: %s: %s", e.Kind, e.Message)
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func newErrf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// EnvInUse is raised by Env.Close when the reference counter cannot prove
// that every Txn/Cursor user has released the environment.
func EnvInUse(count int32) *Error {
	return &Error{Kind: KindEnvInUse, Code: int(count), Message: fmt.Sprintf("%d user(s) still attached", count)}
}

var (
	ErrAlreadyClosed  = newErr(KindAlreadyClosed, "environment is already closed")
	ErrAlreadyOpen    = newErr(KindAlreadyOpen, "builder has already opened an environment")
	ErrCommitted      = newErr(KindCommitted, "transaction has already been committed or aborted")
	ErrNotReset       = newErr(KindNotReset, "transaction has not been reset")
	ErrReadOnly       = newErr(KindReadOnlyRequired, "operation requires a read-only transaction")
	ErrReadWrite      = newErr(KindReadWriteRequired, "operation requires a read-write transaction")
	ErrCursorClosed   = newErr(KindClosed, "cursor is closed")
	ErrDbiClosed      = newErr(KindClosed, "dbi is closed")
	ErrTxnNotReady    = newErr(KindBadTxn, "transaction is not in the READY state")
	ErrReserveOnDup   = newErr(KindBadValueSize, "RESERVE is not supported on DUPSORT databases")
)

// translate maps a native lmdb error (as returned by bmatsuo/lmdb-go) into
// the structured Error taxonomy. It never recovers locally: every native
// failure surfaces to the caller, translated but not swallowed.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if opErr, ok := err.(*lmdb.OpError); ok {
		return &Error{Kind: kindForErrno(opErr.Errno), Code: int(opErr.Errno), Message: opErr.Error()}
	}
	return &Error{Kind: KindNative, Message: err.Error()}
}

func kindForErrno(errno lmdb.Errno) Kind {
	switch errno {
	case lmdb.KeyExist:
		return KindKeyExists
	case lmdb.NotFound:
		return KindBadValueSize // callers should check IsNotFound before reaching here
	case lmdb.PageNotFound:
		return KindPageNotFound
	case lmdb.Corrupted:
		return KindCorrupted
	case lmdb.Panic:
		return KindPanic
	case lmdb.VersionMismatch:
		return KindVersionMismatch
	case lmdb.Invalid:
		return KindFileInvalid
	case lmdb.MapFull:
		return KindMapFull
	case lmdb.DbsFull:
		return KindBadDbi
	case lmdb.ReadersFull:
		return KindReadersFull
	case lmdb.TxnFull:
		return KindTxnFull
	case lmdb.CursorFull:
		return KindCursorFull
	case lmdb.PageFull:
		return KindPageFull
	case lmdb.MapResized:
		return KindMapResized
	case lmdb.Incompatible:
		return KindIncompatible
	case lmdb.BadRSlot:
		return KindBadReaderSlot
	case lmdb.BadTxn:
		return KindBadTxn
	case lmdb.BadValSize:
		return KindBadValueSize
	case lmdb.BadDBI:
		return KindBadDbi
	default:
		return KindNative
	}
}

// IsNotFound reports whether err represents a native MDB_NOTFOUND result,
// i.e. an absent key rather than a failure. Per spec, Get/Delete/SET-family
// cursor operations translate this into an Option::None / false return
// instead of surfacing it as an error; IsNotFound exists for the few call
// sites that need to distinguish it explicitly (e.g. cursor SET-family
// helpers that return a bool already, this is mostly internal).
func IsNotFound(err error) bool {
	return lmdb.IsNotFound(err)
}
