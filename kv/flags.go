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

// EnvFlag is a single bit understood by mdb_env_open (or a handful of
// env-level set/unset calls).
type EnvFlag uint

const (
	FixedMap    EnvFlag = lmdb.FixedMap
	NoSubdir    EnvFlag = lmdb.NoSubdir
	ReadOnly    EnvFlag = lmdb.Readonly
	WriteMap    EnvFlag = lmdb.WriteMap
	NoMetaSync  EnvFlag = lmdb.NoMetaSync
	NoSync      EnvFlag = lmdb.NoSync
	MapAsync    EnvFlag = lmdb.MapAsync
	NoTLS       EnvFlag = lmdb.NoTLS
	NoLock      EnvFlag = lmdb.NoLock
	NoReadahead EnvFlag = lmdb.NoReadahead
	NoMemInit   EnvFlag = lmdb.NoMemInit
)

// DbiFlag is a single bit passed to OpenDBI.
type DbiFlag uint

const (
	DbiCreate      DbiFlag = lmdb.Create
	DbiReverseKey  DbiFlag = lmdb.ReverseKey
	DbiDupSort     DbiFlag = lmdb.DupSort
	DbiIntegerKey  DbiFlag = lmdb.IntegerKey
	DbiDupFixed    DbiFlag = lmdb.DupFixed
	DbiIntegerDup  DbiFlag = lmdb.IntegerDup
	DbiReverseDup  DbiFlag = lmdb.ReverseDup
)

// TxnFlag is a single bit passed to BeginTxn.
type TxnFlag uint

const (
	TxnReadOnly TxnFlag = lmdb.Readonly
)

// PutFlag is a single bit passed to Put/cursor Put.
type PutFlag uint

const (
	PutNoOverwrite PutFlag = lmdb.NoOverwrite
	PutNoDupData   PutFlag = lmdb.NoDupData
	PutCurrent     PutFlag = lmdb.Current
	PutReserve     PutFlag = lmdb.Reserve
	PutAppend      PutFlag = lmdb.Append
	PutAppendDup   PutFlag = lmdb.AppendDup
	PutMultiple    PutFlag = lmdb.Multiple
)

// rejectsExisting reports whether flags asks the native put to fail rather
// than overwrite when the key (NoOverwrite) or key/value pair (NoDupData)
// already exists. Callers translate that specific KeyExist failure into a
// false return instead of an error.
func rejectsExisting(flags FlagSet) bool {
	return flags.Has(FlagSet{mask: uint(PutNoOverwrite)}) || flags.Has(FlagSet{mask: uint(PutNoDupData)})
}

// CopyFlag is a single bit passed to Env.Copy.
type CopyFlag uint

const (
	CopyCompact CopyFlag = lmdb.CopyCompact
)

// FlagSet is an immutable bitmask-backed set. It is the only type through
// which callers of this package construct masks for the native API; raw
// ints never leak through the public surface.
type FlagSet struct {
	mask uint
}

// Mask returns the raw bitmask, for internal use when calling into the
// engine binding.
func (s FlagSet) Mask() uint { return s.mask }

// Has reports whether every bit of other is present in s.
func (s FlagSet) Has(other FlagSet) bool {
	return s.mask&other.mask == other.mask
}

// Union returns a new FlagSet containing the bits of both sets.
func (s FlagSet) Union(other FlagSet) FlagSet {
	return FlagSet{mask: s.mask | other.mask}
}

// Intersect returns a new FlagSet containing only the bits present in both.
func (s FlagSet) Intersect(other FlagSet) FlagSet {
	return FlagSet{mask: s.mask & other.mask}
}

// EmptyFlags is the cached zero-value FlagSet, returned by every family's
// builder when no flags are added.
var EmptyFlags = FlagSet{}

// FlagSetBuilder accumulates flag bits and produces an immutable FlagSet.
// A zero-value FlagSetBuilder is ready to use.
type FlagSetBuilder struct {
	mask uint
}

func (b *FlagSetBuilder) add(bit uint) *FlagSetBuilder {
	b.mask |= bit
	return b
}

func (b *FlagSetBuilder) Clear() *FlagSetBuilder {
	b.mask = 0
	return b
}

func (b *FlagSetBuilder) Build() FlagSet {
	if b.mask == 0 {
		return EmptyFlags
	}
	return FlagSet{mask: b.mask}
}

// EnvFlags builds a FlagSet out of EnvFlag bits.
type EnvFlagsBuilder struct{ FlagSetBuilder }

func NewEnvFlags() *EnvFlagsBuilder { return &EnvFlagsBuilder{} }

func (b *EnvFlagsBuilder) Add(f EnvFlag) *EnvFlagsBuilder {
	b.add(uint(f))
	return b
}

func (b *EnvFlagsBuilder) AddAll(flags ...EnvFlag) *EnvFlagsBuilder {
	for _, f := range flags {
		if f != 0 {
			b.add(uint(f))
		}
	}
	return b
}

// DbiFlags builds a FlagSet out of DbiFlag bits.
type DbiFlagsBuilder struct{ FlagSetBuilder }

func NewDbiFlags() *DbiFlagsBuilder { return &DbiFlagsBuilder{} }

func (b *DbiFlagsBuilder) Add(f DbiFlag) *DbiFlagsBuilder {
	b.add(uint(f))
	return b
}

func (b *DbiFlagsBuilder) AddAll(flags ...DbiFlag) *DbiFlagsBuilder {
	for _, f := range flags {
		if f != 0 {
			b.add(uint(f))
		}
	}
	return b
}

// PutFlags builds a FlagSet out of PutFlag bits.
type PutFlagsBuilder struct{ FlagSetBuilder }

func NewPutFlags() *PutFlagsBuilder { return &PutFlagsBuilder{} }

func (b *PutFlagsBuilder) Add(f PutFlag) *PutFlagsBuilder {
	b.add(uint(f))
	return b
}

// TxnFlags builds a FlagSet out of TxnFlag bits.
type TxnFlagsBuilder struct{ FlagSetBuilder }

func NewTxnFlags() *TxnFlagsBuilder { return &TxnFlagsBuilder{} }

func (b *TxnFlagsBuilder) Add(f TxnFlag) *TxnFlagsBuilder {
	b.add(uint(f))
	return b
}

// CopyFlags builds a FlagSet out of CopyFlag bits.
type CopyFlagsBuilder struct{ FlagSetBuilder }

func NewCopyFlags() *CopyFlagsBuilder { return &CopyFlagsBuilder{} }

func (b *CopyFlagsBuilder) Add(f CopyFlag) *CopyFlagsBuilder {
	b.add(uint(f))
	return b
}
