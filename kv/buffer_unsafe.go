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

import "unsafe"

// Val is a zero-copy view over either caller-owned memory (on the write
// path) or a mapped page (on the read path). Val returned from a read is
// valid only until the next mutating call on the owning Txn/Cursor, or
// until the Txn ends -- whichever comes first. Using it afterwards is
// undefined behavior at this layer, exactly as spec §5 describes for the
// underlying engine (the mapped page may be reused or unmapped).
type Val struct {
	data unsafe.Pointer
	n    int
}

// Bytes reinterprets the view as a []byte without copying. The slice must
// not be retained past the view's validity window described above; call
// BytesProxy.GetBytes (or copy explicitly) to take a defensive snapshot.
func (v Val) Bytes() []byte {
	if v.n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(v.data), v.n)
}

func (v Val) Len() int { return v.n }

func valFromBytes(b []byte) Val {
	if len(b) == 0 {
		return Val{}
	}
	return Val{data: unsafe.Pointer(&b[0]), n: len(b)}
}

// UnsafeProxy is the zero-copy BufferProxy: reads alias the mapped page
// directly via Val rather than copying into a fresh []byte, matching
// spec §4.1's "at least one zero-copy proxy" requirement.
type UnsafeProxy struct{}

var _ BufferProxy[Val] = UnsafeProxy{}

func (UnsafeProxy) Allocate() Val { return Val{} }

func (UnsafeProxy) Deallocate(Val) {}

func (UnsafeProxy) GetBytes(v Val) []byte {
	b := v.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (UnsafeProxy) In(v Val) []byte { return v.Bytes() }

func (UnsafeProxy) Out(raw []byte) Val { return valFromBytes(raw) }

func (UnsafeProxy) Comparator(dbiFlags FlagSet) Comparator {
	if dbiFlags.Has(FlagSet{mask: uint(DbiIntegerKey)}) {
		return unsignedIntegerCompare
	}
	return defaultSignedCompare
}

func (UnsafeProxy) ContainsPrefix(v, prefix Val) bool {
	return containsPrefixBytes(v.Bytes(), prefix.Bytes())
}

func (UnsafeProxy) IncrementLSB(v Val) (Val, bool) {
	out, ok := incrementLSBBytes(v.Bytes())
	if !ok {
		return Val{}, false
	}
	return valFromBytes(out), true
}
