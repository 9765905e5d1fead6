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

// BytesProxy is the safe, copying baseline BufferProxy: reads produce a
// fresh []byte snapshot of the mapped page, so the returned value remains
// valid after the enclosing Txn ends. This is the proxy to reach for unless
// a hot read path specifically needs the zero-copy UnsafeProxy instead.
type BytesProxy struct{}

var _ BufferProxy[[]byte] = BytesProxy{}

func (BytesProxy) Allocate() []byte { return nil }

func (BytesProxy) Deallocate([]byte) {}

func (BytesProxy) GetBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (BytesProxy) In(b []byte) []byte { return b }

func (BytesProxy) Out(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func (BytesProxy) Comparator(dbiFlags FlagSet) Comparator {
	if dbiFlags.Has(FlagSet{mask: uint(DbiIntegerKey)}) {
		return unsignedIntegerCompare
	}
	return defaultSignedCompare
}

func (BytesProxy) ContainsPrefix(b, prefix []byte) bool {
	return containsPrefixBytes(b, prefix)
}

func (BytesProxy) IncrementLSB(b []byte) ([]byte, bool) {
	return incrementLSBBytes(b)
}
