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

// Package kv is a safe, idiomatic wrapping layer over an embedded,
// memory-mapped, ordered B+tree key-value engine (LMDB, via
// github.com/bmatsuo/lmdb-go). It adds the pieces the bare cgo binding does
// not provide: a reference-counted environment lifecycle, buffer proxies
// that let callers choose between a safe copying representation and a
// zero-copy view of mapped pages, and a declarative key-range iteration
// engine compiled onto a cursor.
//
// Readers get zero-copy views of the memory map for as long as their
// enclosing transaction is alive. There is a single writer per environment
// at any time; readers never block on a writer and vice versa.
package kv
