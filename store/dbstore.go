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

// Package store is a small worked example of the kv package: a
// single-file, named-blob store built directly on kv.Env/kv.Dbi, in the
// shape the original Mender device-settings store took before this module
// generalized its LMDB plumbing into a reusable library.
package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mendersoftware/log"
	"github.com/pkg/errors"

	"github.com/northerntech/lmdbkv/kv"
)

const (
	// BlobStoreName is the data file created under the directory passed to
	// Open (NoSubdir mode: a single file rather than a data.mdb/lock.mdb
	// pair).
	BlobStoreName = "lmdbkv-store"
)

// ErrNotInitialized is returned by BlobStore's read, write and remove
// methods, and by a writer's Commit, when the store was never opened or its
// environment has been closed.
var ErrNotInitialized = errors.New("blob store not initialized")

// WriteCloserCommitter is a write handle that buffers writes until Commit,
// so a caller can back out of a write without ever touching the store.
type WriteCloserCommitter interface {
	io.WriteCloser
	Commit() error
}

// BlobStore maps names to arbitrary byte blobs in the root Dbi of a single
// lmdbkv environment.
type BlobStore struct {
	env *kv.Env[[]byte]
	dbi *kv.Dbi[[]byte]
}

// Open creates (or reopens) a BlobStore backed by a single file named
// BlobStoreName under dirpath.
func Open(dirpath string) (*BlobStore, error) {
	flags := kv.NewEnvFlags().Add(kv.NoSubdir).Build()
	env, err := kv.NewBuilder[[]byte](kv.BytesProxy{}).
		Open(filepath.Join(dirpath, BlobStoreName), flags)
	if err != nil {
		log.Errorf("store: failed to open environment: %v", err)
		return nil, errors.Wrap(err, "failed to open blob store")
	}

	dbi, err := env.OpenDbi(nil, kv.EmptyFlags)
	if err != nil {
		env.Close()
		return nil, errors.Wrap(err, "failed to open root database")
	}

	return &BlobStore{env: env, dbi: dbi}, nil
}

func (s *BlobStore) Close() error {
	if s.env == nil {
		return nil
	}
	err := s.env.Close()
	s.env = nil
	return errors.Wrap(err, "failed to close blob store")
}

// ReadAll returns the full contents stored under name, or os.ErrNotExist if
// no such entry exists.
func (s *BlobStore) ReadAll(name string) ([]byte, error) {
	if s.env == nil {
		return nil, ErrNotInitialized
	}

	var value []byte
	err := s.env.View(func(txn *kv.Txn[[]byte]) error {
		v, ok, err := s.dbi.Get(txn, []byte(name))
		if err != nil {
			return errors.Wrapf(err, "failed to read data for key %s", name)
		}
		if !ok {
			return os.ErrNotExist
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// WriteAll stores data under name, replacing any prior value.
func (s *BlobStore) WriteAll(name string, data []byte) error {
	if s.env == nil {
		return ErrNotInitialized
	}
	return s.writeOne(name, data)
}

func (s *BlobStore) writeOne(name string, data []byte) error {
	return s.env.Update(func(txn *kv.Txn[[]byte]) error {
		if _, err := s.dbi.Put(txn, []byte(name), data, kv.EmptyFlags); err != nil {
			return errors.Wrapf(err, "failed to write data for key %s", name)
		}
		return nil
	})
}

// WriteMap stores every name/data pair in values within a single
// transaction, committing them all atomically.
func (s *BlobStore) WriteMap(values map[string][]byte) error {
	if s.env == nil {
		return ErrNotInitialized
	}

	return s.env.Update(func(txn *kv.Txn[[]byte]) error {
		for name, data := range values {
			if _, err := s.dbi.Put(txn, []byte(name), data, kv.EmptyFlags); err != nil {
				return errors.Wrapf(err, "failed to write data for key %s", name)
			}
		}
		return nil
	})
}

// Remove deletes name. Removing an absent name is not an error.
func (s *BlobStore) Remove(name string) error {
	if s.env == nil {
		return ErrNotInitialized
	}

	return s.env.Update(func(txn *kv.Txn[[]byte]) error {
		if err := s.dbi.Delete(txn, []byte(name)); err != nil {
			return errors.Wrapf(err, "failed to delete key %s", name)
		}
		return nil
	})
}

// OpenRead is ReadAll wrapped as an io.ReadCloser, for callers that stream.
func (s *BlobStore) OpenRead(name string) (io.ReadCloser, error) {
	b, err := s.ReadAll(name)
	if err != nil {
		return nil, err
	}
	return ioutil.NopCloser(bytes.NewReader(b)), nil
}

// OpenWrite returns a handle that buffers writes until Commit is called;
// the store is untouched if Commit is never reached.
func (s *BlobStore) OpenWrite(name string) (WriteCloserCommitter, error) {
	return &blobWriter{store: s, name: name}, nil
}

type blobWriter struct {
	store *BlobStore
	name  string
	data  bytes.Buffer
}

func (w *blobWriter) Write(p []byte) (int, error) { return w.data.Write(p) }

func (w *blobWriter) Close() error { return nil }

func (w *blobWriter) Commit() error {
	return w.store.WriteAll(w.name, w.data.Bytes())
}
