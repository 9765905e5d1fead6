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
	"os"
	"runtime"
	"time"

	"github.com/bmatsuo/lmdb-go/lmdb"
	"github.com/glycerine/idem"
	logpkg "github.com/mendersoftware/log"

	"github.com/northerntech/lmdbkv/kv/dbmetrics"
)

const (
	// DefaultMapSize is 1 MiB, matching spec's configuration-knob table.
	DefaultMapSize int64 = 1 << 20
	// DefaultMaxDbs bounds concurrent named Dbis.
	DefaultMaxDbs = 1
	// DefaultMaxReaders is the reader-lock-table slot count.
	DefaultMaxReaders = 126
	// DefaultFilePermissions is applied to newly created environment files.
	DefaultFilePermissions os.FileMode = 0664
)

// Stat mirrors spec's Database status information (MDB_stat).
type Stat struct {
	PSize         uint
	Depth         uint
	BranchPages   uint64
	LeafPages     uint64
	OverflowPages uint64
	Entries       uint64
}

func statFromNative(s *lmdb.Stat) Stat {
	return Stat{
		PSize:         uint(s.PSize),
		Depth:         uint(s.Depth),
		BranchPages:   uint64(s.BranchPages),
		LeafPages:     uint64(s.LeafPages),
		OverflowPages: uint64(s.OverflowPages),
		Entries:       uint64(s.Entries),
	}
}

// Info mirrors spec's environment information (MDB_envinfo).
type Info struct {
	MapSize    int64
	LastPNO    int64
	LastTxnID  int64
	MaxReaders uint
	NumReaders uint
}

func infoFromNative(i *lmdb.Info) Info {
	return Info{
		MapSize:    int64(i.MapSize),
		LastPNO:    int64(i.LastPNO),
		LastTxnID:  int64(i.LastTxnID),
		MaxReaders: uint(i.MaxReaders),
		NumReaders: uint(i.NumReaders),
	}
}

// Env is a handle to one memory-mapped file (or data+lock pair, under
// sub-directory mode). It is opened exactly once via Builder.Open and
// closed at most once; Close blocks new Txn acquisition and fails loudly
// (EnvInUse) while any Txn is still live. Cursors are not counted on their
// own: a read-only Cursor whose Txn has ended does not keep Close from
// succeeding.
type Env[T any] struct {
	raw        *lmdb.Env
	proxy      BufferProxy[T]
	rc         refCounter
	maxReaders int

	readerCheckHalt *idem.Halter
}

// Builder configures an Env before it is opened. A Builder is single-use:
// once Open succeeds, a further Open fails with ErrAlreadyOpen. The Set*,
// AddEnvFlag, SingleThreaded and DisableRefCounting calls do not check this;
// after Open they still succeed and have no effect on the opened Env.
type Builder[T any] struct {
	proxy          BufferProxy[T]
	mapSize        int64
	maxDbs         int
	maxReaders     int
	filePerm       os.FileMode
	envFlags       FlagSet
	singleThreaded bool
	noRefCount     bool
	opened         bool
}

// NewBuilder starts configuring an Env that will use proxy to translate
// between host buffers of type T and the bytes the engine reads/writes.
func NewBuilder[T any](proxy BufferProxy[T]) *Builder[T] {
	return &Builder[T]{
		proxy:      proxy,
		mapSize:    DefaultMapSize,
		maxDbs:     DefaultMaxDbs,
		maxReaders: DefaultMaxReaders,
		filePerm:   DefaultFilePermissions,
	}
}

func (b *Builder[T]) SetMapSize(n int64) *Builder[T] { b.mapSize = n; return b }
func (b *Builder[T]) SetMaxDbs(n int) *Builder[T]     { b.maxDbs = n; return b }
func (b *Builder[T]) SetMaxReaders(n int) *Builder[T] { b.maxReaders = n; return b }
func (b *Builder[T]) SetFilePermissions(mode os.FileMode) *Builder[T] {
	b.filePerm = mode
	return b
}
func (b *Builder[T]) SetEnvFlags(fs FlagSet) *Builder[T] { b.envFlags = fs; return b }
func (b *Builder[T]) AddEnvFlag(f EnvFlag) *Builder[T] {
	b.envFlags = b.envFlags.Union(FlagSet{mask: uint(f)})
	return b
}

// SingleThreaded selects the plain-integer reference counter instead of the
// striped one, appropriate when the caller guarantees the Env is only ever
// touched from a single goroutine.
func (b *Builder[T]) SingleThreaded() *Builder[T] { b.singleThreaded = true; return b }

// DisableRefCounting selects the no-op reference counter. Close will never
// report EnvInUse; the caller takes full responsibility for not closing
// while Txns/Cursors are live.
func (b *Builder[T]) DisableRefCounting() *Builder[T] { b.noRefCount = true; return b }

// Open opens the environment at path with the given open-time flags (in
// addition to any set via SetEnvFlags/AddEnvFlag).
func (b *Builder[T]) Open(path string, openFlags FlagSet) (*Env[T], error) {
	if b.opened {
		return nil, ErrAlreadyOpen
	}

	raw, err := lmdb.NewEnv()
	if err != nil {
		return nil, translate(err)
	}
	if err := raw.SetMapSize(b.mapSize); err != nil {
		return nil, translate(err)
	}
	if err := raw.SetMaxDBs(b.maxDbs); err != nil {
		return nil, translate(err)
	}
	if err := raw.SetMaxReaders(b.maxReaders); err != nil {
		return nil, translate(err)
	}

	mask := b.envFlags.Union(openFlags).Mask()
	if err := raw.Open(path, mask, b.filePerm); err != nil {
		return nil, translate(err)
	}

	var rc refCounter
	switch {
	case b.noRefCount:
		rc = &noOpRefCounter{}
	case b.singleThreaded:
		rc = &singleThreadedRefCounter{}
	default:
		rc = newStripedCounter(stripeCountForCPUs(runtime.GOMAXPROCS(0)))
	}

	b.opened = true
	logpkg.Debugf("kv: opened environment at %s (mapSize=%d maxDbs=%d maxReaders=%d)",
		path, b.mapSize, b.maxDbs, b.maxReaders)

	return &Env[T]{
		raw:        raw,
		proxy:      b.proxy,
		rc:         rc,
		maxReaders: b.maxReaders,
	}, nil
}

// acquire registers one more in-flight Txn (or Env call) user. Forbidden
// once the Env is closed or closing.
func (e *Env[T]) acquire() (releaser, error) {
	return e.rc.acquire()
}

// Close shuts down the environment. It is idempotent in the sense that a
// second call returns ErrAlreadyClosed rather than panicking, but it does
// NOT block waiting for in-flight users: if any Txn is still live, Close
// fails immediately with EnvInUse(count) and the
// environment remains open, per spec §4.4.
func (e *Env[T]) Close() error {
	return e.rc.close(func() error {
		if e.readerCheckHalt != nil {
			e.readerCheckHalt.ReqStop.Close()
			<-e.readerCheckHalt.Done.Chan
			e.readerCheckHalt = nil
		}
		logpkg.Debug("kv: closing environment")
		return translate(e.raw.Close())
	})
}

// Copy copies the data in the environment to path, optionally compacting
// free pages per flags. The destination must be an empty directory, or
// (under NoSubdir) a non-existent file path.
func (e *Env[T]) Copy(path string, flags FlagSet) error {
	rel, err := e.acquire()
	if err != nil {
		return err
	}
	defer rel.release()

	if flags.Mask() == 0 {
		return translate(e.raw.Copy(path))
	}
	return translate(e.raw.CopyFlag(path, flags.Mask()))
}

func (e *Env[T]) Stat() (Stat, error) {
	rel, err := e.acquire()
	if err != nil {
		return Stat{}, err
	}
	defer rel.release()

	s, err := e.raw.Stat()
	if err != nil {
		return Stat{}, translate(err)
	}
	return statFromNative(s), nil
}

func (e *Env[T]) Info() (Info, error) {
	rel, err := e.acquire()
	if err != nil {
		return Info{}, err
	}
	defer rel.release()

	i, err := e.raw.Info()
	if err != nil {
		return Info{}, translate(err)
	}
	return infoFromNative(i), nil
}

// SetMapSize grows the mapping. Fails if any Txn is currently open, exactly
// as mdb_env_set_mapsize requires.
func (e *Env[T]) SetMapSize(bytes int64) error {
	rel, err := e.acquire()
	if err != nil {
		return err
	}
	defer rel.release()
	return translate(e.raw.SetMapSize(bytes))
}

// Sync explicitly flushes buffers to disk. If force is true, the flush
// happens synchronously regardless of NoSync/MapAsync.
func (e *Env[T]) Sync(force bool) error {
	rel, err := e.acquire()
	if err != nil {
		return err
	}
	defer rel.release()
	return translate(e.raw.Sync(force))
}

// ReaderCheck purges stale reader-lock-table slots (e.g. left behind by a
// process that died mid-transaction) and returns the count cleared.
func (e *Env[T]) ReaderCheck() (int, error) {
	rel, err := e.acquire()
	if err != nil {
		return 0, err
	}
	defer rel.release()

	n, err := e.raw.ReaderCheck()
	if err != nil {
		return 0, translate(err)
	}
	dbmetrics.RecordReaderCheckReclaim(n)
	if n > 0 {
		logpkg.Warnf("kv: reader check cleared %d stale slot(s)", n)
	}
	return n, nil
}

// StartReaderCheckLoop runs ReaderCheck on a ticker until the Env is closed
// or StopReaderCheckLoop is called, grounded on glycerine-lmdb-go's
// sphynxReadWorker halt pattern. It is opt-in: most embedders call
// ReaderCheck themselves at a cadence that fits their process lifecycle.
func (e *Env[T]) StartReaderCheckLoop(interval time.Duration) {
	if e.readerCheckHalt != nil {
		return
	}
	h := idem.NewHalter()
	e.readerCheckHalt = h
	go func() {
		defer h.Done.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.ReqStop.Chan:
				return
			case <-ticker.C:
				if _, err := e.ReaderCheck(); err != nil {
					logpkg.Errorf("kv: reader check failed: %v", err)
				}
			}
		}
	}()
}

// StopReaderCheckLoop halts a loop started by StartReaderCheckLoop. It is a
// no-op if no loop is running. Close also stops any running loop.
func (e *Env[T]) StopReaderCheckLoop() {
	if e.readerCheckHalt == nil {
		return
	}
	e.readerCheckHalt.ReqStop.Close()
	<-e.readerCheckHalt.Done.Chan
	e.readerCheckHalt = nil
}

// TxnRead begins a read-only Txn, registering a reader slot.
func (e *Env[T]) TxnRead() (*Txn[T], error) {
	return e.beginTxn(nil, FlagSet{mask: uint(TxnReadOnly)})
}

// TxnWrite begins a read-write Txn. Only one may exist per Env at a time
// (enforced by the engine; a second concurrent attempt blocks until the
// first terminates).
func (e *Env[T]) TxnWrite() (*Txn[T], error) {
	return e.beginTxn(nil, EmptyFlags)
}

// TxnChild begins a Txn nested under parent, inheriting parent's mode. Only
// one child of a given parent may be active at a time.
func (e *Env[T]) TxnChild(parent *Txn[T], flags FlagSet) (*Txn[T], error) {
	return e.beginTxn(parent, flags)
}

func (e *Env[T]) beginTxn(parent *Txn[T], flags FlagSet) (*Txn[T], error) {
	rel, err := e.acquire()
	if err != nil {
		return nil, err
	}

	var parentRaw *lmdb.Txn
	if parent != nil {
		parentRaw = parent.raw
	}

	raw, err := e.raw.BeginTxn(parentRaw, flags.Mask())
	if err != nil {
		rel.release()
		return nil, translate(err)
	}
	dbmetrics.AcquireReaderSlot()

	return &Txn[T]{
		env:      e,
		raw:      raw,
		release:  rel,
		readOnly: flags.Has(FlagSet{mask: uint(TxnReadOnly)}),
		state:    txnReady,
		kv:       newKeyVal(e.proxy),
	}, nil
}

// Update runs fn inside a fresh read-write Txn, committing if fn returns nil
// and aborting otherwise (including when fn panics, in which case the panic
// is re-raised after the abort completes), the way a caller that doesn't
// want to manage Txn lifecycle by hand would use this package.
func (e *Env[T]) Update(fn func(txn *Txn[T]) error) (err error) {
	txn, err := e.TxnWrite()
	if err != nil {
		return err
	}

	var panicked interface{}
	defer func() {
		if err == nil && panicked == nil {
			err = txn.Commit()
		} else {
			txn.Abort()
			if panicked != nil {
				panic(panicked)
			}
		}
	}()

	func() {
		defer func() { panicked = recover() }()
		err = fn(txn)
	}()

	return err
}

// View runs fn inside a fresh read-only Txn, always aborting it afterward
// (read-only Txns have nothing to commit).
func (e *Env[T]) View(fn func(txn *Txn[T]) error) (err error) {
	txn, err := e.TxnRead()
	if err != nil {
		return err
	}

	var panicked interface{}
	defer func() {
		txn.Abort()
		if panicked != nil {
			panic(panicked)
		}
	}()

	func() {
		defer func() { panicked = recover() }()
		err = fn(txn)
	}()

	return err
}

// OpenDbi opens (creating if DbiCreate is set) a named Dbi using the
// DEFAULT comparator policy: the proxy's own comparator governs host-side
// iteration-window tests, and the native engine uses its own comparator for
// on-disk ordering. The two MUST agree byte-for-byte (true for the default
// signed/unsigned lexicographic comparators this package ships).
//
// name == nil opens the environment's root (unnamed) database.
func (e *Env[T]) OpenDbi(name []byte, flags FlagSet) (*Dbi[T], error) {
	return e.BuildDbi().WithName(name).WithFlags(flags).Default()
}

// BuildDbi starts the staged comparator-policy builder described in spec
// §4.5: callers must pick DEFAULT, Native, Callback, or Iterator before a
// Dbi is produced, making the comparator policy an explicit compile-time-ish
// decision rather than an easily-forgotten default.
func (e *Env[T]) BuildDbi() *DbiBuilder[T] {
	return &DbiBuilder[T]{env: e}
}

// GetDbiNames enumerates the names of every named Dbi in the environment by
// scanning the root (unnamed) database, which LMDB uses as an index of
// named sub-databases.
func (e *Env[T]) GetDbiNames() ([][]byte, error) {
	txn, err := e.TxnRead()
	if err != nil {
		return nil, err
	}
	defer txn.Abort()

	root, err := txn.openRootRaw()
	if err != nil {
		return nil, err
	}

	cur, err := txn.raw.OpenCursor(root)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close()

	var names [][]byte
	key, _, err := cur.Get(nil, nil, lmdb.First)
	for err == nil {
		dup := make([]byte, len(key))
		copy(dup, key)
		names = append(names, dup)
		key, _, err = cur.Get(nil, nil, lmdb.Next)
	}
	if err != nil && !lmdb.IsNotFound(err) {
		return nil, translate(err)
	}
	return names, nil
}
