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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEnv opens a fresh NoSubdir environment backed by a single file
// under t.TempDir(), small enough to exercise quickly but big enough for
// the handful of keys these tests write.
func newTestEnv(t *testing.T) *Env[[]byte] {
	t.Helper()
	flags := NewEnvFlags().Add(NoSubdir).Build()
	env, err := NewBuilder[[]byte](BytesProxy{}).
		SetMapSize(1 << 20).
		SetMaxDbs(8).
		Open(filepath.Join(t.TempDir(), "test.mdb"), flags)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func TestEnvOpenCloseRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.Close())
	assert.Equal(t, ErrAlreadyClosed, env.Close())
}

func TestEnvCloseFailsWhileTxnAttached(t *testing.T) {
	flags := NewEnvFlags().Add(NoSubdir).Build()
	env, err := NewBuilder[[]byte](BytesProxy{}).
		Open(filepath.Join(t.TempDir(), "test.mdb"), flags)
	require.NoError(t, err)

	txn, err := env.TxnRead()
	require.NoError(t, err)

	err = env.Close()
	assert.Error(t, err)
	kvErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindEnvInUse, kvErr.Kind)

	txn.Abort()
	assert.NoError(t, env.Close())
}

func TestEnvStatAndInfo(t *testing.T) {
	env := newTestEnv(t)

	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	txn, err := env.TxnWrite()
	require.NoError(t, err)
	mustPut(t, dbi, txn, []byte("a"), []byte("1"))
	require.NoError(t, txn.Commit())

	rtxn, err := env.TxnRead()
	require.NoError(t, err)
	defer rtxn.Abort()

	stat, err := dbi.Stat(rtxn)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), stat.Entries)

	info, err := env.Info()
	assert.NoError(t, err)
	assert.True(t, info.MaxReaders > 0)
}

func TestEnvSetMapSizeGrows(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.SetMapSize(2<<20))

	info, err := env.Info()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), info.MapSize)
}

func TestEnvSyncAndReaderCheck(t *testing.T) {
	env := newTestEnv(t)
	assert.NoError(t, env.Sync(true))

	cleared, err := env.ReaderCheck()
	assert.NoError(t, err)
	assert.Equal(t, 0, cleared)
}

func TestEnvCopy(t *testing.T) {
	env := newTestEnv(t)

	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)
	txn, err := env.TxnWrite()
	require.NoError(t, err)
	mustPut(t, dbi, txn, []byte("a"), []byte("1"))
	require.NoError(t, txn.Commit())

	dst := filepath.Join(t.TempDir(), "copy.mdb")
	assert.NoError(t, env.Copy(dst, EmptyFlags))

	copyFlags := NewEnvFlags().Add(NoSubdir).Build()
	copyEnv, err := NewBuilder[[]byte](BytesProxy{}).Open(dst, copyFlags)
	require.NoError(t, err)
	defer copyEnv.Close()

	copyDbi, err := copyEnv.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)
	rtxn, err := copyEnv.TxnRead()
	require.NoError(t, err)
	defer rtxn.Abort()

	v, ok, err := copyDbi.Get(rtxn, []byte("a"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestEnvUpdateCommitsOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	err = env.Update(func(txn *Txn[[]byte]) error {
		_, err := dbi.Put(txn, []byte("k"), []byte("v"), EmptyFlags)
		return err
	})
	assert.NoError(t, err)

	err = env.View(func(txn *Txn[[]byte]) error {
		v, ok, err := dbi.Get(txn, []byte("k"))
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), v)
		return err
	})
	assert.NoError(t, err)
}

func TestEnvUpdateAbortsOnError(t *testing.T) {
	env := newTestEnv(t)
	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	sentinel := assert.AnError
	err = env.Update(func(txn *Txn[[]byte]) error {
		mustPut(t, dbi, txn, []byte("k"), []byte("v"))
		return sentinel
	})
	assert.Equal(t, sentinel, err)

	err = env.View(func(txn *Txn[[]byte]) error {
		_, ok, err := dbi.Get(txn, []byte("k"))
		assert.False(t, ok)
		return err
	})
	assert.NoError(t, err)
}

func TestEnvUpdatePanicAbortsAndRepanics(t *testing.T) {
	env := newTestEnv(t)
	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	assert.Panics(t, func() {
		env.Update(func(txn *Txn[[]byte]) error {
			mustPut(t, dbi, txn, []byte("k"), []byte("v"))
			panic("boom")
		})
	})

	err = env.View(func(txn *Txn[[]byte]) error {
		_, ok, err := dbi.Get(txn, []byte("k"))
		assert.False(t, ok)
		return err
	})
	assert.NoError(t, err)
}

func TestEnvGetDbiNamesLists(t *testing.T) {
	flags := NewEnvFlags().Build()
	env, err := NewBuilder[[]byte](BytesProxy{}).
		SetMaxDbs(4).
		Open(t.TempDir(), flags)
	require.NoError(t, err)
	defer env.Close()

	_, err = env.BuildDbi().WithName([]byte("widgets")).
		WithFlags(NewDbiFlags().Add(DbiCreate).Build()).Default()
	require.NoError(t, err)
	_, err = env.BuildDbi().WithName([]byte("gadgets")).
		WithFlags(NewDbiFlags().Add(DbiCreate).Build()).Default()
	require.NoError(t, err)

	names, err := env.GetDbiNames()
	assert.NoError(t, err)

	var got []string
	for _, n := range names {
		got = append(got, string(n))
	}
	assert.ElementsMatch(t, []string{"widgets", "gadgets"}, got)
}
