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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, it *Spliterator[[]byte]) []string {
	t.Helper()
	var got []string
	for {
		k, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	return got
}

func newLetterEnv(t *testing.T) (*Env[[]byte], *Dbi[[]byte]) {
	t.Helper()
	env := newTestEnv(t)
	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)
	seedLetters(t, env, dbi)
	return env, dbi
}

func TestSpliteratorAllForward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, All[[]byte]())
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, drain(t, it))
}

func TestSpliteratorAllBackward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, AllBackward[[]byte]())
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, drain(t, it))
}

func TestSpliteratorClosedForward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, Closed[[]byte]([]byte("b"), []byte("d")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"b", "c", "d"}, drain(t, it))
}

func TestSpliteratorClosedBackward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, ClosedBackward[[]byte]([]byte("b"), []byte("d")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"d", "c", "b"}, drain(t, it))
}

func TestSpliteratorOpenForward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, Open[[]byte]([]byte("b"), []byte("d")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"c"}, drain(t, it))
}

func TestSpliteratorOpenBackward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, OpenBackward[[]byte]([]byte("b"), []byte("d")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"c"}, drain(t, it))
}

func TestSpliteratorAtLeastForward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, AtLeast[[]byte]([]byte("c")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"c", "d", "e"}, drain(t, it))
}

func TestSpliteratorAtMostBackward(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, AtMostBackward[[]byte]([]byte("c")))
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"c", "b", "a"}, drain(t, it))
}

func TestSpliteratorBoundOutsideRangeIsEmpty(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, AtLeast[[]byte]([]byte("z")))
	require.NoError(t, err)
	defer it.Close()

	assert.Empty(t, drain(t, it))
}

func TestSpliteratorPrefixForwardAndBackward(t *testing.T) {
	env := newTestEnv(t)
	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	txn, err := env.TxnWrite()
	require.NoError(t, err)
	for _, k := range []string{"app", "apple", "apply", "banana"} {
		mustPut(t, dbi, txn, []byte(k), []byte(k))
	}
	require.NoError(t, txn.Commit())

	rtxn, err := env.TxnRead()
	require.NoError(t, err)
	defer rtxn.Abort()

	fwd, err := dbi.Iterate(rtxn, Prefix[[]byte]([]byte("app")))
	require.NoError(t, err)
	defer fwd.Close()
	assert.Equal(t, []string{"app", "apple", "apply"}, drain(t, fwd))

	bwd, err := dbi.Iterate(rtxn, PrefixBackward[[]byte]([]byte("app")))
	require.NoError(t, err)
	defer bwd.Close()
	assert.Equal(t, []string{"apply", "apple", "app"}, drain(t, bwd))
}

func TestSpliteratorPrefixNoMatchIsEmpty(t *testing.T) {
	env, dbi := newLetterEnv(t)
	txn, err := env.TxnRead()
	require.NoError(t, err)
	defer txn.Abort()

	it, err := dbi.Iterate(txn, Prefix[[]byte]([]byte("zz")))
	require.NoError(t, err)
	defer it.Close()

	assert.Empty(t, drain(t, it))
}

func TestSpliteratorClosedBackwardWithDupSortCorrection(t *testing.T) {
	env := newTestEnv(t)
	flags := NewDbiFlags().AddAll(DbiCreate, DbiDupSort).Build()
	dbi, err := env.BuildDbi().WithName([]byte("dup")).WithFlags(flags).Default()
	require.NoError(t, err)

	txn, err := env.TxnWrite()
	require.NoError(t, err)
	mustPut(t, dbi, txn, []byte("b"), []byte("b1"))
	mustPut(t, dbi, txn, []byte("f"), []byte("f1"))
	// three distinct values under the duplicate key "d", so DUPSORT actually
	// stores 3 separate entries rather than collapsing a repeated put.
	mustPut(t, dbi, txn, []byte("d"), []byte("d1"))
	mustPut(t, dbi, txn, []byte("d"), []byte("d2"))
	mustPut(t, dbi, txn, []byte("d"), []byte("d3"))
	require.NoError(t, txn.Commit())

	rtxn, err := env.TxnRead()
	require.NoError(t, err)
	defer rtxn.Abort()

	it, err := dbi.Iterate(rtxn, ClosedBackward[[]byte]([]byte("b"), []byte("d")))
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for {
		k, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(k))
	}
	// every duplicate entry under "d" is within bounds, then "b"
	assert.Equal(t, []string{"d", "d", "d", "b"}, got)
}
