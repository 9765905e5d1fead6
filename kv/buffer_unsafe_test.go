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

func TestUnsafeProxyZeroCopyRoundtrip(t *testing.T) {
	flags := NewEnvFlags().Add(NoSubdir).Build()
	env, err := NewBuilder[Val](UnsafeProxy{}).
		SetMapSize(1 << 20).
		Open(filepath.Join(t.TempDir(), "unsafe.mdb"), flags)
	require.NoError(t, err)
	defer env.Close()

	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	txn, err := env.TxnWrite()
	require.NoError(t, err)
	mustPut(t, dbi, txn, valFromBytes([]byte("k")), valFromBytes([]byte("value")))
	require.NoError(t, txn.Commit())

	rtxn, err := env.TxnRead()
	require.NoError(t, err)
	defer rtxn.Abort()

	v, ok, err := dbi.Get(rtxn, valFromBytes([]byte("k")))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), v.Bytes())
}

func TestUnsafeProxyGetBytesSnapshotsBeforeTxnEnds(t *testing.T) {
	flags := NewEnvFlags().Add(NoSubdir).Build()
	env, err := NewBuilder[Val](UnsafeProxy{}).
		Open(filepath.Join(t.TempDir(), "unsafe2.mdb"), flags)
	require.NoError(t, err)
	defer env.Close()

	dbi, err := env.OpenDbi(nil, EmptyFlags)
	require.NoError(t, err)

	txn, err := env.TxnWrite()
	require.NoError(t, err)
	mustPut(t, dbi, txn, valFromBytes([]byte("k")), valFromBytes([]byte("value")))
	require.NoError(t, txn.Commit())

	rtxn, err := env.TxnRead()
	require.NoError(t, err)

	v, ok, err := dbi.Get(rtxn, valFromBytes([]byte("k")))
	require.NoError(t, err)
	require.True(t, ok)

	snapshot := UnsafeProxy{}.GetBytes(v)
	rtxn.Abort()

	assert.Equal(t, []byte("value"), snapshot)
}
