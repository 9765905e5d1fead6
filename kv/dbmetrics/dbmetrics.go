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

// Package dbmetrics exposes the kv package's runtime counters through
// VictoriaMetrics/metrics, the way erigon-lib's kv package exposes its own
// environment and transaction statistics. The kv package records into these
// metrics on every Txn begin, commit and abort and on every reader check.
// Callers that want a /metrics endpoint register metrics.WritePrometheus
// against this package's default registry; nothing here opens a listener.
package dbmetrics

import (
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var readerSlotsInUse atomic.Int64

var (
	TxnCommitsTotal = metrics.NewCounter(`lmdbkv_txn_commits_total`)
	TxnAbortsTotal  = metrics.NewCounter(`lmdbkv_txn_aborts_total`)

	ReaderSlotAcquiresTotal = metrics.NewCounter(`lmdbkv_reader_slot_acquires_total`)
	ReaderSlotReleasesTotal = metrics.NewCounter(`lmdbkv_reader_slot_releases_total`)

	// ReaderSlotsInUse tracks transactions (read or write) currently holding
	// a reference on their Env, as a proxy for reader-lock-table occupancy.
	ReaderSlotsInUse = metrics.NewGauge(`lmdbkv_reader_slots_inuse`, func() float64 {
		return float64(readerSlotsInUse.Load())
	})

	TxnCommitSeconds = metrics.GetOrCreateSummary(`lmdbkv_txn_commit_seconds`)

	ReaderCheckStaleReclaimedTotal = metrics.NewCounter(`lmdbkv_reader_check_stale_reclaimed_total`)
)

// RecordCommit records a successful Txn.Commit and its wall-clock duration.
func RecordCommit(d time.Duration) {
	TxnCommitsTotal.Inc()
	TxnCommitSeconds.Update(d.Seconds())
}

// RecordAbort records a Txn.Abort.
func RecordAbort() {
	TxnAbortsTotal.Inc()
}

// AcquireReaderSlot records a Txn taking out a reference on its Env.
func AcquireReaderSlot() {
	ReaderSlotAcquiresTotal.Inc()
	readerSlotsInUse.Add(1)
}

// ReleaseReaderSlot records a Txn releasing its reference on its Env.
func ReleaseReaderSlot() {
	ReaderSlotReleasesTotal.Inc()
	readerSlotsInUse.Add(-1)
}

// RecordReaderCheckReclaim records stale reader slots reclaimed by a call to
// Env.ReaderCheck, whether invoked directly or from the background loop.
func RecordReaderCheckReclaim(count int) {
	if count > 0 {
		ReaderCheckStaleReclaimedTotal.Add(count)
	}
}
