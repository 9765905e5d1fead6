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
	"math/bits"
	"sync/atomic"
)

// refCounter tracks live Txn users (and Env calls such as Stat or Copy while
// they run) against an Env so that Close only blocks (fails) while the
// count can't be proven zero, without taking a lock on every
// acquire/release. Cursors take no reference of their own; a cursor counts
// only through the Txn it is currently bound to.
//
// Three variants exist behind this interface, selected at Env construction
// time per spec Design Notes: the default striped implementation, a
// single-threaded variant for Envs declared SingleThreaded, and a no-op
// variant used when runtime checks are disabled.
type refCounter interface {
	acquire() (releaser, error)
	close(onZero func() error) error
}

type releaser interface {
	release()
}

// ---- striped implementation -------------------------------------------

// stripeClosedSentinel marks a stripe that reached CLOSED with a zero
// count. It must never collide with a legitimate in-flight negative count
// (negatives are used during CLOSING to freeze new acquires while letting
// outstanding releases complete).
const stripeClosedSentinel = int32(-1 << 31)

// maxStripeRefCount is the largest ref count a single stripe may hold
// before the encoding's sign bit trick breaks down. Exceeding it is a
// programmer error, not a recoverable condition.
const maxStripeRefCount = 1<<31 - 2

type stripedCounter struct {
	stripes []int32 // atomically accessed; sign bit multiplexes open/closing
	mask    uint64
	state   atomic.Int32 // refState
	seq     atomic.Uint64
}

type refState int32

const (
	stateOpen refState = iota
	stateClosing
	stateClosed
)

// stripeCountForCPUs picks a power-of-two stripe count scaled to
// GOMAXPROCS, per spec Design Notes ("power-of-two stripe count and a
// bit-AND mask").
func stripeCountForCPUs(cpus int) int {
	n := 1
	for n < cpus*4 && n < 256 {
		n <<= 1
	}
	if n < 8 {
		n = 8
	}
	return n
}

func newStripedCounter(stripeCount int) *stripedCounter {
	if stripeCount <= 0 || stripeCount&(stripeCount-1) != 0 {
		// round up to next power of two
		stripeCount = 1 << bits.Len(uint(stripeCount))
	}
	return &stripedCounter{
		stripes: make([]int32, stripeCount),
		mask:    uint64(stripeCount - 1),
	}
}

// stafford13 is the Stafford variant 13 64-bit mixer, used here over a
// monotonic acquire sequence rather than a JVM-style thread id (Go exposes
// no stable goroutine id) -- see DESIGN.md's Open Question resolution.
func stafford13(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (c *stripedCounter) stripeIndex() uint64 {
	seq := c.seq.Add(1)
	return stafford13(seq) & c.mask
}

type stripedReleaser struct {
	c       *stripedCounter
	idx     uint64
	released atomic.Bool
}

func (r *stripedReleaser) release() {
	if r.released.Swap(true) {
		return // idempotent
	}
	r.c.releaseStripe(r.idx)
}

func (c *stripedCounter) acquire() (releaser, error) {
	if refState(c.state.Load()) != stateOpen {
		return nil, ErrAlreadyClosed
	}
	idx := c.stripeIndex()
	v := atomic.AddInt32(&c.stripes[idx], 1)
	if v < 0 {
		// We raced with close(): the stripe had already been negated to
		// freeze acquires. Undo and fail, never leaving a torn state.
		atomic.AddInt32(&c.stripes[idx], -1)
		return nil, ErrAlreadyClosed
	}
	if v > maxStripeRefCount {
		panic("kv: reference counter stripe overflow")
	}
	return &stripedReleaser{c: c, idx: idx}, nil
}

func (c *stripedCounter) releaseStripe(idx uint64) {
	for {
		cur := atomic.LoadInt32(&c.stripes[idx])
		if cur == stripeClosedSentinel {
			panic("kv: release on a stripe already at CLOSED sentinel")
		}
		var next int32
		if cur > 0 {
			next = cur - 1
		} else {
			// stripe is in the CLOSING, negated-count encoding: releasing
			// moves it toward zero (i.e. adds 1, since cur is negative).
			next = cur + 1
		}
		if atomic.CompareAndSwapInt32(&c.stripes[idx], cur, next) {
			if next == 0 && refState(c.state.Load()) != stateOpen {
				// Mark CLOSED-at-zero so subsequent acquire attempts see
				// the sentinel instead of a reusable zero.
				atomic.CompareAndSwapInt32(&c.stripes[idx], 0, stripeClosedSentinel)
			}
			return
		}
	}
}

func (c *stripedCounter) close(onZero func() error) error {
	if !c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing)) {
		return ErrAlreadyClosed
	}

	var total int32
	for i := range c.stripes {
		for {
			cur := atomic.LoadInt32(&c.stripes[i])
			if cur <= 0 {
				// Already zero or already negated by a concurrent close
				// attempt (can't happen under single-close discipline, but
				// CAS guards it regardless).
				if cur == 0 {
					atomic.CompareAndSwapInt32(&c.stripes[i], 0, stripeClosedSentinel)
				}
				break
			}
			if atomic.CompareAndSwapInt32(&c.stripes[i], cur, -cur) {
				total += cur
				break
			}
		}
	}

	var err error
	if total > 0 {
		err = EnvInUse(total)
	} else if onZero != nil {
		err = onZero()
	}
	if err != nil {
		// Roll back: reopen the stripes we just negated (and return the
		// CLOSED-at-zero sentinels to zero) so in-flight releasers can still
		// find a consistent counter and new acquires succeed again.
		c.state.Store(int32(stateOpen))
		for i := range c.stripes {
			for {
				cur := atomic.LoadInt32(&c.stripes[i])
				if cur >= 0 {
					break
				}
				next := -cur
				if cur == stripeClosedSentinel {
					next = 0
				}
				if atomic.CompareAndSwapInt32(&c.stripes[i], cur, next) {
					break
				}
			}
		}
		return err
	}
	c.state.Store(int32(stateClosed))
	return nil
}

// ---- single-threaded implementation -----------------------------------

// singleThreadedRefCounter is a plain integer counter for Envs declared
// single-threaded, avoiding the striping machinery's overhead entirely.
type singleThreadedRefCounter struct {
	count int
	state refState
}

type plainReleaser struct {
	c *singleThreadedRefCounter
}

func (r *plainReleaser) release() {
	r.c.count--
}

func (c *singleThreadedRefCounter) acquire() (releaser, error) {
	if c.state != stateOpen {
		return nil, ErrAlreadyClosed
	}
	c.count++
	return &plainReleaser{c: c}, nil
}

func (c *singleThreadedRefCounter) close(onZero func() error) error {
	if c.state != stateOpen {
		return ErrAlreadyClosed
	}
	if c.count > 0 {
		return EnvInUse(int32(c.count))
	}
	if onZero != nil {
		if err := onZero(); err != nil {
			return err
		}
	}
	c.state = stateClosed
	return nil
}

// ---- no-op implementation -----------------------------------------------

// noOpRefCounter is used when runtime user-tracking is disabled globally.
// It performs no bookkeeping and never blocks a close.
type noOpRefCounter struct {
	closed atomic.Bool
}

type noOpReleaser struct{}

func (noOpReleaser) release() {}

func (c *noOpRefCounter) acquire() (releaser, error) {
	if c.closed.Load() {
		return nil, ErrAlreadyClosed
	}
	return noOpReleaser{}, nil
}

func (c *noOpRefCounter) close(onZero func() error) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	if onZero != nil {
		return onZero()
	}
	return nil
}
