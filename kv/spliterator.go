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

// rangeComparator abstracts the "is this key still inside the window"
// tests a Spliterator needs against pre-encoded start/stop bytes. Only a
// host-side implementation exists: the engine binding in use here has no
// hook for a native comparator callback (see ComparatorPolicy's doc), so
// every boundary test runs the proxy's Comparator against bytes already
// produced by In().
type rangeComparator struct {
	cmp        Comparator
	startBytes []byte
	hasStart   bool
	stopBytes  []byte
	hasStop    bool
}

func (r *rangeComparator) compareToStartKey(cur []byte) int {
	return r.cmp(cur, r.startBytes)
}

func (r *rangeComparator) compareToStopKey(cur []byte) int {
	return r.cmp(cur, r.stopBytes)
}

// Spliterator is a single-use, non-splittable, ordered iterator over one
// Dbi's entries within a KeyRange window. It holds the Cursor it was built
// from; closing it closes the cursor. Its characteristics match a Java
// Spliterator's ORDERED|DISTINCT|SORTED|NONNULL: ranges never repeat a key
// and never emit a nil/zero sentinel in place of a real entry.
type Spliterator[T any] struct {
	cursor  *Cursor[T]
	kr      KeyRange[T]
	proxy   BufferProxy[T]
	cmp     *rangeComparator
	started bool
	done    bool
}

// Iterate opens a Cursor on dbi and compiles kr into one of the variants
// described in spec §4.8, selected by (has_prefix?, forward?, has_bounds?).
func (d *Dbi[T]) Iterate(txn *Txn[T], kr KeyRange[T]) (*Spliterator[T], error) {
	cur, err := d.OpenCursor(txn)
	if err != nil {
		return nil, err
	}

	rc := &rangeComparator{cmp: d.cmp}
	if kr.hasStart {
		rc.startBytes = txn.kv.proxy.In(kr.start)
		rc.hasStart = true
	}
	if kr.hasStop {
		rc.stopBytes = txn.kv.proxy.In(kr.stop)
		rc.hasStop = true
	}

	return &Spliterator[T]{cursor: cur, kr: kr, proxy: d.env.proxy, cmp: rc}, nil
}

// Close releases the underlying Cursor. Safe to call more than once.
func (s *Spliterator[T]) Close() error {
	return s.cursor.Close()
}

// Next advances the spliterator and returns the next key/value pair.
// ok is false, with a nil error, once the window is exhausted.
func (s *Spliterator[T]) Next() (key, val T, ok bool, err error) {
	if s.done {
		var zero T
		return zero, zero, false, nil
	}

	if !s.started {
		s.started = true
		return s.seekInitial()
	}

	var op CursorOp
	if s.kr.direction == Forward {
		op = Next
	} else {
		op = Prev
	}

	var zero T
	k, v, found, err := s.cursor.Get(zero, zero, op)
	if err != nil {
		return zero, zero, false, err
	}
	if !found {
		s.done = true
		return zero, zero, false, nil
	}
	if s.kr.hasPrefix {
		if !s.proxy.ContainsPrefix(k, s.kr.prefix) {
			s.done = true
			return zero, zero, false, nil
		}
		return k, v, true, nil
	}
	return s.acceptOrStop(k, v)
}

func (s *Spliterator[T]) seekInitial() (key, val T, ok bool, err error) {
	switch {
	case s.kr.hasPrefix:
		return s.seekPrefixInitial()
	case s.kr.direction == Forward:
		return s.seekBoundedForwardInitial()
	default:
		return s.seekBoundedBackwardInitial()
	}
}

// seekBoundedForwardInitial implements spliterator variants 1 and 2 (falling
// back to unbounded-forward when no start is set).
func (s *Spliterator[T]) seekBoundedForwardInitial() (key, val T, ok bool, err error) {
	var zero T
	var k, v T
	var found bool

	if s.kr.hasStart {
		k, v, found, err = s.cursor.Get(s.kr.start, zero, SetRange)
		if err != nil {
			return zero, zero, false, err
		}
		if !found {
			s.done = true
			return zero, zero, false, nil
		}
		if !s.kr.startInclusive && s.cmp.compareToStartKey(s.proxy.In(k)) == 0 {
			k, v, found, err = s.cursor.Get(zero, zero, Next)
			if err != nil {
				return zero, zero, false, err
			}
			if !found {
				s.done = true
				return zero, zero, false, nil
			}
		}
	} else {
		k, v, found, err = s.cursor.Get(zero, zero, First)
		if err != nil {
			return zero, zero, false, err
		}
		if !found {
			s.done = true
			return zero, zero, false, nil
		}
	}

	return s.acceptOrStop(k, v)
}

// seekBoundedBackwardInitial implements spliterator variant 3, the bounded
// backward walk with DUPSORT-aware correction around the upper bound
// (kr.stop), since LMDB has no SET_RANGE_LE primitive.
func (s *Spliterator[T]) seekBoundedBackwardInitial() (key, val T, ok bool, err error) {
	var zero T
	var k T
	var found bool

	if s.kr.hasStop {
		k, _, found, err = s.cursor.Get(s.kr.stop, zero, SetRange)
		if err != nil {
			return zero, zero, false, err
		}
		if !found {
			k, _, found, err = s.cursor.Get(zero, zero, Last)
		} else {
			cmp := s.cmp.compareToStopKey(s.proxy.In(k))
			switch {
			case cmp == 0 && s.kr.stopInclusive:
				// Advance across duplicate entries of the stop key, then
				// step back onto the last one.
				for {
					nk, _, nfound, nerr := s.cursor.Get(zero, zero, Next)
					if nerr != nil {
						return zero, zero, false, nerr
					}
					if !nfound || s.cmp.compareToStopKey(s.proxy.In(nk)) != 0 {
						if nfound {
							k, _, found, err = s.cursor.Get(zero, zero, Prev)
							if err != nil {
								return zero, zero, false, err
							}
						}
						break
					}
				}
			default:
				// cmp == 0 && exclusive, or cmp > 0 (stop itself absent):
				// either way, step back one position.
				k, _, found, err = s.cursor.Get(zero, zero, Prev)
				if err != nil {
					return zero, zero, false, err
				}
			}
		}
	} else {
		k, _, found, err = s.cursor.Get(zero, zero, Last)
		if err != nil {
			return zero, zero, false, err
		}
	}

	if !found {
		s.done = true
		return zero, zero, false, nil
	}

	_, v, _, err := s.cursor.Get(zero, zero, GetCurrent)
	if err != nil {
		return zero, zero, false, err
	}
	return s.acceptOrStop(k, v)
}

// seekPrefixInitial implements spliterator variants 4 and 5.
func (s *Spliterator[T]) seekPrefixInitial() (key, val T, ok bool, err error) {
	var zero T
	var k, v T
	var found bool

	if s.kr.direction == Forward {
		k, v, found, err = s.cursor.Get(s.kr.prefix, zero, SetRange)
		if err != nil {
			return zero, zero, false, err
		}
		if !found || !s.proxy.ContainsPrefix(k, s.kr.prefix) {
			s.done = true
			return zero, zero, false, nil
		}
		return k, v, true, nil
	}

	oneBigger, hasOneBigger := s.proxy.IncrementLSB(s.kr.prefix)
	if !hasOneBigger {
		k, v, found, err = s.cursor.Get(zero, zero, Last)
	} else {
		k, v, found, err = s.cursor.Get(oneBigger, zero, SetRange)
		if err != nil {
			return zero, zero, false, err
		}
		if found {
			k, v, found, err = s.cursor.Get(zero, zero, Prev)
		} else {
			k, v, found, err = s.cursor.Get(zero, zero, Last)
		}
	}
	if err != nil {
		return zero, zero, false, err
	}
	if !found || !s.proxy.ContainsPrefix(k, s.kr.prefix) {
		s.done = true
		return zero, zero, false, nil
	}
	return k, v, true, nil
}

// acceptOrStop applies the window's far boundary test to a candidate
// key/value pair, used by every variant except prefix (whose termination
// test is ContainsPrefix, checked inline in seekPrefixInitial and Next).
func (s *Spliterator[T]) acceptOrStop(k, v T) (key, val T, ok bool, err error) {
	var zero T
	raw := s.proxy.In(k)

	if s.kr.direction == Forward && s.kr.hasStop {
		c := s.cmp.compareToStopKey(raw)
		if c > 0 || (c == 0 && !s.kr.stopInclusive) {
			s.done = true
			return zero, zero, false, nil
		}
	}
	if s.kr.direction == Backward && s.kr.hasStart {
		c := s.cmp.compareToStartKey(raw)
		if c < 0 || (c == 0 && !s.kr.startInclusive) {
			s.done = true
			return zero, zero, false, nil
		}
	}
	return k, v, true, nil
}
