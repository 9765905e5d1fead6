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
)

func TestKeyRangeConstructors(t *testing.T) {
	all := All[string]()
	assert.Equal(t, Forward, all.direction)
	assert.False(t, all.hasStart)
	assert.False(t, all.hasStop)
	assert.False(t, all.hasPrefix)

	assert.Equal(t, Backward, AllBackward[string]().direction)

	al := AtLeast("b")
	assert.True(t, al.hasStart)
	assert.True(t, al.startInclusive)
	assert.False(t, al.hasStop)
	assert.Equal(t, "b", al.start)

	am := AtMost("d")
	assert.True(t, am.hasStop)
	assert.True(t, am.stopInclusive)
	assert.Equal(t, "d", am.stop)

	gt := GreaterThan("b")
	assert.True(t, gt.hasStart)
	assert.False(t, gt.startInclusive)

	lt := LessThan("d")
	assert.True(t, lt.hasStop)
	assert.False(t, lt.stopInclusive)

	o := Open("b", "d")
	assert.False(t, o.startInclusive)
	assert.False(t, o.stopInclusive)

	cl := Closed("b", "d")
	assert.True(t, cl.startInclusive)
	assert.True(t, cl.stopInclusive)

	oc := OpenClosed("b", "d")
	assert.False(t, oc.startInclusive)
	assert.True(t, oc.stopInclusive)

	co := ClosedOpen("b", "d")
	assert.True(t, co.startInclusive)
	assert.False(t, co.stopInclusive)

	p := Prefix("pre")
	assert.True(t, p.hasPrefix)
	assert.Equal(t, "pre", p.prefix)
	assert.Equal(t, Forward, p.direction)

	assert.Equal(t, Backward, PrefixBackward("pre").direction)
}

func TestKeyRangeBackwardVariantsFlipDirectionOnly(t *testing.T) {
	forward := Closed("b", "d")
	backward := ClosedBackward("b", "d")

	assert.Equal(t, forward.start, backward.start)
	assert.Equal(t, forward.stop, backward.stop)
	assert.Equal(t, forward.startInclusive, backward.startInclusive)
	assert.Equal(t, forward.stopInclusive, backward.stopInclusive)
	assert.Equal(t, Forward, forward.direction)
	assert.Equal(t, Backward, backward.direction)
}
