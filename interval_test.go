package imagefusion

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestIntervalContains(t *testing.T) {
	iv := Interval{Lo: 1, Hi: 5, LoOpen: true}
	assert.False(t, iv.Contains(1, false))
	assert.True(t, iv.Contains(1, true)) // closed-only collapse
	assert.True(t, iv.Contains(5, false))
	assert.False(t, iv.Contains(5.1, false))

	inf := All()
	assert.True(t, inf.Contains(math.Inf(1), false))
	assert.True(t, inf.Contains(-1e300, false))
}

func TestIntervalEmpty(t *testing.T) {
	assert.True(t, Interval{Lo: 3, Hi: 2}.Empty())
	assert.True(t, OpenInterval(3, 3).Empty())
	assert.False(t, ClosedInterval(3, 3).Empty())
}

func TestIntervalSetCanonical(t *testing.T) {
	var s IntervalSet
	s.Add(ClosedInterval(5, 7))
	s.Add(ClosedInterval(1, 2))
	s.Add(ClosedInterval(6, 9))

	want := []Interval{ClosedInterval(1, 2), ClosedInterval(5, 9)}
	if diff := cmp.Diff(want, s.Intervals()); diff != "" {
		t.Errorf("interval set mismatch (-want +got):\n%s", diff)
	}

	// bridging interval collapses everything into one
	s.Add(ClosedInterval(2, 5))
	want = []Interval{ClosedInterval(1, 9)}
	if diff := cmp.Diff(want, s.Intervals()); diff != "" {
		t.Errorf("interval set mismatch (-want +got):\n%s", diff)
	}
}

func TestIntervalSetOpenEndpoints(t *testing.T) {
	var s IntervalSet
	s.Add(Interval{Lo: 0, Hi: 1, HiOpen: true})
	s.Add(Interval{Lo: 1, Hi: 2, LoOpen: true})
	// both sides open at the shared endpoint: stays two intervals
	assert.Len(t, s.Intervals(), 2)
	assert.False(t, s.Contains(1, false))
	assert.True(t, s.Contains(1, true))

	var u IntervalSet
	u.Add(Interval{Lo: 0, Hi: 1, HiOpen: true})
	u.Add(ClosedInterval(1, 2))
	// one closed side: merges
	assert.Len(t, u.Intervals(), 1)
	assert.True(t, u.Contains(1, false))
}

func TestIntervalSetUnion(t *testing.T) {
	a := NewIntervalSet(ClosedInterval(0, 1), ClosedInterval(10, 11))
	b := NewIntervalSet(ClosedInterval(0.5, 10.5))
	a.AddSet(b)
	assert.Len(t, a.Intervals(), 1)
	assert.Equal(t, ClosedInterval(0, 11), a.Intervals()[0])
}
