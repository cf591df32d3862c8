package intervalset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func inst(start, end int64, busy bool) EventInstance {
	return EventInstance{StartTS: start, EndTS: end, Busy: busy}
}

func TestMergeNoOverlap(t *testing.T) {
	_, ok := Merge(inst(0, 4, false), inst(5, 10, false))
	assert.False(t, ok)
}

func TestMergeOverlapWithoutExtending(t *testing.T) {
	e1 := inst(1, 10, false)
	merged, ok := Merge(e1, inst(5, 7, false))
	assert.True(t, ok)
	assert.Equal(t, e1, merged)
}

func TestMergeOverlapWithExtending(t *testing.T) {
	merged, ok := Merge(inst(1, 10, false), inst(5, 15, false))
	assert.True(t, ok)
	assert.Equal(t, inst(1, 15, false), merged)
}

func TestRemoveInstanceNoOverlap(t *testing.T) {
	res := removeInstance(inst(0, 4, false), inst(5, 10, true))
	assert.Equal(t, noOverlap, res.kind)
}

func TestRemoveInstanceCompleteOverlap(t *testing.T) {
	res := removeInstance(inst(0, 4, false), inst(0, 10, true))
	assert.Equal(t, empty, res.kind)
}

func TestRemoveInstancePartialSplitIn1(t *testing.T) {
	res := removeInstance(inst(0, 4, false), inst(3, 10, true))
	assert.Equal(t, overlapEnd, res.kind)
	assert.Equal(t, []EventInstance{inst(0, 3, false)}, res.result.Inner())

	// Reversed: free/busy roles swapped.
	res = removeInstance(inst(3, 10, false), inst(0, 4, true))
	assert.Equal(t, overlapBeginning, res.kind)
	assert.Equal(t, []EventInstance{inst(4, 10, false)}, res.result.Inner())
}

func TestRemoveInstancePartialSplitIn2(t *testing.T) {
	res := removeInstance(inst(2, 14, false), inst(3, 10, true))
	assert.Equal(t, split, res.kind)
	assert.Equal(t, []EventInstance{inst(2, 3, false), inst(10, 14, false)}, res.result.Inner())

	// Reversed ordering is a complete overlap.
	res = removeInstance(inst(3, 10, false), inst(2, 14, true))
	assert.Equal(t, empty, res.kind)
}

func TestRemoveBusyFromFree1(t *testing.T) {
	free := New([]EventInstance{inst(5, 100, false)})
	busy := New([]EventInstance{inst(2, 40, false), inst(50, 70, false), inst(72, 75, false)})
	free.Subtract(busy, 0)

	res := free.Inner()
	assert.Len(t, res, 3)
	assert.Equal(t, inst(40, 50, false), res[0])
	assert.Equal(t, inst(70, 72, false), res[1])
	assert.Equal(t, inst(75, 100, false), res[2])
}

func TestRemoveBusyFromFree2(t *testing.T) {
	free := New([]EventInstance{inst(0, 71, false), inst(72, 74, false), inst(100, 140, false)})
	busy := New([]EventInstance{inst(2, 40, false), inst(50, 70, false), inst(72, 75, false)})
	free.Subtract(busy, 0)

	res := free.Inner()
	assert.Len(t, res, 4)
	assert.Equal(t, inst(0, 2, false), res[0])
	assert.Equal(t, inst(40, 50, false), res[1])
	assert.Equal(t, inst(70, 71, false), res[2])
	assert.Equal(t, inst(100, 140, false), res[3])
}

func TestCompatibleEventsEmpty(t *testing.T) {
	assert.Equal(t, 0, New(nil).Len())
}

func TestCompatibleEventsSingle(t *testing.T) {
	e1 := inst(0, 2, false)
	set := New([]EventInstance{e1})
	assert.Equal(t, []EventInstance{e1}, set.Inner())
}

func TestCompatibleEventsDuplicate(t *testing.T) {
	e1 := inst(0, 2, false)
	set := New([]EventInstance{e1, inst(0, 2, false)})
	assert.Equal(t, []EventInstance{e1}, set.Inner())
}

func TestCompatibleEventsDisjoint(t *testing.T) {
	e1, e2 := inst(0, 2, false), inst(5, 10, false)
	set := New([]EventInstance{e1, e2})
	assert.Equal(t, []EventInstance{e1, e2}, set.Inner())
}

func TestCompatibleEventsCoalesceUnordered(t *testing.T) {
	e1 := inst(5, 10, false)
	e2 := inst(1, 7, false)
	e3 := inst(6, 14, false)
	e4 := inst(20, 30, false)
	e5 := inst(24, 40, false)
	e6 := inst(44, 50, false)
	set := New([]EventInstance{e1, e2, e3, e4, e5, e6})

	want := []EventInstance{inst(1, 14, false), inst(20, 40, false), e6}
	assert.Equal(t, want, set.Inner())
}

func TestCompatibleEventsCoalesceUnorderedNoTrailing(t *testing.T) {
	e1 := inst(5, 10, false)
	e2 := inst(1, 7, false)
	e3 := inst(6, 14, false)
	e4 := inst(20, 30, false)
	e5 := inst(24, 40, false)
	set := New([]EventInstance{e1, e2, e3, e4, e5})

	want := []EventInstance{inst(1, 14, false), inst(20, 40, false)}
	assert.Equal(t, want, set.Inner())
}

func TestAnotherFreeBusy(t *testing.T) {
	free := make([]EventInstance, 0, 100)
	for i := int64(0); i < 100; i++ {
		free = append(free, inst(i*10+5, i*10+8, false))
	}
	busy := make([]EventInstance, 0, 200)
	for i := int64(0); i < 200; i++ {
		busy = append(busy, inst(i*10+6, i*10+7, false))
	}

	freeSet := New(free)
	busySet := New(busy)
	freeSet.Subtract(busySet, 0)
	assert.Equal(t, 200, freeSet.Len())
}

func TestSingleEvent(t *testing.T) {
	e1 := inst(0, 10, false)
	fb := GetFreeBusy([]EventInstance{e1})
	assert.Equal(t, 1, fb.Free.Len())
	assert.Equal(t, New([]EventInstance{e1}), fb.Free)
}

func TestNoFreeEvent(t *testing.T) {
	fb := GetFreeBusy([]EventInstance{inst(0, 10, true)})
	assert.Equal(t, 0, fb.Free.Len())
}

func TestSimpleFreeBusy(t *testing.T) {
	fb := GetFreeBusy([]EventInstance{inst(0, 10, false), inst(3, 5, true)})
	assert.Equal(t, []EventInstance{inst(0, 3, false), inst(5, 10, false)}, fb.Free.Inner())
}

// Invariants beyond the ported fixtures: New is idempotent, Subtract never
// grows the instance count, subtracting the empty set is a no-op, and
// subtracting the same busy set twice is the same as subtracting it once.
func TestNewIsIdempotent(t *testing.T) {
	items := []EventInstance{inst(5, 10, false), inst(1, 7, false), inst(20, 30, false)}
	once := New(items)
	twice := New(once.Inner())
	assert.Equal(t, once, twice)
}

func TestSubtractEmptyIsNoop(t *testing.T) {
	free := New([]EventInstance{inst(0, 10, false), inst(20, 30, false)})
	before := free.Inner()
	free.Subtract(New(nil), 0)
	assert.Equal(t, before, free.Inner())
}

func TestDoubleSubtractEqualsSingleSubtract(t *testing.T) {
	busy := New([]EventInstance{inst(2, 5, false), inst(8, 9, false)})

	once := New([]EventInstance{inst(0, 10, false)})
	once.Subtract(busy, 0)

	twice := New([]EventInstance{inst(0, 10, false)})
	twice.Subtract(busy, 0)
	twice.Subtract(busy, 0)

	assert.Equal(t, once, twice)
}

func TestTouchingIntervalsCoalesce(t *testing.T) {
	set := New([]EventInstance{inst(0, 5, false), inst(5, 10, false)})
	assert.Equal(t, []EventInstance{inst(0, 10, false)}, set.Inner())
}

func TestExactEqualBusyYieldsEmptyFree(t *testing.T) {
	free := New([]EventInstance{inst(0, 10, false)})
	free.Subtract(New([]EventInstance{inst(0, 10, false)}), 0)
	assert.True(t, free.IsEmpty())
}

func TestSubtractResultIsDisjointAndSorted(t *testing.T) {
	free := New([]EventInstance{inst(0, 100, false)})
	busy := New([]EventInstance{inst(10, 20, false), inst(30, 35, false), inst(60, 90, false)})
	free.Subtract(busy, 0)

	result := free.Inner()
	for i := 1; i < len(result); i++ {
		assert.LessOrEqual(t, result[i-1].EndTS, result[i].StartTS)
		assert.Less(t, result[i-1].StartTS, result[i].StartTS)
	}
}
