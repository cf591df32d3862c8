package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nettuhq/scheduler/intervalset"
)

func ev(start, end int64) intervalset.EventInstance {
	return intervalset.EventInstance{StartTS: start, EndTS: end, Busy: false}
}

func TestSlotsEmptyFree(t *testing.T) {
	slots := Slots(intervalset.New(nil), Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Empty(t, slots)
}

func TestSlotsEventTooNarrow(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(2, 12)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Empty(t, slots)
}

func TestSlotsOneEventOneSlot(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(2, 22)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Equal(t, []Slot{{Start: 10, Duration: 10, AvailableUntil: 22}}, slots)
}

func TestSlotsOneEventThreeSlots(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(2, 42)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Equal(t, []Slot{
		{Start: 10, Duration: 10, AvailableUntil: 42},
		{Start: 20, Duration: 10, AvailableUntil: 42},
		{Start: 30, Duration: 10, AvailableUntil: 42},
	}, slots)
}

func TestSlotsTwoEvents(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(0, 22), ev(30, 50)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Equal(t, []Slot{
		{Start: 0, Duration: 10, AvailableUntil: 22},
		{Start: 10, Duration: 10, AvailableUntil: 22},
		{Start: 30, Duration: 10, AvailableUntil: 50},
		{Start: 40, Duration: 10, AvailableUntil: 50},
	}, slots)
}

func TestSlotsManyEvents(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{
		ev(0, 2), ev(80, 90), ev(90, 100), ev(33, 50), ev(140, 160), ev(99, 120),
	})
	slots := Slots(free, Options{StartTS: 0, EndTS: 99, Duration: 10, Interval: 10})
	assert.Equal(t, []Slot{
		{Start: 40, Duration: 10, AvailableUntil: 50},
		{Start: 80, Duration: 10, AvailableUntil: 120},
	}, slots)
}

func TestSlotsFitsRightAtEnd(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(81, 100)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 10, Interval: 10})
	assert.Equal(t, []Slot{{Start: 90, Duration: 10, AvailableUntil: 100}}, slots)
}

func TestSlotsZeroDurationYieldsNone(t *testing.T) {
	free := intervalset.New([]intervalset.EventInstance{ev(0, 100)})
	slots := Slots(free, Options{StartTS: 0, EndTS: 100, Duration: 0, Interval: 10})
	assert.Empty(t, slots)
}

func TestValidateIntervalBounds(t *testing.T) {
	assert.False(t, ValidateInterval(MinSlotInterval-1))
	assert.True(t, ValidateInterval(MinSlotInterval))
	assert.True(t, ValidateInterval(MaxSlotInterval))
	assert.False(t, ValidateInterval(MaxSlotInterval+1))
}
