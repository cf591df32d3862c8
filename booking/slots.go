// Package booking enumerates discrete bookable slots from a free
// intervalset.Set, and plans multi-user service booking slots by
// intersecting each member's free/busy view.
package booking

import (
	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/intervalset"
)

// MinSlotInterval and MaxSlotInterval bound the allowed discretization step
// for slot enumeration.
const (
	MinSlotInterval = 10 * 60 * 1000 // 10 minutes
	MaxSlotInterval = 60 * 60 * 1000 // 60 minutes
)

// Slot is one bookable start within a free interval, carrying the true end
// of the containing free interval (AvailableUntil), not clamped to the
// query's end_ts.
type Slot struct {
	Start          domain.Millis
	Duration       domain.Millis
	AvailableUntil domain.Millis
}

// Options configures slot enumeration over a fixed window.
type Options struct {
	StartTS  domain.Millis
	EndTS    domain.Millis
	Duration domain.Millis
	Interval domain.Millis
}

// ValidateInterval reports whether interval falls within
// [MinSlotInterval, MaxSlotInterval].
func ValidateInterval(interval domain.Millis) bool {
	return interval >= MinSlotInterval && interval <= MaxSlotInterval
}

// cursorFits returns the free instance containing [cursor, cursor+duration],
// or false if no instance fully contains it.
func cursorFits(cursor, duration domain.Millis, free intervalset.Set) (intervalset.EventInstance, bool) {
	for _, event := range free.Inner() {
		if event.StartTS <= cursor && event.EndTS >= cursor+duration {
			return event, true
		}
	}
	return intervalset.EventInstance{}, false
}

// Slots steps a cursor across [opts.StartTS, opts.EndTS) at opts.Interval,
// emitting a Slot wherever [cursor, cursor+duration) fits entirely within
// one free instance. A non-positive duration yields no slots.
func Slots(free intervalset.Set, opts Options) []Slot {
	if opts.Duration < 1 {
		return nil
	}

	var slots []Slot
	for cursor := opts.StartTS; cursor+opts.Duration <= opts.EndTS; cursor += opts.Interval {
		if event, ok := cursorFits(cursor, opts.Duration, free); ok {
			slots = append(slots, Slot{Start: cursor, Duration: opts.Duration, AvailableUntil: event.EndTS})
		}
	}
	return slots
}
