// Package intervalset implements the interval algebra the availability
// engine is built on: coalescing a set of possibly-overlapping instances
// into a sorted, non-overlapping run, and subtracting one such run from
// another (busy time removed from free time).
package intervalset

import (
	"sort"

	"github.com/nettuhq/scheduler/domain"
)

// EventInstance is one concrete occurrence: a half-open [StartTS, EndTS)
// span, tagged free (Busy == false) or busy (Busy == true).
type EventInstance struct {
	StartTS domain.Millis
	EndTS   domain.Millis
	Busy    bool
}

// HasOverlap reports whether the two instances share any point in time,
// inclusive of touching endpoints.
func HasOverlap(a, b EventInstance) bool {
	return a.StartTS <= b.EndTS && a.EndTS >= b.StartTS
}

func canMerge(a, b EventInstance) bool {
	return a.Busy == b.Busy && HasOverlap(a, b)
}

// Merge combines two overlapping, same-busyness instances into their union.
// The second return value is false if they cannot be merged.
func Merge(a, b EventInstance) (EventInstance, bool) {
	if !canMerge(a, b) {
		return EventInstance{}, false
	}
	start := a.StartTS
	if b.StartTS < start {
		start = b.StartTS
	}
	end := a.EndTS
	if b.EndTS > end {
		end = b.EndTS
	}
	return EventInstance{StartTS: start, EndTS: end, Busy: a.Busy}, true
}

// Set is a list of EventInstances guaranteed to be sorted by ascending
// StartTS and pairwise non-overlapping (touching, same-busyness instances
// are coalesced at construction time). The zero value is an empty set.
type Set struct {
	events []EventInstance
}

// New sorts and coalesces items into a Set.
func New(items []EventInstance) Set {
	sorted := make([]EventInstance, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTS < sorted[j].StartTS })

	events := make([]EventInstance, 0, len(sorted))
	for i, instance := range sorted {
		if i == 0 {
			events = append(events, instance)
			continue
		}
		last := events[len(events)-1]
		if merged, ok := Merge(instance, last); ok {
			events[len(events)-1] = merged
		} else {
			events = append(events, instance)
		}
	}
	return Set{events: events}
}

// PushFront prepends instance if it does not overlap the current first
// element. Reports whether the push happened.
func (s *Set) PushFront(instance EventInstance) bool {
	if len(s.events) > 0 && s.events[0].StartTS < instance.EndTS {
		return false
	}
	s.events = append([]EventInstance{instance}, s.events...)
	return true
}

// PushBack appends instance if it does not overlap the current last
// element. Reports whether the push happened.
func (s *Set) PushBack(instance EventInstance) bool {
	if len(s.events) > 0 && s.events[len(s.events)-1].EndTS > instance.StartTS {
		return false
	}
	s.events = append(s.events, instance)
	return true
}

// Extend pushes every instance of other onto the back of s, in order.
func (s *Set) Extend(other Set) {
	for _, instance := range other.events {
		s.PushBack(instance)
	}
}

// Inner returns the underlying slice. Callers must not mutate it.
func (s Set) Inner() []EventInstance {
	return s.events
}

// Len reports the number of instances in the set.
func (s Set) Len() int {
	return len(s.events)
}

// Get returns the instance at index, or false if out of range.
func (s Set) Get(index int) (EventInstance, bool) {
	if index < 0 || index >= len(s.events) {
		return EventInstance{}, false
	}
	return s.events[index], true
}

// IsEmpty reports whether the set has no instances.
func (s Set) IsEmpty() bool {
	return len(s.events) == 0
}

// subtractKind classifies how a single busy instance overlaps a single
// free instance.
type subtractKind int

const (
	noOverlap subtractKind = iota
	empty
	split
	overlapBeginning
	overlapEnd
)

type subtractResult struct {
	kind   subtractKind
	result Set
}

// removeInstance classifies how instance overlaps free, and returns the
// remaining free interval(s), if any.
func removeInstance(free, instance EventInstance) subtractResult {
	if !HasOverlap(free, instance) || free.StartTS == instance.EndTS {
		return subtractResult{kind: noOverlap}
	}

	if instance.StartTS <= free.StartTS && instance.EndTS >= free.EndTS {
		return subtractResult{kind: empty}
	}

	if instance.StartTS > free.StartTS && instance.EndTS < free.EndTS {
		left := EventInstance{StartTS: free.StartTS, EndTS: instance.StartTS, Busy: false}
		right := EventInstance{StartTS: instance.EndTS, EndTS: free.EndTS, Busy: false}
		return subtractResult{kind: split, result: New([]EventInstance{left, right})}
	}

	if free.StartTS >= instance.StartTS {
		remaining := New([]EventInstance{{StartTS: instance.EndTS, EndTS: free.EndTS, Busy: false}})
		return subtractResult{kind: overlapBeginning, result: remaining}
	}

	remaining := New([]EventInstance{{StartTS: free.StartTS, EndTS: instance.StartTS, Busy: false}})
	return subtractResult{kind: overlapEnd, result: remaining}
}

// removeInstances subtracts every element of instances (starting at skip)
// that still matters for free from free, returning the surviving free
// fragment(s). skip lets a caller resume scanning busy instances that
// already proved to start past the fragment being processed, which keeps
// the overall Subtract call close to linear instead of quadratic.
func removeInstances(free EventInstance, instances Set, skip int) Set {
	withoutConflict := New(nil)

	conflict := false
	all := instances.Inner()
	for pos := skip; pos < len(all); pos++ {
		instance := all[pos]
		if instance.StartTS >= free.EndTS {
			break
		}
		res := removeInstance(free, instance)
		var fragment *Set
		switch res.kind {
		case overlapEnd:
			conflict = true
			fragment = &res.result
		case overlapBeginning:
			conflict = true
			remaining := res.result
			remaining.Subtract(instances, pos+1)
			fragment = &remaining
		case split:
			conflict = true
			parts := res.result.Inner()
			first, last := parts[0], parts[1]
			remaining := New([]EventInstance{last})
			remaining.Subtract(instances, pos+1)
			remaining.PushFront(first)
			fragment = &remaining
		case empty:
			conflict = true
		case noOverlap:
			// Only the last busy instance scanned decides whether free
			// survives untouched; an earlier conflict can be undone by a
			// later non-overlapping instance appearing after it in order.
			conflict = false
		}
		if fragment != nil {
			withoutConflict.Extend(*fragment)
		}
	}
	if !conflict {
		withoutConflict.PushBack(free)
	}
	return withoutConflict
}

// Subtract removes every instance in other from s in place, replacing each
// surviving free fragment. skip is the index into other to start scanning
// from for every element of s; callers performing a single top-level
// subtraction always pass 0.
func (s *Set) Subtract(other Set, skip int) {
	result := make([]EventInstance, 0, len(s.events))
	for _, free := range s.events {
		remainder := removeInstances(free, other, skip)
		result = append(result, remainder.Inner()...)
	}
	s.events = result
}

// FreeBusy splits a mixed instance list into coalesced free and busy sets,
// with every busy instance subtracted out of the free set.
type FreeBusy struct {
	Free Set
	Busy Set
}

// Separate partitions instances into free and busy slices, preserving order.
func Separate(instances []EventInstance) (free, busy []EventInstance) {
	for _, instance := range instances {
		if instance.Busy {
			busy = append(busy, instance)
		} else {
			free = append(free, instance)
		}
	}
	return free, busy
}

// GetFreeBusy builds the free/busy view of instances: busy instances are
// coalesced and subtracted from the coalesced free instances.
func GetFreeBusy(instances []EventInstance) FreeBusy {
	freeItems, busyItems := Separate(instances)
	free := New(freeItems)
	busy := New(busyItems)
	free.Subtract(busy, 0)
	return FreeBusy{Free: free, Busy: busy}
}
