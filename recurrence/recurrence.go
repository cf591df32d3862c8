// Package recurrence expands a domain.RecurrenceRule anchored at a
// CalendarEvent's start into concrete occurrences within a window.
package recurrence

import (
	"sort"
	"time"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/intervalset"
)

// Validate rejects a rule whose fields are internally inconsistent. It is
// called whenever a rule is created or changed, before the rule ever
// reaches Expand.
func Validate(rule *domain.RecurrenceRule) error {
	if rule == nil {
		return nil
	}
	if rule.Interval < 1 {
		return domain.NewValidationError("InvalidRecurrenceRule", "interval must be >= 1, got %d", rule.Interval)
	}
	if rule.Count != nil && rule.Until != nil {
		return domain.NewValidationError("InvalidRecurrenceRule", "count and until are mutually exclusive")
	}
	switch rule.Freq {
	case domain.FrequencyDaily:
		if len(rule.ByDay) > 0 || len(rule.ByMonthDay) > 0 {
			return domain.NewValidationError("InvalidRecurrenceRule", "byday/bymonthday are incompatible with DAILY")
		}
	case domain.FrequencyWeekly:
		if len(rule.ByMonthDay) > 0 {
			return domain.NewValidationError("InvalidRecurrenceRule", "bymonthday is incompatible with WEEKLY")
		}
	case domain.FrequencyMonthly, domain.FrequencyYearly:
		if len(rule.ByDay) > 0 && len(rule.ByMonthDay) > 0 {
			return domain.NewValidationError("InvalidRecurrenceRule", "byday and bymonthday cannot both be set")
		}
	default:
		return domain.NewValidationError("InvalidRecurrenceRule", "unknown frequency %q", rule.Freq)
	}
	if len(rule.BySetPos) > 0 && len(rule.ByDay) == 0 && len(rule.ByMonthDay) == 0 {
		return domain.NewValidationError("InvalidRecurrenceRule", "bysetpos requires byday or bymonthday")
	}
	return nil
}

// Expand produces the sorted, exdate-filtered occurrences of event that
// intersect [from, to). If event has no recurrence, the singleton
// occurrence is returned iff it intersects the window.
func Expand(event *domain.CalendarEvent, settings domain.CalendarSettings, from, to domain.Millis) ([]intervalset.EventInstance, error) {
	if event.Duration == 0 {
		return nil, nil
	}

	if event.Recurrence == nil {
		if event.StartTS < to && event.EndTS() > from {
			return []intervalset.EventInstance{{StartTS: event.StartTS, EndTS: event.EndTS(), Busy: event.Busy}}, nil
		}
		return nil, nil
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, domain.NewValidationError("InvalidTimezone", "unknown timezone %q", settings.Timezone)
	}

	starts := generate(event.StartTS, event.Recurrence, loc, to)
	exdates := make(map[domain.Millis]struct{}, len(event.Exdates))
	for _, ex := range event.Exdates {
		exdates[ex] = struct{}{}
	}

	instances := make([]intervalset.EventInstance, 0, len(starts))
	for _, start := range starts {
		if _, excluded := exdates[start]; excluded {
			continue
		}
		end := start + event.Duration
		if start < to && end > from {
			instances = append(instances, intervalset.EventInstance{StartTS: start, EndTS: end, Busy: event.Busy})
		}
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].StartTS < instances[j].StartTS })
	return instances, nil
}

// Occurs reports whether ts is a valid occurrence start of event's
// recurrence rule (count/until honored, exdates ignored). Used by
// ShouldClearExdates to tell whether a previously recorded exception
// timestamp still corresponds to an occurrence under a new rule.
func Occurs(event *domain.CalendarEvent, settings domain.CalendarSettings, ts domain.Millis) (bool, error) {
	if event.Recurrence == nil {
		return ts == event.StartTS, nil
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return false, domain.NewValidationError("InvalidTimezone", "unknown timezone %q", settings.Timezone)
	}
	for _, start := range generate(event.StartTS, event.Recurrence, loc, ts+1) {
		if start == ts {
			return true, nil
		}
	}
	return false, nil
}

// ShouldClearExdates decides, when a recurrence rule changes but the
// anchor start stays the same, whether the event's existing exdates
// should be dropped. It re-checks each exdate against the new rule and
// keeps only those that still land on a real occurrence; if none survive
// unchanged the caller clears the list, otherwise the surviving subset is
// kept. Callers whose start_ts or duration changed must clear
// unconditionally before calling this (see domain.CalendarEvent's
// invariant note).
func ShouldClearExdates(event *domain.CalendarEvent, settings domain.CalendarSettings, newRule *domain.RecurrenceRule) ([]domain.Millis, error) {
	if len(event.Exdates) == 0 {
		return nil, nil
	}
	probe := *event
	probe.Recurrence = newRule
	surviving := make([]domain.Millis, 0, len(event.Exdates))
	for _, ex := range event.Exdates {
		ok, err := Occurs(&probe, settings, ex)
		if err != nil {
			return nil, err
		}
		if ok {
			surviving = append(surviving, ex)
		}
	}
	return surviving, nil
}

// generate returns every occurrence start time, in ascending order, up to
// (but not including) limit, honoring the rule's count/until bounds. The
// returned slice is not exdate-filtered.
func generate(anchorTS domain.Millis, rule *domain.RecurrenceRule, loc *time.Location, limit domain.Millis) []domain.Millis {
	anchor := time.UnixMilli(anchorTS).In(loc)
	var until time.Time
	hasUntil := rule.Until != nil
	if hasUntil {
		until = time.UnixMilli(*rule.Until)
	}
	maxCount := -1
	if rule.Count != nil {
		maxCount = *rule.Count
	}

	var out []domain.Millis
	emit := func(t time.Time) bool {
		ms := t.UnixMilli()
		if ms < anchorTS {
			return true // continue, before series start
		}
		if hasUntil && t.After(until) {
			return false
		}
		if maxCount >= 0 && len(out) >= maxCount {
			return false
		}
		out = append(out, ms)
		if ms >= limit && (maxCount < 0 || len(out) >= maxCount) {
			return false
		}
		return true
	}

	switch rule.Freq {
	case domain.FrequencyDaily:
		generateDaily(anchor, rule, limit, emit)
	case domain.FrequencyWeekly:
		generateWeekly(anchor, rule, loc, limit, emit)
	case domain.FrequencyMonthly:
		generateMonthly(anchor, rule, loc, limit, emit, false)
	case domain.FrequencyYearly:
		generateMonthly(anchor, rule, loc, limit, emit, true)
	}
	return out
}

func generateDaily(anchor time.Time, rule *domain.RecurrenceRule, limit domain.Millis, emit func(time.Time) bool) {
	step := rule.Interval
	for day := anchor; ; day = day.AddDate(0, 0, step) {
		if !emit(day) {
			return
		}
		if day.UnixMilli() > limit && rule.Count == nil {
			return
		}
	}
}

func generateWeekly(anchor time.Time, rule *domain.RecurrenceRule, loc *time.Location, limit domain.Millis, emit func(time.Time) bool) {
	days := rule.ByDay
	if len(days) == 0 {
		days = []domain.Weekday{domain.Weekday(anchor.Weekday())}
	}
	weekStart := startOfWeek(anchor, rule.Wkst)
	for week := weekStart; ; week = week.AddDate(0, 0, 7*rule.Interval) {
		candidates := make([]time.Time, 0, len(days))
		for _, d := range days {
			offset := (int(d) - int(rule.Wkst) + 7) % 7
			candidate := atWallClock(week.AddDate(0, 0, offset), anchor)
			candidates = append(candidates, candidate)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
		candidates = applySetPos(candidates, rule.BySetPos)
		for _, c := range candidates {
			if !emit(c) {
				return
			}
		}
		if week.UnixMilli() > limit && rule.Count == nil {
			return
		}
	}
}

func generateMonthly(anchor time.Time, rule *domain.RecurrenceRule, loc *time.Location, limit domain.Millis, emit func(time.Time) bool, yearly bool) {
	monthDays := rule.ByMonthDay
	if len(monthDays) == 0 && len(rule.ByDay) == 0 {
		monthDays = []int{anchor.Day()}
	}
	for period := anchor; ; {
		var candidates []time.Time
		if len(monthDays) > 0 {
			for _, d := range monthDays {
				candidates = append(candidates, monthDayTime(period, d, anchor, loc))
			}
		} else {
			candidates = weekdaysInMonth(period, rule.ByDay, rule.Wkst, anchor, loc)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
		candidates = applySetPos(candidates, rule.BySetPos)
		for _, c := range candidates {
			if !emit(c) {
				return
			}
		}
		if period.UnixMilli() > limit && rule.Count == nil {
			return
		}
		if yearly {
			period = period.AddDate(rule.Interval, 0, 0)
		} else {
			period = period.AddDate(0, rule.Interval, 0)
		}
	}
}

// startOfWeek returns midnight of the wkst-aligned week containing t.
func startOfWeek(t time.Time, wkst domain.Weekday) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	back := (int(midnight.Weekday()) - int(wkst) + 7) % 7
	return midnight.AddDate(0, 0, -back)
}

// atWallClock applies t's hour/minute/second/nsec onto day's date.
func atWallClock(day, t time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// monthDayTime returns the monthDay-th day of period's month, at anchor's
// wall-clock time. A non-positive or out-of-range day (including negative,
// counted from the end of the month) is resolved against the month length.
func monthDayTime(period time.Time, monthDay int, anchor time.Time, loc *time.Location) time.Time {
	firstOfMonth := time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, loc)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	day := monthDay
	if day < 0 {
		day = lastDay + day + 1
	}
	if day < 1 {
		day = 1
	}
	if day > lastDay {
		day = lastDay
	}
	return time.Date(period.Year(), period.Month(), day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), loc)
}

// weekdaysInMonth returns every day in period's month matching one of days.
func weekdaysInMonth(period time.Time, days []domain.Weekday, wkst domain.Weekday, anchor time.Time, loc *time.Location) []time.Time {
	wanted := make(map[time.Weekday]struct{}, len(days))
	for _, d := range days {
		wanted[time.Weekday(d)] = struct{}{}
	}
	firstOfMonth := time.Date(period.Year(), period.Month(), 1, 0, 0, 0, 0, loc)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	var out []time.Time
	for day := 1; day <= lastDay; day++ {
		candidate := time.Date(period.Year(), period.Month(), day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), loc)
		if _, ok := wanted[candidate.Weekday()]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

// applySetPos filters candidates down to the BySetPos-selected entries
// (1-indexed, negative counts from the end), or returns candidates
// unchanged if setPos is empty.
func applySetPos(candidates []time.Time, setPos []int) []time.Time {
	if len(setPos) == 0 {
		return candidates
	}
	var out []time.Time
	for _, pos := range setPos {
		idx := pos
		if idx < 0 {
			idx = len(candidates) + idx + 1
		}
		if idx >= 1 && idx <= len(candidates) {
			out = append(out, candidates[idx-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
