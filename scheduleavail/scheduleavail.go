// Package scheduleavail turns a domain.Schedule's weekday/date-based rules
// into a coalesced intervalset.Set of free time within a window.
package scheduleavail

import (
	"time"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/intervalset"
)

// NewDefaultSchedule builds the standard Monday-through-Friday, 09:00-17:00
// availability pattern a freshly created user starts with.
func NewDefaultSchedule(id, userID domain.ID, timezone string) domain.Schedule {
	interval := domain.ScheduleInterval{Start: domain.NewTimeOfDay(9, 0), End: domain.NewTimeOfDay(17, 0)}
	weekdays := []domain.Weekday{domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday, domain.Friday}

	rules := make([]domain.ScheduleRule, 0, len(weekdays))
	for _, day := range weekdays {
		rules = append(rules, domain.ScheduleRule{
			Days:      []domain.Weekday{day},
			Intervals: []domain.ScheduleInterval{interval},
		})
	}
	return domain.Schedule{ID: id, UserID: userID, Timezone: timezone, Rules: rules}
}

// FreeIntervals evaluates schedule over [from, to) in the schedule's own
// timezone, emitting [day@start, day@end) for every day/rule match, clipped
// to the window and coalesced via intervalset.New.
func FreeIntervals(schedule domain.Schedule, from, to domain.Millis) (intervalset.Set, error) {
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return intervalset.Set{}, domain.NewValidationError("InvalidTimezone", "unknown timezone %q", schedule.Timezone)
	}

	start := time.UnixMilli(from).In(loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	var items []intervalset.EventInstance
	for day.UnixMilli() < to {
		for _, rule := range schedule.Rules {
			if !ruleMatchesDay(rule, day) {
				continue
			}
			for _, interval := range rule.Intervals {
				startTS := atTimeOfDay(day, interval.Start).UnixMilli()
				endTS := atTimeOfDay(day, interval.End).UnixMilli()
				if startTS >= endTS {
					continue
				}
				if startTS < from {
					startTS = from
				}
				if endTS > to {
					endTS = to
				}
				if startTS < endTS {
					items = append(items, intervalset.EventInstance{StartTS: startTS, EndTS: endTS, Busy: false})
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return intervalset.New(items), nil
}

func ruleMatchesDay(rule domain.ScheduleRule, day time.Time) bool {
	if len(rule.Days) > 0 {
		for _, d := range rule.Days {
			if time.Weekday(d) == day.Weekday() {
				return true
			}
		}
		return false
	}
	for _, d := range rule.MonthDays {
		if d == day.Day() {
			return true
		}
	}
	return false
}

func atTimeOfDay(day time.Time, t domain.TimeOfDay) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}
