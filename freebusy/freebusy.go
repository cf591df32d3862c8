// Package freebusy computes a user's free/busy view over a window by
// combining their calendars' expanded events with their schedules' free
// intervals.
package freebusy

import (
	"context"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/intervalset"
	"github.com/nettuhq/scheduler/recurrence"
	"github.com/nettuhq/scheduler/repo"
	"github.com/nettuhq/scheduler/scheduleavail"
)

// FreeBusy is the result of a free/busy computation: disjoint, sorted
// interval sets with the invariant that no Free interval overlaps a Busy
// one.
type FreeBusy struct {
	Free intervalset.Set
	Busy intervalset.Set
}

// Engine computes FreeBusy for a user by reading calendars/events/schedules
// through its repo dependencies.
type Engine struct {
	Calendars repo.CalendarRepo
	Events    repo.EventRepo
	Schedules repo.ScheduleRepo
}

// NewEngine constructs an Engine from its repository dependencies.
func NewEngine(calendars repo.CalendarRepo, events repo.EventRepo, schedules repo.ScheduleRepo) *Engine {
	return &Engine{Calendars: calendars, Events: events, Schedules: schedules}
}

// Query selects the calendars/schedules to include; nil CalendarIDs means
// "all of the user's calendars", nil ScheduleIDs means "none".
type Query struct {
	UserID      domain.ID
	CalendarIDs []domain.ID
	ScheduleIDs []domain.ID
	Start       domain.Millis
	End         domain.Millis
}

// Compute implements the spec'd six-step algorithm: gather events, expand
// occurrences, partition by busy, gather schedule free intervals, coalesce
// both sides into IntervalSets, and subtract busy from free.
func (e *Engine) Compute(ctx context.Context, q Query) (FreeBusy, error) {
	calendarIDs := q.CalendarIDs
	if calendarIDs == nil {
		calendars, err := e.Calendars.FindByUser(ctx, q.UserID)
		if err != nil {
			return FreeBusy{}, domain.NewStorageError("freebusy.findCalendars", err)
		}
		calendarIDs = make([]domain.ID, 0, len(calendars))
		calendarSettings := make(map[domain.ID]domain.CalendarSettings, len(calendars))
		for _, c := range calendars {
			calendarIDs = append(calendarIDs, c.ID)
			calendarSettings[c.ID] = c.Settings
		}
		return e.computeWithCalendars(ctx, q, calendarIDs, calendarSettings)
	}

	calendarSettings := make(map[domain.ID]domain.CalendarSettings, len(calendarIDs))
	for _, id := range calendarIDs {
		cal, err := e.Calendars.Find(ctx, id)
		if err != nil {
			return FreeBusy{}, domain.NewStorageError("freebusy.findCalendar", err)
		}
		if cal == nil {
			return FreeBusy{}, domain.NewNotFoundError("Calendar", id)
		}
		calendarSettings[id] = cal.Settings
	}
	return e.computeWithCalendars(ctx, q, calendarIDs, calendarSettings)
}

func (e *Engine) computeWithCalendars(ctx context.Context, q Query, calendarIDs []domain.ID, settings map[domain.ID]domain.CalendarSettings) (FreeBusy, error) {
	window := &repo.Window{Start: q.Start, End: q.End}

	var freeRaw, busyRaw []intervalset.EventInstance
	events, err := e.Events.FindByUserAndCalendars(ctx, q.UserID, calendarIDs, window)
	if err != nil {
		return FreeBusy{}, domain.NewStorageError("freebusy.findEvents", err)
	}
	for i := range events {
		event := &events[i]
		occurrences, err := recurrence.Expand(event, settings[event.CalendarID], q.Start, q.End)
		if err != nil {
			return FreeBusy{}, err
		}
		for _, occ := range occurrences {
			if occ.StartTS < q.Start {
				occ.StartTS = q.Start
			}
			if occ.EndTS > q.End {
				occ.EndTS = q.End
			}
			if occ.Busy {
				busyRaw = append(busyRaw, occ)
			} else {
				freeRaw = append(freeRaw, occ)
			}
		}
	}

	for _, scheduleID := range q.ScheduleIDs {
		schedule, err := e.Schedules.Find(ctx, scheduleID)
		if err != nil {
			return FreeBusy{}, domain.NewStorageError("freebusy.findSchedule", err)
		}
		if schedule == nil {
			return FreeBusy{}, domain.NewNotFoundError("Schedule", scheduleID)
		}
		free, err := scheduleavail.FreeIntervals(*schedule, q.Start, q.End)
		if err != nil {
			return FreeBusy{}, err
		}
		freeRaw = append(freeRaw, free.Inner()...)
	}

	free := intervalset.New(freeRaw)
	busy := intervalset.New(busyRaw)
	free.Subtract(busy, 0)

	return FreeBusy{Free: free, Busy: busy}, nil
}
