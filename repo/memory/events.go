package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/repo"
)

// EventRepo is the in-memory repo.EventRepo implementation.
type EventRepo struct {
	mu        sync.Mutex
	events    map[domain.ID]domain.CalendarEvent
	reminders map[domain.ID][]domain.Reminder // keyed by EventID
}

func newEventRepo() *EventRepo {
	return &EventRepo{
		events:    make(map[domain.ID]domain.CalendarEvent),
		reminders: make(map[domain.ID][]domain.Reminder),
	}
}

func (r *EventRepo) Find(_ context.Context, id domain.ID) (*domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	out := cloneEvent(e)
	return &out, nil
}

func inWindow(ts domain.Millis, w *repo.Window) bool {
	if w == nil {
		return true
	}
	return ts >= w.Start && ts < w.End
}

func (r *EventRepo) FindByCalendar(_ context.Context, calendarID domain.ID, window *repo.Window) ([]domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CalendarEvent
	for _, e := range r.events {
		if e.CalendarID == calendarID && inWindow(e.StartTS, window) {
			out = append(out, cloneEvent(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepo) FindByUserAndCalendars(_ context.Context, userID domain.ID, calendarIDs []domain.ID, window *repo.Window) ([]domain.CalendarEvent, error) {
	inSet := make(map[domain.ID]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		inSet[id] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CalendarEvent
	for _, e := range r.events {
		if e.UserID == userID && inSet[e.CalendarID] && inWindow(e.StartTS, window) {
			out = append(out, cloneEvent(e))
		}
	}
	sortEvents(out)
	return out, nil
}

func sortEvents(events []domain.CalendarEvent) {
	sort.Slice(events, func(i, j int) bool { return events[i].StartTS < events[j].StartTS })
}

func (r *EventRepo) Insert(_ context.Context, event *domain.CalendarEvent) error {
	if event.ID == "" {
		event.ID = domain.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *EventRepo) Save(_ context.Context, event *domain.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return domain.NewNotFoundError("CalendarEvent", event.ID)
	}
	r.events[event.ID] = cloneEvent(*event)
	return nil
}

func (r *EventRepo) Delete(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
	delete(r.reminders, id)
	return nil
}

func (r *EventRepo) FindReminderCandidates(_ context.Context, now domain.Millis) ([]domain.CalendarEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CalendarEvent
	for _, e := range r.events {
		if e.Reminder == nil || !e.Reminder.IsValid() {
			continue
		}
		// A non-recurring event whose occurrence already ended can never
		// produce another reminder.
		if e.Recurrence == nil && e.EndTS() < now {
			continue
		}
		if e.Recurrence != nil && e.Recurrence.Until != nil && *e.Recurrence.Until < now {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	sortEvents(out)
	return out, nil
}

func (r *EventRepo) SaveReminders(_ context.Context, reminders []domain.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rem := range reminders {
		existing := r.reminders[rem.EventID]
		replaced := false
		for i, e := range existing {
			if e.RemindAt == rem.RemindAt {
				existing[i] = rem
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, rem)
		}
		r.reminders[rem.EventID] = existing
	}
	return nil
}

func (r *EventRepo) ClaimRemindersBefore(_ context.Context, now domain.Millis) ([]domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []domain.Reminder
	for eventID, reminders := range r.reminders {
		var remaining []domain.Reminder
		for _, rem := range reminders {
			if rem.RemindAt <= now {
				claimed = append(claimed, rem)
			} else {
				remaining = append(remaining, rem)
			}
		}
		if len(remaining) == 0 {
			delete(r.reminders, eventID)
		} else {
			r.reminders[eventID] = remaining
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].RemindAt < claimed[j].RemindAt })
	return claimed, nil
}

func (r *EventRepo) DeleteRemindersByEvent(_ context.Context, eventID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reminders, eventID)
	return nil
}
