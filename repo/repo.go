// Package repo declares the storage contracts the availability engine runs
// against. The core never depends on a concrete database; repo/memory and
// repo/postgres are the external collaborators that implement these
// interfaces.
package repo

import (
	"context"
	"time"

	"github.com/nettuhq/scheduler/domain"
)

// Window is a half-open [Start, End) timestamp range used to scope queries.
// A nil *Window means unbounded.
type Window struct {
	Start domain.Millis
	End   domain.Millis
}

// EventRepo persists CalendarEvents and the Reminder rows derived from them.
type EventRepo interface {
	Find(ctx context.Context, id domain.ID) (*domain.CalendarEvent, error)
	FindByCalendar(ctx context.Context, calendarID domain.ID, window *Window) ([]domain.CalendarEvent, error)
	FindByUserAndCalendars(ctx context.Context, userID domain.ID, calendarIDs []domain.ID, window *Window) ([]domain.CalendarEvent, error)
	Insert(ctx context.Context, event *domain.CalendarEvent) error
	Save(ctx context.Context, event *domain.CalendarEvent) error
	Delete(ctx context.Context, id domain.ID) error

	// FindReminderCandidates returns every event with a configured reminder
	// whose recurrence (or singleton start) may still produce occurrences at
	// or after now; this is what the expansion task iterates each tick
	// instead of requiring a full account/event enumeration contract.
	FindReminderCandidates(ctx context.Context, now domain.Millis) ([]domain.CalendarEvent, error)

	// SaveReminders upserts the expansion job's materialized rows, keyed by
	// (EventID, RemindAt); a row for the same key replaces the previous one.
	SaveReminders(ctx context.Context, reminders []domain.Reminder) error
	// ClaimRemindersBefore atomically reads and removes every Reminder with
	// RemindAt <= now in a single operation, so two concurrent dispatchers
	// never both deliver the same reminder.
	ClaimRemindersBefore(ctx context.Context, now domain.Millis) ([]domain.Reminder, error)
	// DeleteRemindersByEvent drops every materialized reminder for an event,
	// used when an event is deleted or its recurrence is rewound.
	DeleteRemindersByEvent(ctx context.Context, eventID domain.ID) error
}

// CalendarRepo persists Calendars.
type CalendarRepo interface {
	Find(ctx context.Context, id domain.ID) (*domain.Calendar, error)
	FindByUser(ctx context.Context, userID domain.ID) ([]domain.Calendar, error)
	Insert(ctx context.Context, calendar *domain.Calendar) error
	Save(ctx context.Context, calendar *domain.Calendar) error
	Delete(ctx context.Context, id domain.ID) error
	DeleteByUser(ctx context.Context, userID domain.ID) error
}

// ScheduleRepo persists Schedules.
type ScheduleRepo interface {
	Find(ctx context.Context, id domain.ID) (*domain.Schedule, error)
	FindMany(ctx context.Context, ids []domain.ID) ([]domain.Schedule, error)
	FindByUser(ctx context.Context, userID domain.ID) ([]domain.Schedule, error)
	Insert(ctx context.Context, schedule *domain.Schedule) error
	Save(ctx context.Context, schedule *domain.Schedule) error
	Delete(ctx context.Context, id domain.ID) error
	DeleteByUser(ctx context.Context, userID domain.ID) error
}

// ServiceRepo persists Services.
type ServiceRepo interface {
	Find(ctx context.Context, id domain.ID) (*domain.Service, error)
	Insert(ctx context.Context, service *domain.Service) error
	Save(ctx context.Context, service *domain.Service) error
	Delete(ctx context.Context, id domain.ID) error
	// RemoveScheduleFromServices strips scheduleID from every member
	// resource that references it, across every service.
	RemoveScheduleFromServices(ctx context.Context, scheduleID domain.ID) error
	// RemoveCalendarFromServices strips calendarID from every member
	// resource that references it, across every service.
	RemoveCalendarFromServices(ctx context.Context, calendarID domain.ID) error
}

// AccountRepo persists Accounts, the tenant boundary.
type AccountRepo interface {
	Find(ctx context.Context, id domain.ID) (*domain.Account, error)
	// FindByAPIKey looks an account up by comparing apiKey against each
	// candidate's bcrypt hash; see repo/postgres for the constant-time
	// comparison this implies.
	FindByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error)
}

// Clock abstracts the current time so tests can run deterministically.
type Clock interface {
	NowMillis() domain.Millis
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// NowMillis returns the current wall-clock time in milliseconds since epoch.
func (SystemClock) NowMillis() domain.Millis {
	return time.Now().UnixMilli()
}
