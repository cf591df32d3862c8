package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/recurrence"
	"github.com/nettuhq/scheduler/repo"
)

// DefaultExpansionInterval is how often the periodic expansion tick runs.
const DefaultExpansionInterval = 30 * time.Minute

// DefaultExpansionHorizon bounds how far into the future the expansion
// task materializes Reminder rows.
const DefaultExpansionHorizon = 2 * time.Hour

// Expander materializes Reminder rows for every event with a configured
// reminder offset, up to a fixed horizon ahead of now.
type Expander struct {
	Events    repo.EventRepo
	Calendars repo.CalendarRepo
	Clock     repo.Clock
	Horizon   domain.Millis
	Interval  time.Duration
	Logger    *slog.Logger
}

// NewExpander constructs an Expander. A zero Horizon defaults to
// DefaultExpansionHorizon, a zero Interval to DefaultExpansionInterval, and
// a nil Logger to slog.Default().
func NewExpander(events repo.EventRepo, calendars repo.CalendarRepo, clock repo.Clock, horizon domain.Millis, logger *slog.Logger) *Expander {
	if horizon == 0 {
		horizon = DefaultExpansionHorizon.Milliseconds()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{Events: events, Calendars: calendars, Clock: clock, Horizon: horizon, Interval: DefaultExpansionInterval, Logger: logger}
}

// Run ticks every Interval (DefaultExpansionInterval if unset), expanding
// every reminder candidate until ctx is cancelled.
func (e *Expander) Run(ctx context.Context) {
	interval := e.Interval
	if interval <= 0 {
		interval = DefaultExpansionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.ExpandAll(ctx); err != nil {
				e.Logger.Error("reminder expansion tick failed", "error", err)
			}
		}
	}
}

// ExpandAll materializes reminders for every candidate event, from now up
// to now+Horizon.
func (e *Expander) ExpandAll(ctx context.Context) error {
	now := e.Clock.NowMillis()
	events, err := e.Events.FindReminderCandidates(ctx, now)
	if err != nil {
		return domain.NewStorageError("reminder.findCandidates", err)
	}
	for i := range events {
		if err := e.expandEvent(ctx, &events[i], now); err != nil {
			e.Logger.Warn("failed to expand reminders for event", "event_id", events[i].ID, "error", err)
		}
	}
	return nil
}

// SyncEvent re-expands a single event's reminders, synchronously, after it
// is created/updated/deleted. Called from the event-update subscriber
// path, not from the periodic tick.
func (e *Expander) SyncEvent(ctx context.Context, eventID domain.ID) error {
	event, err := e.Events.Find(ctx, eventID)
	if err != nil {
		return domain.NewStorageError("reminder.findEvent", err)
	}
	if err := e.Events.DeleteRemindersByEvent(ctx, eventID); err != nil {
		return domain.NewStorageError("reminder.deleteStale", err)
	}
	if event == nil {
		return nil
	}
	return e.expandEvent(ctx, event, e.Clock.NowMillis())
}

func (e *Expander) expandEvent(ctx context.Context, event *domain.CalendarEvent, now domain.Millis) error {
	if !event.Reminder.IsValid() {
		return nil
	}
	calendar, err := e.Calendars.Find(ctx, event.CalendarID)
	if err != nil {
		return domain.NewStorageError("reminder.findCalendar", err)
	}
	if calendar == nil {
		return domain.NewNotFoundError("Calendar", event.CalendarID)
	}

	occurrences, err := recurrence.Expand(event, calendar.Settings, now, now+e.Horizon)
	if err != nil {
		return err
	}

	reminders := make([]domain.Reminder, 0, len(occurrences))
	for _, occ := range occurrences {
		remindAt := occ.StartTS - event.Reminder.Offset
		reminders = append(reminders, domain.Reminder{
			EventID:   event.ID,
			AccountID: calendar.AccountID,
			RemindAt:  remindAt,
			Version:   event.Version,
		})
	}
	if len(reminders) == 0 {
		return nil
	}
	return e.Events.SaveReminders(ctx, reminders)
}
