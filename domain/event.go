package domain

// EventReminder configures a single reminder offset for a CalendarEvent: a
// Reminder row is materialized at occurrence-start minus Offset for every
// future occurrence.
type EventReminder struct {
	Offset Millis // milliseconds before occurrence start
}

// IsValid reports whether the reminder offset is a non-negative duration.
func (r *EventReminder) IsValid() bool {
	return r != nil && r.Offset >= 0
}

// Metadata is an opaque client-controlled key/value bag attached to events;
// the engine never inspects it.
type Metadata map[string]string

// CalendarEvent is a stored event, possibly recurring. Occurrences are
// derived, never stored (see EventInstance in package intervalset).
//
// Invariants: every Exdates entry equals some would-be occurrence StartTS;
// changing StartTS clears Exdates; changing Recurrence while keeping StartTS
// preserves Exdates (see recurrence.ShouldClearExdates for the update-time
// exception).
type CalendarEvent struct {
	ID         ID
	CalendarID ID
	UserID     ID
	StartTS    Millis
	Duration   Millis // >= 0
	Busy       bool
	Recurrence *RecurrenceRule
	Exdates    []Millis
	Reminder   *EventReminder
	Metadata   Metadata
	Version    int64 // stored as given; the repositories do not increment it on save
	Created    Millis
	Updated    Millis
}

// EndTS returns the anchor occurrence's end timestamp.
func (e *CalendarEvent) EndTS() Millis {
	return e.StartTS + e.Duration
}
