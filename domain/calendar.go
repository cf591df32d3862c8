package domain

// CalendarSettings holds the per-calendar timezone and week-start convention
// that recurrence expansion and free/busy computation evaluate against.
type CalendarSettings struct {
	Timezone string // IANA timezone name, e.g. "Europe/Berlin"
	Wkst     Weekday
}

// Calendar groups events owned by one user under a single timezone/wkst
// policy. Identity is immutable; settings may be changed by the owner.
type Calendar struct {
	ID        ID
	UserID    ID
	AccountID ID
	Settings  CalendarSettings
}
