package domain

// TimeOfDay is a wall-clock time within a single day, minutes since
// midnight, used by ScheduleRule intervals ("[HH:MM, HH:MM)").
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour/minute pair.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// ScheduleInterval is one "[start, end)" free window within a matching day.
type ScheduleInterval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ScheduleRule binds a set of matching days to a list of free intervals.
// A rule is either weekday-based (Days) or date-based (MonthDays); exactly
// one selector is populated.
type ScheduleRule struct {
	Days      []Weekday // weekday-based selector
	MonthDays []int     // date-based selector (1-31)
	Intervals []ScheduleInterval
}

// Schedule is a user's recurring weekly (or monthly) availability pattern,
// evaluated in its own timezone independent of any calendar.
type Schedule struct {
	ID       ID
	UserID   ID
	Timezone string
	Rules    []ScheduleRule
}
