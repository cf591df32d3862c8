// Package memory is the default, dependency-free backend for the repo
// contracts: mutex-guarded maps, suitable for tests and single-process
// deployments.
package memory

import (
	"github.com/nettuhq/scheduler/domain"
)

// Store bundles every in-memory repository behind one struct so a caller
// constructs a single dependency and wires its embedded repos wherever a
// repo.XRepo is expected.
type Store struct {
	Events    *EventRepo
	Calendars *CalendarRepo
	Schedules *ScheduleRepo
	Services  *ServiceRepo
	Accounts  *AccountRepo
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		Events:    newEventRepo(),
		Calendars: newCalendarRepo(),
		Schedules: newScheduleRepo(),
		Services:  newServiceRepo(),
		Accounts:  newAccountRepo(),
	}
}

func cloneCalendar(c domain.Calendar) domain.Calendar { return c }
func cloneAccount(a domain.Account) domain.Account    { return a }

func cloneSchedule(s domain.Schedule) domain.Schedule {
	out := s
	out.Rules = append([]domain.ScheduleRule(nil), s.Rules...)
	for i := range out.Rules {
		out.Rules[i].Days = append([]domain.Weekday(nil), s.Rules[i].Days...)
		out.Rules[i].MonthDays = append([]int(nil), s.Rules[i].MonthDays...)
		out.Rules[i].Intervals = append([]domain.ScheduleInterval(nil), s.Rules[i].Intervals...)
	}
	return out
}

func cloneService(s domain.Service) domain.Service {
	out := s
	out.Users = append([]domain.ServiceResource(nil), s.Users...)
	for i := range out.Users {
		out.Users[i].CalendarIDs = append([]domain.ID(nil), s.Users[i].CalendarIDs...)
		out.Users[i].ScheduleIDs = append([]domain.ID(nil), s.Users[i].ScheduleIDs...)
	}
	return out
}

func cloneEvent(e domain.CalendarEvent) domain.CalendarEvent {
	out := e
	if e.Recurrence != nil {
		rule := *e.Recurrence
		rule.ByDay = append([]domain.Weekday(nil), e.Recurrence.ByDay...)
		rule.ByMonthDay = append([]int(nil), e.Recurrence.ByMonthDay...)
		rule.BySetPos = append([]int(nil), e.Recurrence.BySetPos...)
		out.Recurrence = &rule
	}
	out.Exdates = append([]domain.Millis(nil), e.Exdates...)
	if e.Reminder != nil {
		r := *e.Reminder
		out.Reminder = &r
	}
	if e.Metadata != nil {
		md := make(domain.Metadata, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		out.Metadata = md
	}
	return out
}
