package memory

import (
	"context"
	"sync"

	"github.com/nettuhq/scheduler/domain"
)

// CalendarRepo is the in-memory repo.CalendarRepo implementation.
type CalendarRepo struct {
	mu        sync.Mutex
	calendars map[domain.ID]domain.Calendar
}

func newCalendarRepo() *CalendarRepo {
	return &CalendarRepo{calendars: make(map[domain.ID]domain.Calendar)}
}

func (r *CalendarRepo) Find(_ context.Context, id domain.ID) (*domain.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calendars[id]
	if !ok {
		return nil, nil
	}
	out := cloneCalendar(c)
	return &out, nil
}

func (r *CalendarRepo) FindByUser(_ context.Context, userID domain.ID) ([]domain.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Calendar
	for _, c := range r.calendars {
		if c.UserID == userID {
			out = append(out, cloneCalendar(c))
		}
	}
	return out, nil
}

func (r *CalendarRepo) Insert(_ context.Context, calendar *domain.Calendar) error {
	if calendar.ID == "" {
		calendar.ID = domain.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calendars[calendar.ID] = cloneCalendar(*calendar)
	return nil
}

func (r *CalendarRepo) Save(_ context.Context, calendar *domain.Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calendars[calendar.ID]; !ok {
		return domain.NewNotFoundError("Calendar", calendar.ID)
	}
	r.calendars[calendar.ID] = cloneCalendar(*calendar)
	return nil
}

func (r *CalendarRepo) Delete(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calendars, id)
	return nil
}

func (r *CalendarRepo) DeleteByUser(_ context.Context, userID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.calendars {
		if c.UserID == userID {
			delete(r.calendars, id)
		}
	}
	return nil
}
