package memory

import (
	"context"
	"sync"

	"github.com/nettuhq/scheduler/domain"
)

// ScheduleRepo is the in-memory repo.ScheduleRepo implementation.
type ScheduleRepo struct {
	mu        sync.Mutex
	schedules map[domain.ID]domain.Schedule
}

func newScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{schedules: make(map[domain.ID]domain.Schedule)}
}

func (r *ScheduleRepo) Find(_ context.Context, id domain.ID) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, nil
	}
	out := cloneSchedule(s)
	return &out, nil
}

func (r *ScheduleRepo) FindMany(_ context.Context, ids []domain.ID) ([]domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Schedule
	for _, id := range ids {
		if s, ok := r.schedules[id]; ok {
			out = append(out, cloneSchedule(s))
		}
	}
	return out, nil
}

func (r *ScheduleRepo) FindByUser(_ context.Context, userID domain.ID) ([]domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Schedule
	for _, s := range r.schedules {
		if s.UserID == userID {
			out = append(out, cloneSchedule(s))
		}
	}
	return out, nil
}

func (r *ScheduleRepo) Insert(_ context.Context, schedule *domain.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = domain.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ID] = cloneSchedule(*schedule)
	return nil
}

func (r *ScheduleRepo) Save(_ context.Context, schedule *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[schedule.ID]; !ok {
		return domain.NewNotFoundError("Schedule", schedule.ID)
	}
	r.schedules[schedule.ID] = cloneSchedule(*schedule)
	return nil
}

func (r *ScheduleRepo) Delete(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}

func (r *ScheduleRepo) DeleteByUser(_ context.Context, userID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.schedules {
		if s.UserID == userID {
			delete(r.schedules, id)
		}
	}
	return nil
}
