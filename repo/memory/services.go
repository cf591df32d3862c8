package memory

import (
	"context"
	"sync"

	"github.com/nettuhq/scheduler/domain"
)

// ServiceRepo is the in-memory repo.ServiceRepo implementation.
type ServiceRepo struct {
	mu       sync.Mutex
	services map[domain.ID]domain.Service
}

func newServiceRepo() *ServiceRepo {
	return &ServiceRepo{services: make(map[domain.ID]domain.Service)}
}

func (r *ServiceRepo) Find(_ context.Context, id domain.ID) (*domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, nil
	}
	out := cloneService(s)
	return &out, nil
}

func (r *ServiceRepo) Insert(_ context.Context, service *domain.Service) error {
	if service.ID == "" {
		service.ID = domain.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[service.ID] = cloneService(*service)
	return nil
}

func (r *ServiceRepo) Save(_ context.Context, service *domain.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[service.ID]; !ok {
		return domain.NewNotFoundError("Service", service.ID)
	}
	r.services[service.ID] = cloneService(*service)
	return nil
}

func (r *ServiceRepo) Delete(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, id)
	return nil
}

func (r *ServiceRepo) RemoveScheduleFromServices(_ context.Context, scheduleID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, svc := range r.services {
		changed := false
		for i := range svc.Users {
			filtered := svc.Users[i].ScheduleIDs[:0]
			for _, sid := range svc.Users[i].ScheduleIDs {
				if sid != scheduleID {
					filtered = append(filtered, sid)
				} else {
					changed = true
				}
			}
			svc.Users[i].ScheduleIDs = filtered
		}
		if changed {
			r.services[id] = svc
		}
	}
	return nil
}

func (r *ServiceRepo) RemoveCalendarFromServices(_ context.Context, calendarID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, svc := range r.services {
		changed := false
		for i := range svc.Users {
			filtered := svc.Users[i].CalendarIDs[:0]
			for _, cid := range svc.Users[i].CalendarIDs {
				if cid != calendarID {
					filtered = append(filtered, cid)
				} else {
					changed = true
				}
			}
			svc.Users[i].CalendarIDs = filtered
		}
		if changed {
			r.services[id] = svc
		}
	}
	return nil
}
