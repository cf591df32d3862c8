package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nettuhq/scheduler/domain"
)

// ServiceRepo is the PostgreSQL-backed repo.ServiceRepo implementation.
//
// Expected schema:
//
//	CREATE TABLE services (
//	    id         TEXT PRIMARY KEY,
//	    account_id TEXT NOT NULL
//	);
//	CREATE TABLE service_users (
//	    service_id   TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
//	    user_id      TEXT NOT NULL,
//	    calendar_ids TEXT[] NOT NULL DEFAULT '{}',
//	    schedule_ids TEXT[] NOT NULL DEFAULT '{}',
//	    PRIMARY KEY (service_id, user_id)
//	);
type ServiceRepo struct {
	db *sql.DB
}

func (r *ServiceRepo) loadUsers(ctx context.Context, serviceID domain.ID) ([]domain.ServiceResource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, calendar_ids, schedule_ids FROM service_users WHERE service_id = $1`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query service users for %s: %w", serviceID, err)
	}
	defer rows.Close()

	var out []domain.ServiceResource
	for rows.Next() {
		var res domain.ServiceResource
		var calendarIDs, scheduleIDs pq.StringArray
		if err := rows.Scan(&res.UserID, &calendarIDs, &scheduleIDs); err != nil {
			return nil, fmt.Errorf("failed to scan service user: %w", err)
		}
		res.CalendarIDs = append([]domain.ID(nil), calendarIDs...)
		res.ScheduleIDs = append([]domain.ID(nil), scheduleIDs...)
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *ServiceRepo) Find(ctx context.Context, id domain.ID) (*domain.Service, error) {
	var svc domain.Service
	err := r.db.QueryRowContext(ctx, `SELECT id, account_id FROM services WHERE id = $1`, id).Scan(&svc.ID, &svc.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find service %s: %w", id, err)
	}
	users, err := r.loadUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	svc.Users = users
	return &svc, nil
}

func (r *ServiceRepo) Insert(ctx context.Context, service *domain.Service) error {
	if service.ID == "" {
		service.ID = domain.NewID()
	}
	return r.upsert(ctx, service)
}

func (r *ServiceRepo) Save(ctx context.Context, service *domain.Service) error {
	return r.upsert(ctx, service)
}

func (r *ServiceRepo) upsert(ctx context.Context, service *domain.Service) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin service upsert transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO services (id, account_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET account_id = EXCLUDED.account_id
	`, service.ID, service.AccountID)
	if err != nil {
		return fmt.Errorf("failed to upsert service %s: %w", service.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM service_users WHERE service_id = $1`, service.ID); err != nil {
		return fmt.Errorf("failed to clear old service users for %s: %w", service.ID, err)
	}
	for _, user := range service.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO service_users (service_id, user_id, calendar_ids, schedule_ids)
			VALUES ($1, $2, $3, $4)
		`, service.ID, user.UserID, pq.Array(user.CalendarIDs), pq.Array(user.ScheduleIDs))
		if err != nil {
			return fmt.Errorf("failed to insert service user %s for %s: %w", user.UserID, service.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit service upsert transaction: %w", err)
	}
	return nil
}

func (r *ServiceRepo) Delete(ctx context.Context, id domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete service %s: %w", id, err)
	}
	return nil
}

func (r *ServiceRepo) RemoveScheduleFromServices(ctx context.Context, scheduleID domain.ID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE service_users SET schedule_ids = array_remove(schedule_ids, $1)
		WHERE $1 = ANY(schedule_ids)
	`, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to remove schedule %s from services: %w", scheduleID, err)
	}
	return nil
}

func (r *ServiceRepo) RemoveCalendarFromServices(ctx context.Context, calendarID domain.ID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE service_users SET calendar_ids = array_remove(calendar_ids, $1)
		WHERE $1 = ANY(calendar_ids)
	`, calendarID)
	if err != nil {
		return fmt.Errorf("failed to remove calendar %s from services: %w", calendarID, err)
	}
	return nil
}
