package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nettuhq/scheduler/domain"
)

// ScheduleRepo is the PostgreSQL-backed repo.ScheduleRepo implementation.
//
// Expected schema:
//
//	CREATE TABLE schedules (
//	    id       TEXT PRIMARY KEY,
//	    user_id  TEXT NOT NULL,
//	    timezone TEXT NOT NULL
//	);
//	CREATE TABLE schedule_rules (
//	    id          BIGSERIAL PRIMARY KEY,
//	    schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
//	    position    INTEGER NOT NULL,
//	    days        INTEGER[],
//	    month_days  INTEGER[],
//	    intervals   JSONB NOT NULL
//	);
//	CREATE INDEX ON schedule_rules (schedule_id, position);
type ScheduleRepo struct {
	db *sql.DB
}

func (r *ScheduleRepo) loadRules(ctx context.Context, scheduleID domain.ID) ([]domain.ScheduleRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT days, month_days, intervals FROM schedule_rules WHERE schedule_id = $1 ORDER BY position`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule rules for %s: %w", scheduleID, err)
	}
	defer rows.Close()

	var rules []domain.ScheduleRule
	for rows.Next() {
		var days, monthDays pq.Int64Array
		var intervalsJSON []byte
		if err := rows.Scan(&days, &monthDays, &intervalsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan schedule rule: %w", err)
		}
		var rule domain.ScheduleRule
		for _, d := range days {
			rule.Days = append(rule.Days, domain.Weekday(d))
		}
		for _, d := range monthDays {
			rule.MonthDays = append(rule.MonthDays, int(d))
		}
		if err := json.Unmarshal(intervalsJSON, &rule.Intervals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule rule intervals: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ScheduleRepo) scanOne(ctx context.Context, row interface{ Scan(...any) error }) (*domain.Schedule, error) {
	var s domain.Schedule
	if err := row.Scan(&s.ID, &s.UserID, &s.Timezone); err != nil {
		return nil, err
	}
	rules, err := r.loadRules(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Rules = rules
	return &s, nil
}

func (r *ScheduleRepo) Find(ctx context.Context, id domain.ID) (*domain.Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, user_id, timezone FROM schedules WHERE id = $1`, id)
	s, err := r.scanOne(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find schedule %s: %w", id, err)
	}
	return s, nil
}

func (r *ScheduleRepo) FindMany(ctx context.Context, ids []domain.ID) ([]domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, timezone FROM schedules WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		s, err := r.scanOne(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) FindByUser(ctx context.Context, userID domain.ID) ([]domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, timezone FROM schedules WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		s, err := r.scanOne(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) Insert(ctx context.Context, schedule *domain.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = domain.NewID()
	}
	return r.upsert(ctx, schedule)
}

func (r *ScheduleRepo) Save(ctx context.Context, schedule *domain.Schedule) error {
	return r.upsert(ctx, schedule)
}

func (r *ScheduleRepo) upsert(ctx context.Context, schedule *domain.Schedule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schedule upsert transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules (id, user_id, timezone) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, timezone = EXCLUDED.timezone
	`, schedule.ID, schedule.UserID, schedule.Timezone)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule %s: %w", schedule.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_rules WHERE schedule_id = $1`, schedule.ID); err != nil {
		return fmt.Errorf("failed to clear old schedule rules for %s: %w", schedule.ID, err)
	}

	for i, rule := range schedule.Rules {
		var days, monthDays pq.Int64Array
		for _, d := range rule.Days {
			days = append(days, int64(d))
		}
		for _, d := range rule.MonthDays {
			monthDays = append(monthDays, int64(d))
		}
		intervalsJSON, err := json.Marshal(rule.Intervals)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule rule intervals: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO schedule_rules (schedule_id, position, days, month_days, intervals)
			VALUES ($1, $2, $3, $4, $5)
		`, schedule.ID, i, pq.Array(days), pq.Array(monthDays), intervalsJSON)
		if err != nil {
			return fmt.Errorf("failed to insert schedule rule for %s: %w", schedule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule upsert transaction: %w", err)
	}
	return nil
}

func (r *ScheduleRepo) Delete(ctx context.Context, id domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	return nil
}

func (r *ScheduleRepo) DeleteByUser(ctx context.Context, userID domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete schedules for user %s: %w", userID, err)
	}
	return nil
}
