package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nettuhq/scheduler/domain"
)

// CalendarRepo is the PostgreSQL-backed repo.CalendarRepo implementation.
//
// Expected schema:
//
//	CREATE TABLE calendars (
//	    id         TEXT PRIMARY KEY,
//	    user_id    TEXT NOT NULL,
//	    account_id TEXT NOT NULL,
//	    timezone   TEXT NOT NULL,
//	    wkst       INTEGER NOT NULL DEFAULT 0
//	);
//	CREATE INDEX ON calendars (user_id);
type CalendarRepo struct {
	db *sql.DB
}

const calendarColumns = `id, user_id, account_id, timezone, wkst`

func scanCalendar(row interface{ Scan(...any) error }) (*domain.Calendar, error) {
	var c domain.Calendar
	var wkst int
	if err := row.Scan(&c.ID, &c.UserID, &c.AccountID, &c.Settings.Timezone, &wkst); err != nil {
		return nil, err
	}
	c.Settings.Wkst = domain.Weekday(wkst)
	return &c, nil
}

func (r *CalendarRepo) Find(ctx context.Context, id domain.ID) (*domain.Calendar, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, id)
	c, err := scanCalendar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar %s: %w", id, err)
	}
	return c, nil
}

func (r *CalendarRepo) FindByUser(ctx context.Context, userID domain.ID) ([]domain.Calendar, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendars for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CalendarRepo) Insert(ctx context.Context, calendar *domain.Calendar) error {
	if calendar.ID == "" {
		calendar.ID = domain.NewID()
	}
	return r.upsert(ctx, calendar)
}

func (r *CalendarRepo) Save(ctx context.Context, calendar *domain.Calendar) error {
	return r.upsert(ctx, calendar)
}

func (r *CalendarRepo) upsert(ctx context.Context, calendar *domain.Calendar) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calendars (id, user_id, account_id, timezone, wkst)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			account_id = EXCLUDED.account_id,
			timezone = EXCLUDED.timezone,
			wkst = EXCLUDED.wkst
	`, calendar.ID, calendar.UserID, calendar.AccountID, calendar.Settings.Timezone, int(calendar.Settings.Wkst))
	if err != nil {
		return fmt.Errorf("failed to upsert calendar %s: %w", calendar.ID, err)
	}
	return nil
}

func (r *CalendarRepo) Delete(ctx context.Context, id domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete calendar %s: %w", id, err)
	}
	return nil
}

func (r *CalendarRepo) DeleteByUser(ctx context.Context, userID domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete calendars for user %s: %w", userID, err)
	}
	return nil
}
