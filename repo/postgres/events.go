package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nettuhq/scheduler/domain"
	"github.com/nettuhq/scheduler/repo"
)

// EventRepo is the PostgreSQL-backed repo.EventRepo implementation.
//
// Expected schema:
//
//	CREATE TABLE calendar_events (
//	    id                     TEXT PRIMARY KEY,
//	    calendar_id            TEXT NOT NULL,
//	    user_id                TEXT NOT NULL,
//	    start_ts               BIGINT NOT NULL,
//	    duration               BIGINT NOT NULL,
//	    busy                   BOOLEAN NOT NULL,
//	    recurrence_freq        TEXT,
//	    recurrence_interval    INTEGER,
//	    recurrence_count       INTEGER,
//	    recurrence_until       BIGINT,
//	    recurrence_byday       INTEGER[],
//	    recurrence_bymonthday  INTEGER[],
//	    recurrence_bysetpos    INTEGER[],
//	    recurrence_wkst        INTEGER,
//	    exdates                BIGINT[] NOT NULL DEFAULT '{}',
//	    reminder_offset        BIGINT,
//	    metadata               JSONB NOT NULL DEFAULT '{}',
//	    version                BIGINT NOT NULL DEFAULT 1,
//	    created                BIGINT NOT NULL,
//	    updated                BIGINT NOT NULL
//	);
//	CREATE INDEX ON calendar_events (calendar_id, start_ts);
//	CREATE INDEX ON calendar_events (user_id, start_ts);
//
//	CREATE TABLE reminders (
//	    event_id   TEXT NOT NULL,
//	    account_id TEXT NOT NULL,
//	    remind_at  BIGINT NOT NULL,
//	    version    BIGINT NOT NULL,
//	    PRIMARY KEY (event_id, remind_at)
//	);
//	CREATE INDEX ON reminders (remind_at);
type EventRepo struct {
	db *sql.DB
}

const eventColumns = `
	id, calendar_id, user_id, start_ts, duration, busy,
	recurrence_freq, recurrence_interval, recurrence_count, recurrence_until,
	recurrence_byday, recurrence_bymonthday, recurrence_bysetpos, recurrence_wkst,
	exdates, reminder_offset, metadata, version, created, updated
`

func scanEvent(row interface{ Scan(...any) error }) (*domain.CalendarEvent, error) {
	var e domain.CalendarEvent
	var recurFreq sql.NullString
	var recurInterval, recurCount, recurWkst sql.NullInt64
	var recurUntil sql.NullInt64
	var byDay, byMonthDay, bySetPos pq.Int64Array
	var exdates pq.Int64Array
	var reminderOffset sql.NullInt64
	var metadataJSON []byte

	if err := row.Scan(
		&e.ID, &e.CalendarID, &e.UserID, &e.StartTS, &e.Duration, &e.Busy,
		&recurFreq, &recurInterval, &recurCount, &recurUntil,
		&byDay, &byMonthDay, &bySetPos, &recurWkst,
		&exdates, &reminderOffset, &metadataJSON, &e.Version, &e.Created, &e.Updated,
	); err != nil {
		return nil, err
	}

	if recurFreq.Valid {
		rule := &domain.RecurrenceRule{
			Freq:     domain.Frequency(recurFreq.String),
			Interval: int(recurInterval.Int64),
			Wkst:     domain.Weekday(recurWkst.Int64),
		}
		if recurCount.Valid {
			c := int(recurCount.Int64)
			rule.Count = &c
		}
		if recurUntil.Valid {
			u := recurUntil.Int64
			rule.Until = &u
		}
		for _, d := range byDay {
			rule.ByDay = append(rule.ByDay, domain.Weekday(d))
		}
		for _, d := range byMonthDay {
			rule.ByMonthDay = append(rule.ByMonthDay, int(d))
		}
		for _, d := range bySetPos {
			rule.BySetPos = append(rule.BySetPos, int(d))
		}
		e.Recurrence = rule
	}

	for _, ex := range exdates {
		e.Exdates = append(e.Exdates, ex)
	}

	if reminderOffset.Valid {
		e.Reminder = &domain.EventReminder{Offset: reminderOffset.Int64}
	}

	if len(metadataJSON) > 0 {
		var md domain.Metadata
		if err := json.Unmarshal(metadataJSON, &md); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
		e.Metadata = md
	}

	return &e, nil
}

func (r *EventRepo) Find(ctx context.Context, id domain.ID) (*domain.CalendarEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar event %s: %w", id, err)
	}
	return e, nil
}

func (r *EventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EventRepo) FindByCalendar(ctx context.Context, calendarID domain.ID, window *repo.Window) ([]domain.CalendarEvent, error) {
	if window == nil {
		return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE calendar_id = $1 ORDER BY start_ts`, calendarID)
	}
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE calendar_id = $1 AND start_ts >= $2 AND start_ts < $3 ORDER BY start_ts`,
		calendarID, window.Start, window.End)
}

func (r *EventRepo) FindByUserAndCalendars(ctx context.Context, userID domain.ID, calendarIDs []domain.ID, window *repo.Window) ([]domain.CalendarEvent, error) {
	if window == nil {
		return r.queryEvents(ctx,
			`SELECT `+eventColumns+` FROM calendar_events WHERE user_id = $1 AND calendar_id = ANY($2) ORDER BY start_ts`,
			userID, pq.Array(calendarIDs))
	}
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM calendar_events WHERE user_id = $1 AND calendar_id = ANY($2) AND start_ts >= $3 AND start_ts < $4 ORDER BY start_ts`,
		userID, pq.Array(calendarIDs), window.Start, window.End)
}

func recurrenceColumns(e *domain.CalendarEvent) (freq sql.NullString, interval, count, wkst sql.NullInt64, until sql.NullInt64, byDay, byMonthDay, bySetPos pq.Int64Array) {
	if e.Recurrence == nil {
		return
	}
	rule := e.Recurrence
	freq = sql.NullString{String: string(rule.Freq), Valid: true}
	interval = sql.NullInt64{Int64: int64(rule.Interval), Valid: true}
	wkst = sql.NullInt64{Int64: int64(rule.Wkst), Valid: true}
	if rule.Count != nil {
		count = sql.NullInt64{Int64: int64(*rule.Count), Valid: true}
	}
	if rule.Until != nil {
		until = sql.NullInt64{Int64: *rule.Until, Valid: true}
	}
	for _, d := range rule.ByDay {
		byDay = append(byDay, int64(d))
	}
	for _, d := range rule.ByMonthDay {
		byMonthDay = append(byMonthDay, int64(d))
	}
	for _, d := range rule.BySetPos {
		bySetPos = append(bySetPos, int64(d))
	}
	return
}

func (r *EventRepo) Insert(ctx context.Context, event *domain.CalendarEvent) error {
	if event.ID == "" {
		event.ID = domain.NewID()
	}
	return r.upsert(ctx, event)
}

func (r *EventRepo) Save(ctx context.Context, event *domain.CalendarEvent) error {
	return r.upsert(ctx, event)
}

func (r *EventRepo) upsert(ctx context.Context, event *domain.CalendarEvent) error {
	freq, interval, count, wkst, until, byDay, byMonthDay, bySetPos := recurrenceColumns(event)

	var exdates pq.Int64Array
	for _, ex := range event.Exdates {
		exdates = append(exdates, ex)
	}

	var reminderOffset sql.NullInt64
	if event.Reminder != nil {
		reminderOffset = sql.NullInt64{Int64: event.Reminder.Offset, Valid: true}
	}

	metadata := event.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO calendar_events (
			id, calendar_id, user_id, start_ts, duration, busy,
			recurrence_freq, recurrence_interval, recurrence_count, recurrence_until,
			recurrence_byday, recurrence_bymonthday, recurrence_bysetpos, recurrence_wkst,
			exdates, reminder_offset, metadata, version, created, updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			calendar_id = EXCLUDED.calendar_id,
			user_id = EXCLUDED.user_id,
			start_ts = EXCLUDED.start_ts,
			duration = EXCLUDED.duration,
			busy = EXCLUDED.busy,
			recurrence_freq = EXCLUDED.recurrence_freq,
			recurrence_interval = EXCLUDED.recurrence_interval,
			recurrence_count = EXCLUDED.recurrence_count,
			recurrence_until = EXCLUDED.recurrence_until,
			recurrence_byday = EXCLUDED.recurrence_byday,
			recurrence_bymonthday = EXCLUDED.recurrence_bymonthday,
			recurrence_bysetpos = EXCLUDED.recurrence_bysetpos,
			recurrence_wkst = EXCLUDED.recurrence_wkst,
			exdates = EXCLUDED.exdates,
			reminder_offset = EXCLUDED.reminder_offset,
			metadata = EXCLUDED.metadata,
			version = EXCLUDED.version,
			updated = EXCLUDED.updated
	`,
		event.ID, event.CalendarID, event.UserID, event.StartTS, event.Duration, event.Busy,
		freq, interval, count, until,
		pq.Array(byDay), pq.Array(byMonthDay), pq.Array(bySetPos), wkst,
		pq.Array(exdates), reminderOffset, metadataJSON, event.Version, event.Created, event.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar event %s: %w", event.ID, err)
	}
	return nil
}

func (r *EventRepo) Delete(ctx context.Context, id domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reminders for event %s: %w", id, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", id, err)
	}
	return nil
}

func (r *EventRepo) FindReminderCandidates(ctx context.Context, now domain.Millis) ([]domain.CalendarEvent, error) {
	return r.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM calendar_events
		WHERE reminder_offset IS NOT NULL
		  AND (recurrence_freq IS NOT NULL OR start_ts + duration >= $1)
		  AND (recurrence_until IS NULL OR recurrence_until >= $1)
		ORDER BY start_ts
	`, now)
}

func (r *EventRepo) SaveReminders(ctx context.Context, reminders []domain.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reminder save transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reminders (event_id, account_id, remind_at, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, remind_at) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			version = EXCLUDED.version
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare reminder upsert: %w", err)
	}
	defer stmt.Close()

	for _, rem := range reminders {
		if _, err := stmt.ExecContext(ctx, rem.EventID, rem.AccountID, rem.RemindAt, rem.Version); err != nil {
			return fmt.Errorf("failed to upsert reminder for event %s: %w", rem.EventID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reminder save transaction: %w", err)
	}
	return nil
}

// ClaimRemindersBefore atomically deletes and returns every reminder due at
// or before now in one round trip, so two dispatchers racing against the
// same table never both observe the same row.
func (r *EventRepo) ClaimRemindersBefore(ctx context.Context, now domain.Millis) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM reminders
		WHERE (event_id, remind_at) IN (
			SELECT event_id, remind_at FROM reminders WHERE remind_at <= $1 FOR UPDATE SKIP LOCKED
		)
		RETURNING event_id, account_id, remind_at, version
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due reminders: %w", err)
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		if err := rows.Scan(&rem.EventID, &rem.AccountID, &rem.RemindAt, &rem.Version); err != nil {
			return nil, fmt.Errorf("failed to scan claimed reminder: %w", err)
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

func (r *EventRepo) DeleteRemindersByEvent(ctx context.Context, eventID domain.ID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to delete reminders for event %s: %w", eventID, err)
	}
	return nil
}
