// Package postgres implements the repo contracts against PostgreSQL via
// database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DB wraps the shared connection pool every repo in this package queries
// through.
type DB struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection with a ping.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db with dsn %s: %w", dsn, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &DB{db: sqlDB}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Events returns the repo.EventRepo backed by this connection.
func (d *DB) Events() *EventRepo { return &EventRepo{db: d.db} }

// Calendars returns the repo.CalendarRepo backed by this connection.
func (d *DB) Calendars() *CalendarRepo { return &CalendarRepo{db: d.db} }

// Schedules returns the repo.ScheduleRepo backed by this connection.
func (d *DB) Schedules() *ScheduleRepo { return &ScheduleRepo{db: d.db} }

// Services returns the repo.ServiceRepo backed by this connection.
func (d *DB) Services() *ServiceRepo { return &ServiceRepo{db: d.db} }

// Accounts returns the repo.AccountRepo backed by this connection.
func (d *DB) Accounts() *AccountRepo { return &AccountRepo{db: d.db} }
