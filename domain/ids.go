// Package domain holds the entities shared by the availability engine:
// calendars, events, recurrence rules, schedules, services and reminders.
package domain

import "github.com/lithammer/shortuuid/v4"

// ID is an opaque entity identifier. The engine never parses or interprets
// it beyond equality, so any unique string works; repositories decide the
// concrete representation (UUID, shortuuid, database serial, ...).
type ID = string

// NewID generates a new short, URL-safe entity identifier.
func NewID() ID {
	return shortuuid.New()
}
