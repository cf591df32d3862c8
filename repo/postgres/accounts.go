package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nettuhq/scheduler/domain"
)

func compareAPIKey(hash, apiKey string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil
}

// AccountRepo is the PostgreSQL-backed repo.AccountRepo implementation.
//
// Expected schema:
//
//	CREATE TABLE accounts (
//	    id            TEXT PRIMARY KEY,
//	    api_key_hash  TEXT NOT NULL,
//	    webhook       JSONB
//	);
type AccountRepo struct {
	db *sql.DB
}

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var a domain.Account
	var webhookJSON []byte
	if err := row.Scan(&a.ID, &a.APIKeyHash, &webhookJSON); err != nil {
		return nil, err
	}
	if len(webhookJSON) > 0 {
		var webhook domain.WebhookSettings
		if err := json.Unmarshal(webhookJSON, &webhook); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account webhook settings: %w", err)
		}
		a.Settings.Webhook = &webhook
	}
	return &a, nil
}

func (r *AccountRepo) Find(ctx context.Context, id domain.ID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, api_key_hash, webhook FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", id, err)
	}
	return a, nil
}

// FindByAPIKey scans every account and compares apiKey against the stored
// bcrypt hash; see memory.AccountRepo.FindByAPIKey for why this stays
// linear rather than querying by a derived lookup column.
func (r *AccountRepo) FindByAPIKey(ctx context.Context, apiKey string) (*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, api_key_hash, webhook FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if compareAPIKey(a.APIKeyHash, apiKey) {
			return a, nil
		}
	}
	return nil, rows.Err()
}
