package repository

import (
	"context"
	"time"

	emaildomain "lighthouse/internal/email/domain"
)

// TokenRepository stores the OAuth grant of each user
type TokenRepository interface {
	// Get returns the stored record, or nil when the user has none
	Get(ctx context.Context, userID string) (*emaildomain.TokenRecord, error)
	// Upsert merges the non-empty fields of rec into the stored record. created_at is set
	// to now only when the record is created; updated_at is always set to now.
	Upsert(ctx context.Context, userID string, rec *emaildomain.TokenRecord, now time.Time) error
	// UpdateAccessToken rewrites access_token, expiry_date and updated_at of an existing record
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry, now time.Time) error
	Delete(ctx context.Context, userID string) error
}

// SnapshotRepository stores the latest inbox snapshot of each user
type SnapshotRepository interface {
	// Get returns the stored snapshot, or nil when the user has none
	Get(ctx context.Context, userID string) (*emaildomain.Snapshot, error)
	// Replace overwrites the stored snapshot entirely
	Replace(ctx context.Context, userID string, snapshot *emaildomain.Snapshot) error
	Delete(ctx context.Context, userID string) error
}
