package repository

import (
	"context"
	"time"

	emaildomain "lighthouse/internal/email/domain"
	"lighthouse/pkg/utils/crypto"
)

// encryptedTokenRepository seals access and refresh tokens before they reach the underlying store
type encryptedTokenRepository struct {
	inner TokenRepository
	key   *[32]byte
}

// NewEncryptedTokenRepository wraps inner. A nil key returns inner unchanged.
func NewEncryptedTokenRepository(inner TokenRepository, key *[32]byte) TokenRepository {
	if key == nil {
		return inner
	}
	return &encryptedTokenRepository{inner: inner, key: key}
}

func (r *encryptedTokenRepository) Get(ctx context.Context, userID string) (*emaildomain.TokenRecord, error) {
	rec, err := r.inner.Get(ctx, userID)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.AccessToken, err = crypto.Decrypt(rec.AccessToken, r.key); err != nil {
		return nil, err
	}
	if rec.RefreshToken, err = crypto.Decrypt(rec.RefreshToken, r.key); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *encryptedTokenRepository) Upsert(ctx context.Context, userID string, rec *emaildomain.TokenRecord, now time.Time) error {
	sealed := *rec
	var err error
	if sealed.AccessToken, err = crypto.Encrypt(rec.AccessToken, r.key); err != nil {
		return err
	}
	if sealed.RefreshToken, err = crypto.Encrypt(rec.RefreshToken, r.key); err != nil {
		return err
	}
	return r.inner.Upsert(ctx, userID, &sealed, now)
}

func (r *encryptedTokenRepository) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry, now time.Time) error {
	sealed, err := crypto.Encrypt(accessToken, r.key)
	if err != nil {
		return err
	}
	return r.inner.UpdateAccessToken(ctx, userID, sealed, expiry, now)
}

func (r *encryptedTokenRepository) Delete(ctx context.Context, userID string) error {
	return r.inner.Delete(ctx, userID)
}
