package repository

import (
	"context"
	"fmt"
	"time"

	emaildomain "lighthouse/internal/email/domain"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document layout:
//
//	users/{uid}/private/googleTokens
//	users/{uid}/emails/latest
const (
	usersCollection   = "users"
	privateCollection = "private"
	tokensDocument    = "googleTokens"
	emailsCollection  = "emails"
	latestDocument    = "latest"
)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// firestoreTokenRepository implements TokenRepository on Cloud Firestore
type firestoreTokenRepository struct {
	client *firestore.Client
}

// NewFirestoreTokenRepository creates a new instance of firestoreTokenRepository
func NewFirestoreTokenRepository(client *firestore.Client) TokenRepository {
	return &firestoreTokenRepository{client: client}
}

func (r *firestoreTokenRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(privateCollection).Doc(tokensDocument)
}

func (r *firestoreTokenRepository) Get(ctx context.Context, userID string) (*emaildomain.TokenRecord, error) {
	snap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token record: %w", err)
	}

	var rec emaildomain.TokenRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}
	return &rec, nil
}

// Upsert runs in a transaction so that created_at is written exactly once.
func (r *firestoreTokenRepository) Upsert(ctx context.Context, userID string, rec *emaildomain.TokenRecord, now time.Time) error {
	ref := r.doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		exists := err == nil
		if err != nil && !isNotFound(err) {
			return err
		}

		data := tokenFields(rec)
		data["updated_at"] = now
		if !exists {
			data["created_at"] = now
		}
		return tx.Set(ref, data, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("upsert token record: %w", err)
	}
	return nil
}

func (r *firestoreTokenRepository) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry, now time.Time) error {
	updates := []firestore.Update{
		{Path: "access_token", Value: accessToken},
		{Path: "updated_at", Value: now},
	}
	if !expiry.IsZero() {
		updates = append(updates, firestore.Update{Path: "expiry_date", Value: expiry})
	}
	if _, err := r.doc(userID).Update(ctx, updates); err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	return nil
}

func (r *firestoreTokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.doc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	return nil
}

// tokenFields returns the non-empty fields of rec keyed by their stored names.
func tokenFields(rec *emaildomain.TokenRecord) map[string]interface{} {
	data := map[string]interface{}{}
	if rec.AccessToken != "" {
		data["access_token"] = rec.AccessToken
	}
	if rec.RefreshToken != "" {
		data["refresh_token"] = rec.RefreshToken
	}
	if rec.Scope != "" {
		data["scope"] = rec.Scope
	}
	if rec.TokenType != "" {
		data["token_type"] = rec.TokenType
	}
	if !rec.ExpiryDate.IsZero() {
		data["expiry_date"] = rec.ExpiryDate
	}
	return data
}

// firestoreSnapshotRepository implements SnapshotRepository on Cloud Firestore
type firestoreSnapshotRepository struct {
	client *firestore.Client
}

// NewFirestoreSnapshotRepository creates a new instance of firestoreSnapshotRepository
func NewFirestoreSnapshotRepository(client *firestore.Client) SnapshotRepository {
	return &firestoreSnapshotRepository{client: client}
}

func (r *firestoreSnapshotRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(emailsCollection).Doc(latestDocument)
}

func (r *firestoreSnapshotRepository) Get(ctx context.Context, userID string) (*emaildomain.Snapshot, error) {
	snap, err := r.doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get email snapshot: %w", err)
	}

	var s emaildomain.Snapshot
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode email snapshot: %w", err)
	}
	return &s, nil
}

func (r *firestoreSnapshotRepository) Replace(ctx context.Context, userID string, snapshot *emaildomain.Snapshot) error {
	if _, err := r.doc(userID).Set(ctx, snapshot); err != nil {
		return fmt.Errorf("replace email snapshot: %w", err)
	}
	return nil
}

func (r *firestoreSnapshotRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.doc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("delete email snapshot: %w", err)
	}
	return nil
}
