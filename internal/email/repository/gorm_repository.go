package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "lighthouse/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// googleToken is the Postgres row backing a TokenRecord
type googleToken struct {
	UserID       string     `gorm:"primaryKey"`
	AccessToken  string     `gorm:"type:text"`
	RefreshToken string     `gorm:"type:text"`
	Scope        string     `gorm:"type:text"`
	TokenType    string
	ExpiryDate   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (googleToken) TableName() string {
	return "google_tokens"
}

// emailSnapshot is the Postgres row backing a Snapshot
type emailSnapshot struct {
	UserID    string                       `gorm:"primaryKey"`
	Emails    emaildomain.EmailSummaryList `gorm:"type:jsonb"`
	FetchedAt time.Time
	Count     int
}

// TableName specifies the table name for GORM
func (emailSnapshot) TableName() string {
	return "email_snapshots"
}

// AutoMigrate creates the tables used by the Postgres store backend
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&googleToken{}, &emailSnapshot{})
}

// tokenRepository implements TokenRepository on Postgres
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Get(ctx context.Context, userID string) (*emaildomain.TokenRecord, error) {
	var row googleToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rec := &emaildomain.TokenRecord{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		Scope:        row.Scope,
		TokenType:    row.TokenType,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.ExpiryDate != nil {
		rec.ExpiryDate = *row.ExpiryDate
	}
	return rec, nil
}

// Upsert performs INSERT ... ON CONFLICT (user_id) DO UPDATE on the non-empty columns only
func (r *tokenRepository) Upsert(ctx context.Context, userID string, rec *emaildomain.TokenRecord, now time.Time) error {
	row := &googleToken{
		UserID:       userID,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		Scope:        rec.Scope,
		TokenType:    rec.TokenType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !rec.ExpiryDate.IsZero() {
		expiry := rec.ExpiryDate
		row.ExpiryDate = &expiry
	}

	columns := []string{"updated_at"}
	for field := range tokenFields(rec) {
		columns = append(columns, field)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

func (r *tokenRepository) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiry, now time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"updated_at":   now,
	}
	if !expiry.IsZero() {
		updates["expiry_date"] = expiry
	}

	result := r.db.WithContext(ctx).Model(&googleToken{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no token record for user %s", userID)
	}
	return nil
}

func (r *tokenRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&googleToken{}).Error
}

// snapshotRepository implements SnapshotRepository on Postgres
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new instance of snapshotRepository
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Get(ctx context.Context, userID string) (*emaildomain.Snapshot, error) {
	var row emailSnapshot
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &emaildomain.Snapshot{
		Emails:    row.Emails,
		FetchedAt: row.FetchedAt,
		Count:     row.Count,
	}, nil
}

func (r *snapshotRepository) Replace(ctx context.Context, userID string, snapshot *emaildomain.Snapshot) error {
	row := &emailSnapshot{
		UserID:    userID,
		Emails:    snapshot.Emails,
		FetchedAt: snapshot.FetchedAt,
		Count:     snapshot.Count,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func (r *snapshotRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&emailSnapshot{}).Error
}
