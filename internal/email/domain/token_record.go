package domain

import "time"

// TokenRecord is the OAuth grant stored for a user.
// Empty fields are never written, so a later grant without a refresh token keeps the stored one.
type TokenRecord struct {
	AccessToken  string    `json:"access_token" firestore:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty" firestore:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty" firestore:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty" firestore:"token_type,omitempty"`
	ExpiryDate   time.Time `json:"expiry_date,omitempty" firestore:"expiry_date,omitempty"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updated_at,omitempty"`
}

// TokenRecordFromOAuth builds the record written after an exchange.
func TokenRecordFromOAuth(t *OAuthToken) *TokenRecord {
	return &TokenRecord{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
		TokenType:    t.TokenType,
		ExpiryDate:   t.Expiry,
	}
}
