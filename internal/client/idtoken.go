package client

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityFromIDToken reads uid, email and expiry from a Firebase ID token. The signature is
// not checked here; the server verifies every token it receives.
func IdentityFromIDToken(idToken, refreshToken string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	uid, _ := claims["user_id"].(string)
	if uid == "" {
		sub, err := claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("read subject: %w", err)
		}
		uid = sub
	}
	if uid == "" {
		return nil, errors.New("id token has no subject")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("id token has no expiry")
	}
	email, _ := claims["email"].(string)

	return &Identity{
		UID:          uid,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    exp.Time.UTC(),
	}, nil
}
