package usecase

import (
	"context"
	"errors"

	authdomain "lighthouse/internal/auth/domain"

	"firebase.google.com/go/v4/auth"
)

// ErrInvalidToken is returned for ID tokens that fail verification.
var ErrInvalidToken = errors.New("invalid or expired ID token")

// IDTokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthUsecase resolves the caller behind a bearer token
type AuthUsecase interface {
	ValidateToken(ctx context.Context, idToken string) (*authdomain.User, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	verifier IDTokenVerifier
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(verifier IDTokenVerifier) AuthUsecase {
	return &authUsecase{
		verifier: verifier,
	}
}

func (u *authUsecase) ValidateToken(ctx context.Context, idToken string) (*authdomain.User, error) {
	if idToken == "" {
		return nil, ErrInvalidToken
	}

	token, err := u.verifier.VerifyIDToken(ctx, idToken)
	if err != nil || token == nil || token.UID == "" {
		return nil, ErrInvalidToken
	}

	user := &authdomain.User{ID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		user.Email = email
	}
	return user, nil
}
