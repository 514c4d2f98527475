// Package client drives the sign-in pipeline of the command-line client: identity
// sign-in, Gmail grant, server-side token exchange and email retrieval.
package client

import (
	"context"
	"time"

	"lighthouse/internal/email/dto"
)

// Identity is a signed-in Firebase user together with the tokens that authenticate calls
type Identity struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the ID token is expired or expires within skew of now.
func (i *Identity) Expired(now time.Time, skew time.Duration) bool {
	return !i.ExpiresAt.After(now.Add(skew))
}

// Grant is the Gmail authorization handed to processUserLogin
type Grant struct {
	AuthorizationCode string
	AccessToken       string
}

func (g *Grant) empty() bool {
	return g == nil || (g.AuthorizationCode == "" && g.AccessToken == "")
}

// SignInResult is what an interactive sign-in yields. Grant is set only when the
// provider obtained Gmail authorization as part of the same interaction.
type SignInResult struct {
	Identity *Identity
	Grant    *Grant
}

// IdentityProvider performs interactive sign-in and the follow-up Gmail grant request
type IdentityProvider interface {
	SignIn(ctx context.Context) (*SignInResult, error)
	// RequestGrant asks the identity's user for Gmail read access, with the identity email as login hint.
	RequestGrant(ctx context.Context, identity *Identity) (*Grant, error)
	// Refresh exchanges the identity's refresh token for a fresh ID token.
	Refresh(ctx context.Context, identity *Identity) (*Identity, error)
}

// Backend invokes the server-side callable operations
type Backend interface {
	ProcessUserLogin(ctx context.Context, idToken string, req *dto.ProcessUserLoginRequest) (*dto.ProcessUserLoginResponse, error)
	GetUserEmails(ctx context.Context, idToken string) (*dto.GetUserEmailsResponse, error)
	RefreshUserTokens(ctx context.Context, idToken string) (*dto.StatusResponse, error)
	DeleteUserData(ctx context.Context, idToken string) (*dto.StatusResponse, error)
}

// Session is the persisted client state
type Session struct {
	Identity *Identity `json:"identity"`
	// TokensExchanged is set once processUserLogin succeeded for this identity.
	TokensExchanged bool `json:"tokensExchanged"`
}

// SessionStore persists the Session between invocations. Load returns nil when none is stored.
type SessionStore interface {
	Load() (*Session, error)
	Save(session *Session) error
	Clear() error
}
