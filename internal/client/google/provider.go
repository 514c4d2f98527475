package google

import (
	"context"
	"errors"
	"fmt"

	"lighthouse/internal/client"

	"github.com/coreos/go-oidc/v3/oidc"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// Issuer is Google's OpenID Connect issuer.
const Issuer = "https://accounts.google.com"

// FirebaseAuth is the subset of the Firebase REST client the providers need
type FirebaseAuth interface {
	SignInWithIdp(ctx context.Context, googleIDToken, requestURI string) (*client.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*client.Identity, error)
	SignUp(ctx context.Context, email, password string) (*client.Identity, error)
	Refresh(ctx context.Context, identity *client.Identity) (*client.Identity, error)
}

// IDTokenVerifier checks Google ID tokens. *oidc.IDTokenVerifier satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// NewVerifier discovers Google's signing keys and returns a verifier bound to clientID.
func NewVerifier(ctx context.Context, clientID string) (*oidc.IDTokenVerifier, error) {
	p, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", Issuer, err)
	}
	return p.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// Provider signs in with a Google account and requests Gmail read access
type Provider struct {
	flow             *ConsentFlow
	firebase         FirebaseAuth
	verifier         IDTokenVerifier
	grantRedirectURL string
	embedGrant       bool
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithEmbeddedGrant requests Gmail access during sign-in and hands the resulting access token
// on as the grant, so no second consent round-trip is needed. No refresh token is stored
// server-side in that case.
func WithEmbeddedGrant() ProviderOption {
	return func(p *Provider) { p.embedGrant = true }
}

// NewProvider builds a Provider. grantRedirectURL must match the redirect URI the server
// uses when exchanging the Gmail authorization code.
func NewProvider(flow *ConsentFlow, fb FirebaseAuth, verifier IDTokenVerifier, grantRedirectURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		flow:             flow,
		firebase:         fb,
		verifier:         verifier,
		grantRedirectURL: grantRedirectURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var signInScopes = []string{oidc.ScopeOpenID, "email", "profile"}

func (p *Provider) SignIn(ctx context.Context) (*client.SignInResult, error) {
	scopes := signInScopes
	if p.embedGrant {
		scopes = append(append([]string{}, signInScopes...), gmailv1.GmailReadonlyScope)
	}
	resp, err := p.flow.Authorize(ctx, AuthRequest{Scopes: scopes, PKCE: true})
	if err != nil {
		return nil, err
	}
	tok, err := p.flow.Exchange(ctx, resp)
	if err != nil {
		return nil, err
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, errors.New("google did not return an id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify google id token: %w", err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("read google id token claims: %w", err)
	}
	if claims.Email != "" && !claims.EmailVerified {
		return nil, &client.AuthError{Code: "auth/unverified-email", Message: "Google account email is not verified."}
	}

	identity, err := p.firebase.SignInWithIdp(ctx, rawIDToken, resp.RedirectURL)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		identity.Email = claims.Email
	}

	result := &client.SignInResult{Identity: identity}
	if p.embedGrant && tok.AccessToken != "" {
		result.Grant = &client.Grant{AccessToken: tok.AccessToken}
	}
	return result, nil
}

// RequestGrant asks for offline Gmail read access. The code is handed to the server unexchanged.
func (p *Provider) RequestGrant(ctx context.Context, identity *client.Identity) (*client.Grant, error) {
	hint := ""
	if identity != nil {
		hint = identity.Email
	}
	resp, err := p.flow.Authorize(ctx, AuthRequest{
		RedirectURL: p.grantRedirectURL,
		Scopes:      []string{gmailv1.GmailReadonlyScope},
		LoginHint:   hint,
		Offline:     true,
	})
	if err != nil {
		return nil, err
	}
	return &client.Grant{AuthorizationCode: resp.Code}, nil
}

func (p *Provider) Refresh(ctx context.Context, identity *client.Identity) (*client.Identity, error) {
	return p.firebase.Refresh(ctx, identity)
}

// Credentials are the email/password form values
type Credentials struct {
	Email    string
	Password string
	// Confirm is only checked on sign-up.
	Confirm string
	SignUp  bool
}

// PasswordProvider signs in with a Firebase email/password account. The Gmail grant still goes
// through Google consent.
type PasswordProvider struct {
	google   *Provider
	firebase FirebaseAuth
	creds    Credentials
}

func NewPasswordProvider(google *Provider, fb FirebaseAuth, creds Credentials) *PasswordProvider {
	return &PasswordProvider{google: google, firebase: fb, creds: creds}
}

func (p *PasswordProvider) SignIn(ctx context.Context) (*client.SignInResult, error) {
	var (
		identity *client.Identity
		err      error
	)
	if p.creds.SignUp {
		if err := client.ValidateSignUp(p.creds.Email, p.creds.Password, p.creds.Confirm); err != nil {
			return nil, err
		}
		identity, err = p.firebase.SignUp(ctx, p.creds.Email, p.creds.Password)
	} else {
		if err := client.ValidateSignIn(p.creds.Email, p.creds.Password); err != nil {
			return nil, err
		}
		identity, err = p.firebase.SignInWithPassword(ctx, p.creds.Email, p.creds.Password)
	}
	if err != nil {
		return nil, err
	}
	return &client.SignInResult{Identity: identity}, nil
}

func (p *PasswordProvider) RequestGrant(ctx context.Context, identity *client.Identity) (*client.Grant, error) {
	return p.google.RequestGrant(ctx, identity)
}

func (p *PasswordProvider) Refresh(ctx context.Context, identity *client.Identity) (*client.Identity, error) {
	return p.firebase.Refresh(ctx, identity)
}
