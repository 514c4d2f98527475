// Package firebase signs users in against Firebase Authentication through the Identity
// Toolkit and Secure Token REST APIs.
package firebase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lighthouse/internal/client"

	"github.com/goccy/go-json"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com"
)

// Client talks to the Firebase Auth REST endpoints for one project API key
type Client struct {
	apiKey             string
	identityToolkitURL string
	secureTokenURL     string
	httpClient         *http.Client
	now                func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURLs points the client at alternative endpoints, e.g. the Auth emulator.
func WithBaseURLs(identityToolkitURL, secureTokenURL string) Option {
	return func(c *Client) {
		c.identityToolkitURL = strings.TrimRight(identityToolkitURL, "/")
		c.secureTokenURL = strings.TrimRight(secureTokenURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:             apiKey,
		identityToolkitURL: DefaultIdentityToolkitURL,
		secureTokenURL:     DefaultSecureTokenURL,
		httpClient:         &http.Client{},
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithIdp signs in with a Google ID token obtained from the consent flow.
func (c *Client) SignInWithIdp(ctx context.Context, googleIDToken, requestURI string) (*client.Identity, error) {
	body := map[string]interface{}{
		"postBody":            url.Values{"id_token": {googleIDToken}, "providerId": {"google.com"}}.Encode(),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	return c.signIn(ctx, "signInWithIdp", body)
}

// SignInWithPassword signs in an existing email/password account.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*client.Identity, error) {
	return c.signIn(ctx, "signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SignUp creates an email/password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*client.Identity, error) {
	return c.signIn(ctx, "signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// Refresh mints a new ID token from the identity's refresh token.
func (c *Client) Refresh(ctx context.Context, identity *client.Identity) (*client.Identity, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {identity.RefreshToken},
	}
	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.secureTokenURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &client.Identity{
		UID:          firstNonEmpty(resp.UserID, identity.UID),
		Email:        identity.Email,
		IDToken:      resp.IDToken,
		RefreshToken: firstNonEmpty(resp.RefreshToken, identity.RefreshToken),
		ExpiresAt:    c.expiry(resp.ExpiresIn),
	}, nil
}

func (c *Client) signIn(ctx context.Context, method string, body map[string]interface{}) (*client.Identity, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/v1/accounts:%s?key=%s", c.identityToolkitURL, method, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp signInResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &client.Identity{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.expiry(resp.ExpiresIn),
	}, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firebase auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read firebase auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(raw, &errResp); err != nil || errResp.Error.Message == "" {
			return fmt.Errorf("firebase auth request failed with status %d", resp.StatusCode)
		}
		return authErrorFromREST(errResp.Error.Message)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode firebase auth response: %w", err)
	}
	return nil
}

func (c *Client) expiry(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	return c.now().Add(time.Duration(secs) * time.Second).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
