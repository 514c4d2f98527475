// Package google runs Google's OAuth consent flow from the terminal and turns its results into
// Firebase identities and Gmail grants.
package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"lighthouse/internal/client"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const defaultRedirectTimeout = 2 * time.Minute

// AuthRequest describes one trip through the consent screen
type AuthRequest struct {
	// RedirectURL is the loopback URL to listen on. Empty picks a free port on 127.0.0.1.
	RedirectURL string
	Scopes      []string
	LoginHint   string
	// Offline asks for a refresh token and forces the consent prompt.
	Offline bool
	// PKCE adds a code challenge. Only usable when the code is exchanged locally.
	PKCE bool
}

// AuthResponse is the authorization code delivered to the loopback listener
type AuthResponse struct {
	Code        string
	RedirectURL string
	Verifier    string
	Scopes      []string
}

// ConsentFlow drives the authorization-code flow through a loopback listener
type ConsentFlow struct {
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	timeout      time.Duration
	out          io.Writer
	in           io.Reader
	visit        func(authURL string) error
}

// ConsentOption configures a ConsentFlow
type ConsentOption func(*ConsentFlow)

func WithEndpoint(endpoint oauth2.Endpoint) ConsentOption {
	return func(f *ConsentFlow) { f.endpoint = endpoint }
}

// WithRedirectTimeout bounds the wait for the browser redirect before falling back to manual paste.
func WithRedirectTimeout(d time.Duration) ConsentOption {
	return func(f *ConsentFlow) { f.timeout = d }
}

// WithPrompt sets where instructions are written and where a pasted code is read from.
// A nil reader disables the manual paste fallback.
func WithPrompt(out io.Writer, in io.Reader) ConsentOption {
	return func(f *ConsentFlow) {
		f.out = out
		f.in = in
	}
}

// WithURLVisitor replaces printing the consent URL, e.g. to launch a browser.
func WithURLVisitor(visit func(authURL string) error) ConsentOption {
	return func(f *ConsentFlow) { f.visit = visit }
}

func NewConsentFlow(clientID, clientSecret string, opts ...ConsentOption) *ConsentFlow {
	f := &ConsentFlow{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     googleoauth.Endpoint,
		timeout:      defaultRedirectTimeout,
		out:          os.Stderr,
		in:           os.Stdin,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ConsentFlow) config(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint:     f.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

type redirectResult struct {
	code string
	err  error
}

// Authorize shows the consent URL and waits for the redirect carrying the authorization code.
func (f *ConsentFlow) Authorize(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	ln, redirect, err := listenLoopback(req.RedirectURL)
	if err != nil {
		return nil, err
	}

	state := uuid.NewString()
	resCh := make(chan redirectResult, 1)

	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	mux.HandleFunc(redirectPath(redirect), func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res redirectResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = consentError(q.Get("error"), q.Get("error_description"))
			fmt.Fprintln(w, "Authorization was not granted. You can close this window.")
		case q.Get("code") == "":
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
		}
		select {
		case resCh <- res:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()

	cfg := f.config(redirect, req.Scopes)
	opts := []oauth2.AuthCodeOption{}
	if req.Offline {
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	if req.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", req.LoginHint))
	}
	var verifier string
	if req.PKCE {
		verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	if err := f.show(authURL, redirect); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if f.timeout > 0 {
		timer := time.NewTimer(f.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		if r.err != nil {
			return nil, r.err
		}
		return &AuthResponse{Code: r.code, RedirectURL: redirect, Verifier: verifier, Scopes: req.Scopes}, nil
	case <-timeout:
		code, err := f.readPastedCode(ctx)
		if err != nil {
			return nil, err
		}
		return &AuthResponse{Code: code, RedirectURL: redirect, Verifier: verifier, Scopes: req.Scopes}, nil
	}
}

// Exchange trades the authorization code for tokens on this machine.
func (f *ConsentFlow) Exchange(ctx context.Context, resp *AuthResponse) (*oauth2.Token, error) {
	cfg := f.config(resp.RedirectURL, resp.Scopes)
	var opts []oauth2.AuthCodeOption
	if resp.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(resp.Verifier))
	}
	tok, err := cfg.Exchange(ctx, strings.TrimSpace(resp.Code), opts...)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

func (f *ConsentFlow) show(authURL, redirect string) error {
	if f.visit != nil {
		return f.visit(authURL)
	}
	fmt.Fprintln(f.out, "Open this URL in your browser to continue:")
	fmt.Fprintln(f.out, authURL)
	fmt.Fprintf(f.out, "Waiting for redirect on %s ...\n", redirect)
	return nil
}

// readPastedCode waits for a pasted code or URL. The read itself cannot be interrupted, so a
// cancelled ctx abandons it and the scanning goroutine exits with the input.
func (f *ConsentFlow) readPastedCode(ctx context.Context) (string, error) {
	if f.in == nil {
		return "", &client.AuthError{Code: "auth/popup-closed-by-user", Message: "timed out waiting for authorization"}
	}
	fmt.Fprintln(f.out, "Timeout waiting for redirect.")
	fmt.Fprintln(f.out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(f.out, "> ")

	type line struct {
		text string
		err  error
	}
	lineCh := make(chan line, 1)
	go func() {
		sc := bufio.NewScanner(f.in)
		sc.Buffer(make([]byte, 0, 1024), 1024*1024)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				lineCh <- line{err: fmt.Errorf("read auth code: %w", err)}
				return
			}
			lineCh <- line{err: errors.New(client.MsgNoAuthCode)}
			return
		}
		lineCh <- line{text: sc.Text()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-lineCh:
		if l.err != nil {
			return "", l.err
		}
		return codeFromInput(l.text)
	}
}

// codeFromInput accepts either a bare code or the full redirect URL.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New(client.MsgNoAuthCode)
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New(client.MsgNoAuthCode)
	}
	return code, nil
}

// consentError maps OAuth error redirects onto auth/ codes.
func consentError(code, description string) error {
	msg := description
	if msg == "" {
		msg = code
	}
	if code == "access_denied" {
		return &client.AuthError{Code: "auth/popup-closed-by-user", Message: msg}
	}
	return &client.AuthError{Code: "auth/" + strings.ReplaceAll(code, "_", "-"), Message: msg}
}

func listenLoopback(redirectURL string) (net.Listener, string, error) {
	if redirectURL == "" {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, "", fmt.Errorf("listen on loopback: %w", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		return ln, fmt.Sprintf("http://127.0.0.1:%d/", port), nil
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse redirect URL: %w", err)
	}
	if u.Scheme != "http" {
		return nil, "", fmt.Errorf("redirect URL %q is not a loopback http URL", redirectURL)
	}
	host := u.Hostname()
	if host == "localhost" {
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return nil, "", fmt.Errorf("redirect URL %q is not a loopback http URL", redirectURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", u.Host, err)
	}
	return ln, redirectURL, nil
}

func redirectPath(redirect string) string {
	u, err := url.Parse(redirect)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
