package gmail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	emaildomain "lighthouse/internal/email/domain"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// metadataHeaders are the only headers requested when fetching a message in metadata format.
var metadataHeaders = []string{"From", "Subject", "Date"}

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("gmail API temporarily unavailable")

// Service talks to the Gmail API and Google's OAuth token endpoint on behalf of a user.
type Service struct {
	oauthConfig *oauth2.Config
	clientOpts  []option.ClientOption
	cb          *gobreaker.CircuitBreaker
}

type Option func(*Service)

// WithEndpoint overrides the OAuth endpoint (google.Endpoint by default).
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(s *Service) {
		s.oauthConfig.Endpoint = endpoint
	}
}

// WithClientOptions appends options used when building the Gmail API client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Service) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

func NewService(clientID, clientSecret, redirectURL string, opts ...Option) *Service {
	s := &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{gmail.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		// Client errors (bad grant, unknown message) say nothing about the health of the API.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
			}
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
				return retrieveErr.Response.StatusCode < 500
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Gmail] Circuit breaker %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})
	return s
}

// ExchangeCode trades an authorization code for tokens at the token endpoint.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*emaildomain.OAuthToken, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.oauthConfig.Exchange(ctx, code)
	})
	if err != nil {
		return nil, wrapError(err, "unable to exchange authorization code")
	}
	return toDomainToken(res.(*oauth2.Token)), nil
}

// RefreshAccessToken obtains a new access token using a stored refresh token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*emaildomain.OAuthToken, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		// An empty access token forces the token source to refresh.
		return s.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	})
	if err != nil {
		return nil, wrapError(err, "unable to refresh access token")
	}
	return toDomainToken(res.(*oauth2.Token)), nil
}

// ListMessageIDs returns the ids of the newest messages in the mailbox, at most maxResults of them.
func (s *Service) ListMessageIDs(ctx context.Context, accessToken string, maxResults int) ([]string, error) {
	srv, err := s.getGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return srv.Users.Messages.List(user).MaxResults(int64(maxResults)).Context(ctx).Do()
	})
	if err != nil {
		return nil, wrapError(err, "unable to retrieve messages")
	}

	resp := res.(*gmail.ListMessagesResponse)
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// GetMessageMetadata fetches the From, Subject and Date headers and the snippet of one message.
func (s *Service) GetMessageMetadata(ctx context.Context, accessToken, messageID string) (*emaildomain.MessageMetadata, error) {
	srv, err := s.getGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return srv.Users.Messages.Get(user, messageID).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, wrapError(err, fmt.Sprintf("unable to retrieve message %s", messageID))
	}

	msg := res.(*gmail.Message)
	meta := &emaildomain.MessageMetadata{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if meta.ID == "" {
		meta.ID = messageID
	}
	if msg.Payload != nil {
		meta.From = getHeader(msg.Payload.Headers, "From")
		meta.Subject = getHeader(msg.Payload.Headers, "Subject")
		meta.Date = getHeader(msg.Payload.Headers, "Date")
	}
	return meta, nil
}

// getGmailService creates a Gmail client authorised with the user's access token
func (s *Service) getGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.clientOpts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func toDomainToken(t *oauth2.Token) *emaildomain.OAuthToken {
	out := &emaildomain.OAuthToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

func wrapError(err error, msg string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", msg, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}
