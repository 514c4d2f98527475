package domain

import (
	"context"
	"time"
)

// MessageMetadata holds the headers and preview of a message fetched in metadata format
type MessageMetadata struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     string
	Snippet  string
}

// OAuthToken is the result of a code exchange or refresh at the provider's token endpoint
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	TokenType    string
	Expiry       time.Time
}

// MailProvider abstracts the mail API and its OAuth token endpoint
type MailProvider interface {
	ExchangeCode(ctx context.Context, code string) (*OAuthToken, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*OAuthToken, error)
	ListMessageIDs(ctx context.Context, accessToken string, maxResults int) ([]string, error)
	GetMessageMetadata(ctx context.Context, accessToken, messageID string) (*MessageMetadata, error)
}
