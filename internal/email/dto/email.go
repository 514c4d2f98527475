package dto

import (
	"time"

	emaildomain "lighthouse/internal/email/domain"
)

// ProcessUserLoginRequest carries the Gmail grant obtained by the client. When both are
// present the authorization code is used.
type ProcessUserLoginRequest struct {
	AuthorizationCode string `json:"authorizationCode,omitempty"`
	AccessToken       string `json:"accessToken,omitempty"`
	UID               string `json:"uid"`
}

type ProcessUserLoginResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	EmailCount int    `json:"emailCount"`
}

type GetUserEmailsResponse struct {
	Success    bool                       `json:"success"`
	Emails     []emaildomain.EmailSummary `json:"emails"`
	TotalCount *int                       `json:"totalCount,omitempty"`
	FetchedAt  *time.Time                 `json:"fetchedAt,omitempty"`
	Message    string                     `json:"message,omitempty"`
}

// StatusResponse is returned by operations that only report completion
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
