package usecase

import (
	"context"
	"time"

	authdomain "lighthouse/internal/auth/domain"
	"lighthouse/internal/email/dto"
)

// EmailUsecase defines the callable operations over a user's Gmail grant and inbox snapshot.
// caller is nil for unauthenticated requests.
type EmailUsecase interface {
	ProcessUserLogin(ctx context.Context, caller *authdomain.User, req *dto.ProcessUserLoginRequest) (*dto.ProcessUserLoginResponse, error)
	GetUserEmails(ctx context.Context, caller *authdomain.User) (*dto.GetUserEmailsResponse, error)
	RefreshUserTokens(ctx context.Context, caller *authdomain.User) (*dto.StatusResponse, error)
	DeleteUserData(ctx context.Context, caller *authdomain.User) (*dto.StatusResponse, error)
}

// EventPublisher receives a best-effort notification after each processed login
type EventPublisher interface {
	PublishLoginProcessed(ctx context.Context, userID string, emailCount int, fetchedAt time.Time) error
}
