package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	authdomain "lighthouse/internal/auth/domain"
	emaildomain "lighthouse/internal/email/domain"
	"lighthouse/internal/email/dto"
	"lighthouse/internal/email/repository"
	"lighthouse/pkg/callable"
	"lighthouse/pkg/config"
)

const (
	msgLoginProcessed    = "User login processed successfully"
	msgNoEmails          = "No emails found. Please sign in again to fetch emails."
	msgTokensRefreshed   = "Tokens refreshed successfully"
	msgUserDataDeleted   = "User data deleted successfully"
	msgUnauthenticated   = "User must be authenticated"
	msgMissingGrant      = "authorizationCode or accessToken is required"
	msgNoCredentials     = "Google OAuth credentials not configured"
	msgNoTokens          = "No tokens found for user"
	msgNoRefreshToken    = "No refresh token available"
	maxConcurrentFetches = 10
	// fetchLimit is how many of the newest messages a login snapshots.
	fetchLimit = 10
	// displayLimit caps the entries getUserEmails returns.
	displayLimit = 5
)

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	tokenRepo    repository.TokenRepository
	snapshotRepo repository.SnapshotRepository
	mailProvider emaildomain.MailProvider
	publisher    EventPublisher
	config       *config.Config
	now          func() time.Time
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(tokenRepo repository.TokenRepository, snapshotRepo repository.SnapshotRepository, mailProvider emaildomain.MailProvider, publisher EventPublisher, cfg *config.Config) EmailUsecase {
	return &emailUsecase{
		tokenRepo:    tokenRepo,
		snapshotRepo: snapshotRepo,
		mailProvider: mailProvider,
		publisher:    publisher,
		config:       cfg,
		now:          time.Now,
	}
}

// ProcessUserLogin exchanges the client's Gmail grant, stores the tokens and snapshots the newest messages.
func (u *emailUsecase) ProcessUserLogin(ctx context.Context, caller *authdomain.User, req *dto.ProcessUserLoginRequest) (*dto.ProcessUserLoginResponse, error) {
	if req == nil || req.UID == "" {
		return nil, callable.NewError(callable.CodeInvalidArgument, "Missing uid")
	}
	if caller == nil || caller.ID != req.UID {
		return nil, callable.NewError(callable.CodeUnauthenticated, msgUnauthenticated)
	}
	if req.AuthorizationCode == "" && req.AccessToken == "" {
		return nil, callable.NewError(callable.CodeInvalidArgument, msgMissingGrant)
	}

	log.Printf("[ProcessUserLogin] Processing login for user: %s", req.UID)

	resp, err := u.processUserLogin(ctx, req)
	if err != nil {
		log.Printf("[ProcessUserLogin] Error for user %s: %v", req.UID, err)
		return nil, callable.WrapInternal(err, "Failed to process user login")
	}
	return resp, nil
}

func (u *emailUsecase) processUserLogin(ctx context.Context, req *dto.ProcessUserLoginRequest) (*dto.ProcessUserLoginResponse, error) {
	token, err := u.obtainToken(ctx, req)
	if err != nil {
		return nil, err
	}

	now := u.now()
	if err := u.tokenRepo.Upsert(ctx, req.UID, emaildomain.TokenRecordFromOAuth(token), now); err != nil {
		return nil, err
	}

	emails, err := u.fetchRecentEmails(ctx, token.AccessToken, now)
	if err != nil {
		return nil, err
	}

	snapshot := &emaildomain.Snapshot{
		Emails:    emails,
		FetchedAt: now,
		Count:     len(emails),
	}
	if err := u.snapshotRepo.Replace(ctx, req.UID, snapshot); err != nil {
		return nil, err
	}
	log.Printf("[ProcessUserLogin] Stored %d emails for user %s", len(emails), req.UID)

	if u.publisher != nil {
		if err := u.publisher.PublishLoginProcessed(ctx, req.UID, len(emails), now); err != nil {
			log.Printf("[ProcessUserLogin] Failed to publish login event for user %s: %v", req.UID, err)
		}
	}

	return &dto.ProcessUserLoginResponse{
		Success:    true,
		Message:    msgLoginProcessed,
		EmailCount: len(emails),
	}, nil
}

// obtainToken prefers the authorization code; a bare access token is used as is, with no refresh token or expiry.
func (u *emailUsecase) obtainToken(ctx context.Context, req *dto.ProcessUserLoginRequest) (*emaildomain.OAuthToken, error) {
	if req.AuthorizationCode == "" {
		return &emaildomain.OAuthToken{AccessToken: req.AccessToken}, nil
	}
	if !u.config.HasGoogleCredentials() {
		return nil, callable.NewError(callable.CodeInternal, msgNoCredentials)
	}
	return u.mailProvider.ExchangeCode(ctx, req.AuthorizationCode)
}

// fetchRecentEmails lists the newest messages and fetches their metadata concurrently.
// A message whose metadata cannot be fetched is kept as a placeholder in its listing position.
func (u *emailUsecase) fetchRecentEmails(ctx context.Context, accessToken string, now time.Time) ([]emaildomain.EmailSummary, error) {
	ids, err := u.mailProvider.ListMessageIDs(ctx, accessToken, fetchLimit)
	if err != nil {
		return nil, err
	}

	emails := make([]emaildomain.EmailSummary, len(ids))
	if len(ids) == 0 {
		return emails, nil
	}

	limit := len(ids)
	if limit > maxConcurrentFetches {
		limit = maxConcurrentFetches
	}
	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			meta, err := u.mailProvider.GetMessageMetadata(ctx, accessToken, id)
			if err != nil {
				log.Printf("[ProcessUserLogin] Error fetching message %s: %v", id, err)
				emails[i] = emaildomain.PlaceholderSummary(id, now)
				return
			}
			emails[i] = emaildomain.SummaryFromMetadata(meta, now)
		}(i, id)
	}
	wg.Wait()

	return emails, nil
}

// GetUserEmails returns the head of the stored snapshot without contacting Gmail.
func (u *emailUsecase) GetUserEmails(ctx context.Context, caller *authdomain.User) (*dto.GetUserEmailsResponse, error) {
	if caller == nil {
		return nil, callable.NewError(callable.CodeUnauthenticated, msgUnauthenticated)
	}

	snapshot, err := u.snapshotRepo.Get(ctx, caller.ID)
	if err != nil {
		log.Printf("[GetUserEmails] Error for user %s: %v", caller.ID, err)
		return nil, callable.WrapInternal(err, "Failed to get user emails")
	}
	if snapshot == nil {
		log.Printf("[GetUserEmails] No emails found for user %s", caller.ID)
		return &dto.GetUserEmailsResponse{
			Success: true,
			Emails:  []emaildomain.EmailSummary{},
			Message: msgNoEmails,
		}, nil
	}

	recent := snapshot.Emails
	if len(recent) > displayLimit {
		recent = recent[:displayLimit]
	}
	if recent == nil {
		recent = []emaildomain.EmailSummary{}
	}
	total := len(snapshot.Emails)
	fetchedAt := snapshot.FetchedAt

	return &dto.GetUserEmailsResponse{
		Success:    true,
		Emails:     recent,
		TotalCount: &total,
		FetchedAt:  &fetchedAt,
	}, nil
}

// RefreshUserTokens trades the stored refresh token for a new access token.
func (u *emailUsecase) RefreshUserTokens(ctx context.Context, caller *authdomain.User) (*dto.StatusResponse, error) {
	if caller == nil {
		return nil, callable.NewError(callable.CodeUnauthenticated, msgUnauthenticated)
	}

	resp, err := u.refreshUserTokens(ctx, caller.ID)
	if err != nil {
		log.Printf("[RefreshUserTokens] Error for user %s: %v", caller.ID, err)
		return nil, callable.WrapInternal(err, "Failed to refresh tokens")
	}
	return resp, nil
}

func (u *emailUsecase) refreshUserTokens(ctx context.Context, userID string) (*dto.StatusResponse, error) {
	rec, err := u.tokenRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, callable.NewError(callable.CodeNotFound, msgNoTokens)
	}
	if rec.RefreshToken == "" {
		return nil, callable.NewError(callable.CodeInvalidArgument, msgNoRefreshToken)
	}
	if !u.config.HasGoogleCredentials() {
		return nil, callable.NewError(callable.CodeInternal, msgNoCredentials)
	}

	token, err := u.mailProvider.RefreshAccessToken(ctx, rec.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := u.tokenRepo.UpdateAccessToken(ctx, userID, token.AccessToken, token.Expiry, u.now()); err != nil {
		return nil, err
	}

	log.Printf("[RefreshUserTokens] Tokens refreshed for user %s", userID)
	return &dto.StatusResponse{Success: true, Message: msgTokensRefreshed}, nil
}

// DeleteUserData removes the caller's stored grant and inbox snapshot.
func (u *emailUsecase) DeleteUserData(ctx context.Context, caller *authdomain.User) (*dto.StatusResponse, error) {
	if caller == nil {
		return nil, callable.NewError(callable.CodeUnauthenticated, msgUnauthenticated)
	}

	if err := u.tokenRepo.Delete(ctx, caller.ID); err != nil {
		return nil, callable.WrapInternal(err, "Failed to delete user data")
	}
	if err := u.snapshotRepo.Delete(ctx, caller.ID); err != nil {
		return nil, callable.WrapInternal(err, "Failed to delete user data")
	}

	log.Printf("[DeleteUserData] Deleted tokens and emails for user %s", caller.ID)
	return &dto.StatusResponse{Success: true, Message: msgUserDataDeleted}, nil
}
