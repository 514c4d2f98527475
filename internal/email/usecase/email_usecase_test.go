package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	authdomain "lighthouse/internal/auth/domain"
	emaildomain "lighthouse/internal/email/domain"
	"lighthouse/internal/email/dto"
	"lighthouse/pkg/callable"
	"lighthouse/pkg/config"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTokenRepo struct {
	mu      sync.Mutex
	records map[string]*emaildomain.TokenRecord
	writes  int
	getErr  error
}

func (f *fakeTokenRepo) Get(_ context.Context, userID string) (*emaildomain.TokenRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeTokenRepo) Upsert(_ context.Context, userID string, rec *emaildomain.TokenRecord, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	cp := *rec
	cp.UpdatedAt = now
	if existing, ok := f.records[userID]; ok {
		cp.CreatedAt = existing.CreatedAt
		if cp.RefreshToken == "" {
			cp.RefreshToken = existing.RefreshToken
		}
	} else {
		cp.CreatedAt = now
	}
	f.records[userID] = &cp
	return nil
}

func (f *fakeTokenRepo) UpdateAccessToken(_ context.Context, userID, accessToken string, expiry, now time.Time) error {
	f.writes++
	rec, ok := f.records[userID]
	if !ok {
		return errors.New("no record")
	}
	rec.AccessToken = accessToken
	rec.ExpiryDate = expiry
	rec.UpdatedAt = now
	return nil
}

func (f *fakeTokenRepo) Delete(_ context.Context, userID string) error {
	f.writes++
	delete(f.records, userID)
	return nil
}

type fakeSnapshotRepo struct {
	snapshots map[string]*emaildomain.Snapshot
	writes    int
	getErr    error
}

func (f *fakeSnapshotRepo) Get(_ context.Context, userID string) (*emaildomain.Snapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.snapshots[userID], nil
}

func (f *fakeSnapshotRepo) Replace(_ context.Context, userID string, s *emaildomain.Snapshot) error {
	f.writes++
	f.snapshots[userID] = s
	return nil
}

func (f *fakeSnapshotRepo) Delete(_ context.Context, userID string) error {
	f.writes++
	delete(f.snapshots, userID)
	return nil
}

type fakeMailProvider struct {
	exchanged   []string
	exchangeErr error
	refreshErr  error
	ids         []string
	listErr     error
	failing     map[string]bool
	listedWith  string
	listedMax   int
}

func (f *fakeMailProvider) ExchangeCode(_ context.Context, code string) (*emaildomain.OAuthToken, error) {
	f.exchanged = append(f.exchanged, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &emaildomain.OAuthToken{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Scope:        "https://www.googleapis.com/auth/gmail.readonly",
		TokenType:    "Bearer",
		Expiry:       fixedNow.Add(time.Hour),
	}, nil
}

func (f *fakeMailProvider) RefreshAccessToken(_ context.Context, refreshToken string) (*emaildomain.OAuthToken, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &emaildomain.OAuthToken{AccessToken: "fresh-" + refreshToken, Expiry: fixedNow.Add(time.Hour)}, nil
}

func (f *fakeMailProvider) ListMessageIDs(_ context.Context, accessToken string, maxResults int) ([]string, error) {
	f.listedWith = accessToken
	f.listedMax = maxResults
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.ids) > maxResults {
		return f.ids[:maxResults], nil
	}
	return f.ids, nil
}

func (f *fakeMailProvider) GetMessageMetadata(_ context.Context, _ string, id string) (*emaildomain.MessageMetadata, error) {
	// Earlier messages answer later so completion order differs from listing order.
	for i, listed := range f.ids {
		if listed == id {
			time.Sleep(time.Duration(len(f.ids)-i) * time.Millisecond)
		}
	}
	if f.failing[id] {
		return nil, fmt.Errorf("message %s unavailable", id)
	}
	return &emaildomain.MessageMetadata{
		ID:       id,
		ThreadID: "thread-" + id,
		From:     "sender-" + id,
		Subject:  "subject-" + id,
		Date:     "date-" + id,
		Snippet:  "snippet-" + id,
	}, nil
}

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) PublishLoginProcessed(context.Context, string, int, time.Time) error {
	f.calls++
	return f.err
}

type fixture struct {
	tokens    *fakeTokenRepo
	snapshots *fakeSnapshotRepo
	mail      *fakeMailProvider
	publisher *fakePublisher
	cfg       *config.Config
	uc        EmailUsecase
}

func newFixture(ids ...string) *fixture {
	f := &fixture{
		tokens:    &fakeTokenRepo{records: map[string]*emaildomain.TokenRecord{}},
		snapshots: &fakeSnapshotRepo{snapshots: map[string]*emaildomain.Snapshot{}},
		mail:      &fakeMailProvider{ids: ids, failing: map[string]bool{}},
		publisher: &fakePublisher{},
		cfg: &config.Config{
			GoogleClientID:     "client-id",
			GoogleClientSecret: "client-secret",
		},
	}
	uc := NewEmailUsecase(f.tokens, f.snapshots, f.mail, f.publisher, f.cfg).(*emailUsecase)
	uc.now = func() time.Time { return fixedNow }
	f.uc = uc
	return f
}

func (f *fixture) totalWrites() int {
	return f.tokens.writes + f.snapshots.writes
}

func assertCode(t *testing.T, err error, code callable.ErrorCode, message string) {
	t.Helper()
	cerr, ok := callable.AsError(err)
	if !ok {
		t.Fatalf("want *callable.Error, got %v", err)
	}
	if cerr.Code != code {
		t.Fatalf("code got %q want %q (message %q)", cerr.Code, code, cerr.Message)
	}
	if message != "" && cerr.Message != message {
		t.Fatalf("message got %q want %q", cerr.Message, message)
	}
}

var caller = &authdomain.User{ID: "u1", Email: "ada@example.com"}

func TestProcessUserLogin_Validation(t *testing.T) {
	tests := []struct {
		name    string
		caller  *authdomain.User
		req     *dto.ProcessUserLoginRequest
		code    callable.ErrorCode
		message string
	}{
		{"missing uid", caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc"}, callable.CodeInvalidArgument, "Missing uid"},
		{"nil request", caller, nil, callable.CodeInvalidArgument, "Missing uid"},
		{"no caller", nil, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"}, callable.CodeUnauthenticated, "User must be authenticated"},
		{"mismatched uid", caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u2"}, callable.CodeUnauthenticated, "User must be authenticated"},
		{"no grant", caller, &dto.ProcessUserLoginRequest{UID: "u1"}, callable.CodeInvalidArgument, "authorizationCode or accessToken is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture("m1")
			_, err := f.uc.ProcessUserLogin(context.Background(), tc.caller, tc.req)
			assertCode(t, err, tc.code, tc.message)
			if f.totalWrites() != 0 {
				t.Fatalf("rejected request wrote %d times", f.totalWrites())
			}
			if len(f.mail.exchanged) != 0 {
				t.Fatal("rejected request reached the token endpoint")
			}
		})
	}
}

func TestProcessUserLogin_MissingCredentials(t *testing.T) {
	f := newFixture("m1")
	f.cfg.GoogleClientSecret = ""

	_, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
	assertCode(t, err, callable.CodeInternal, "Google OAuth credentials not configured")
	if f.totalWrites() != 0 {
		t.Fatal("no writes expected")
	}
}

func TestProcessUserLogin_ExchangesCodeAndStoresSnapshot(t *testing.T) {
	f := newFixture("m1", "m2", "m3")

	resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if !resp.Success || resp.EmailCount != 3 || resp.Message != "User login processed successfully" {
		t.Fatalf("response %+v", resp)
	}

	rec := f.tokens.records["u1"]
	if rec == nil || rec.AccessToken != "access-abc" || rec.RefreshToken != "refresh-abc" || rec.TokenType != "Bearer" {
		t.Fatalf("token record %+v", rec)
	}
	if !rec.CreatedAt.Equal(fixedNow) || !rec.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("timestamps %+v", rec)
	}
	if f.mail.listedWith != "access-abc" {
		t.Fatalf("listed with %q", f.mail.listedWith)
	}

	snap := f.snapshots.snapshots["u1"]
	if snap == nil || snap.Count != 3 || len(snap.Emails) != 3 || !snap.FetchedAt.Equal(fixedNow) {
		t.Fatalf("snapshot %+v", snap)
	}
	for i, id := range []string{"m1", "m2", "m3"} {
		e := snap.Emails[i]
		if e.ID != id || e.Sender != "sender-"+id || e.Subject != "subject-"+id || e.Date != "date-"+id || e.Snippet != "snippet-"+id {
			t.Fatalf("entry %d out of order or wrong: %+v", i, e)
		}
		if e.ThreadID == nil || *e.ThreadID != "thread-"+id {
			t.Fatalf("entry %d thread id %v", i, e.ThreadID)
		}
	}
	if f.publisher.calls != 1 {
		t.Fatalf("publisher called %d times", f.publisher.calls)
	}
}

func TestProcessUserLogin_MetadataFailureYieldsPlaceholder(t *testing.T) {
	f := newFixture("m1", "m2", "m3")
	f.mail.failing["m2"] = true

	resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if resp.EmailCount != 3 {
		t.Fatalf("email count %d", resp.EmailCount)
	}

	snap := f.snapshots.snapshots["u1"]
	if len(snap.Emails) != 3 {
		t.Fatalf("want 3 entries, got %d", len(snap.Emails))
	}
	want := emaildomain.EmailSummary{
		ID:      "m2",
		Sender:  "Error loading sender",
		Subject: "Error loading subject",
		Date:    "2024-03-01T12:00:00Z",
		Snippet: "Error loading preview",
	}
	if snap.Emails[1] != want {
		t.Fatalf("placeholder got %+v", snap.Emails[1])
	}
	if snap.Emails[0].ID != "m1" || snap.Emails[2].ID != "m3" || snap.Emails[2].ThreadID == nil {
		t.Fatalf("neighbours affected: %+v", snap.Emails)
	}
}

func TestProcessUserLogin_AccessTokenOnly(t *testing.T) {
	f := newFixture("m1")

	resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AccessToken: "ya29.direct", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if resp.EmailCount != 1 {
		t.Fatalf("email count %d", resp.EmailCount)
	}
	if len(f.mail.exchanged) != 0 {
		t.Fatal("access token grant must not be exchanged")
	}
	rec := f.tokens.records["u1"]
	if rec.AccessToken != "ya29.direct" || rec.RefreshToken != "" || !rec.ExpiryDate.IsZero() {
		t.Fatalf("token record %+v", rec)
	}
	if f.mail.listedWith != "ya29.direct" {
		t.Fatalf("listed with %q", f.mail.listedWith)
	}
}

func TestProcessUserLogin_AccessTokenWorksWithoutCredentials(t *testing.T) {
	f := newFixture()
	f.cfg.GoogleClientID = ""

	resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AccessToken: "ya29.direct", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if resp.EmailCount != 0 || f.snapshots.snapshots["u1"].Count != 0 {
		t.Fatalf("empty inbox should store an empty snapshot, got %+v", f.snapshots.snapshots["u1"])
	}
}

func TestProcessUserLogin_CodeWinsOverAccessToken(t *testing.T) {
	f := newFixture("m1")

	if _, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", AccessToken: "ya29.direct", UID: "u1"}); err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if len(f.mail.exchanged) != 1 || f.mail.listedWith != "access-abc" {
		t.Fatalf("code should be exchanged and used, listed with %q", f.mail.listedWith)
	}
}

func TestProcessUserLogin_KeepsRefreshTokenAcrossLogins(t *testing.T) {
	f := newFixture("m1")
	ctx := context.Background()

	if _, err := f.uc.ProcessUserLogin(ctx, caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"}); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := f.uc.ProcessUserLogin(ctx, caller, &dto.ProcessUserLoginRequest{AccessToken: "ya29.direct", UID: "u1"}); err != nil {
		t.Fatalf("second login: %v", err)
	}
	rec := f.tokens.records["u1"]
	if rec.AccessToken != "ya29.direct" || rec.RefreshToken != "refresh-abc" {
		t.Fatalf("merge should keep the refresh token, got %+v", rec)
	}
}

func TestProcessUserLogin_Failures(t *testing.T) {
	t.Run("exchange", func(t *testing.T) {
		f := newFixture("m1")
		f.mail.exchangeErr = errors.New("invalid_grant")

		_, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
		assertCode(t, err, callable.CodeInternal, "Failed to process user login: invalid_grant")
		if f.totalWrites() != 0 {
			t.Fatal("failed exchange must not write")
		}
	})

	t.Run("listing", func(t *testing.T) {
		f := newFixture("m1")
		f.mail.listErr = errors.New("quota exceeded")

		_, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
		assertCode(t, err, callable.CodeInternal, "Failed to process user login: quota exceeded")
		if f.snapshots.writes != 0 {
			t.Fatal("snapshot must not be written when listing fails")
		}
	})

	t.Run("publish is best effort", func(t *testing.T) {
		f := newFixture("m1")
		f.publisher.err = errors.New("topic not found")

		resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
		if err != nil || !resp.Success {
			t.Fatalf("publish failure must not fail the login: %v", err)
		}
	})
}

func TestProcessUserLogin_HonoursFetchLimit(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%02d", i)
	}
	f := newFixture(ids...)

	resp, err := f.uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AuthorizationCode: "abc", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if resp.EmailCount != 10 {
		t.Fatalf("want 10 emails, got %d", resp.EmailCount)
	}
}

func TestLimitsHoldWithZeroConfig(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%02d", i)
	}
	f := newFixture(ids...)
	uc := NewEmailUsecase(f.tokens, f.snapshots, f.mail, f.publisher, &config.Config{}).(*emailUsecase)
	uc.now = func() time.Time { return fixedNow }

	resp, err := uc.ProcessUserLogin(context.Background(), caller, &dto.ProcessUserLoginRequest{AccessToken: "at", UID: "u1"})
	if err != nil {
		t.Fatalf("ProcessUserLogin: %v", err)
	}
	if f.mail.listedMax != 10 || resp.EmailCount != 10 {
		t.Fatalf("listed with max %d, stored %d", f.mail.listedMax, resp.EmailCount)
	}

	seedSnapshot(f, 8)
	got, err := uc.GetUserEmails(context.Background(), caller)
	if err != nil {
		t.Fatalf("GetUserEmails: %v", err)
	}
	if len(got.Emails) != 5 || *got.TotalCount != 8 {
		t.Fatalf("got %d entries of %d", len(got.Emails), *got.TotalCount)
	}
}

func seedSnapshot(f *fixture, n int) {
	emails := make([]emaildomain.EmailSummary, n)
	for i := range emails {
		emails[i] = emaildomain.EmailSummary{ID: fmt.Sprintf("m%d", i+1)}
	}
	f.snapshots.snapshots["u1"] = &emaildomain.Snapshot{Emails: emails, FetchedAt: fixedNow, Count: n}
}

func TestGetUserEmails(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newFixture()
		_, err := f.uc.GetUserEmails(context.Background(), nil)
		assertCode(t, err, callable.CodeUnauthenticated, "User must be authenticated")
	})

	t.Run("no snapshot", func(t *testing.T) {
		f := newFixture()
		resp, err := f.uc.GetUserEmails(context.Background(), caller)
		if err != nil {
			t.Fatalf("GetUserEmails: %v", err)
		}
		if !resp.Success || resp.Emails == nil || len(resp.Emails) != 0 {
			t.Fatalf("response %+v", resp)
		}
		if resp.Message != "No emails found. Please sign in again to fetch emails." {
			t.Fatalf("message %q", resp.Message)
		}
		if resp.TotalCount != nil || resp.FetchedAt != nil {
			t.Fatal("totalCount and fetchedAt must be absent")
		}
	})

	t.Run("eight stored", func(t *testing.T) {
		f := newFixture()
		seedSnapshot(f, 8)
		resp, err := f.uc.GetUserEmails(context.Background(), caller)
		if err != nil {
			t.Fatalf("GetUserEmails: %v", err)
		}
		if len(resp.Emails) != 5 || *resp.TotalCount != 8 || !resp.FetchedAt.Equal(fixedNow) {
			t.Fatalf("response %+v", resp)
		}
		for i, e := range resp.Emails {
			if e.ID != fmt.Sprintf("m%d", i+1) {
				t.Fatalf("entry %d is %s, stored order not kept", i, e.ID)
			}
		}
	})

	t.Run("fewer than limit", func(t *testing.T) {
		f := newFixture()
		seedSnapshot(f, 3)
		resp, _ := f.uc.GetUserEmails(context.Background(), caller)
		if len(resp.Emails) != 3 || *resp.TotalCount != 3 {
			t.Fatalf("response %+v", resp)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.snapshots.getErr = errors.New("deadline exceeded")
		_, err := f.uc.GetUserEmails(context.Background(), caller)
		assertCode(t, err, callable.CodeInternal, "Failed to get user emails: deadline exceeded")
	})

	t.Run("read only", func(t *testing.T) {
		f := newFixture()
		seedSnapshot(f, 8)
		_, _ = f.uc.GetUserEmails(context.Background(), caller)
		if f.totalWrites() != 0 || f.mail.listedWith != "" {
			t.Fatal("GetUserEmails must not write or refetch")
		}
	})
}

func TestRefreshUserTokens(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		f := newFixture()
		_, err := f.uc.RefreshUserTokens(context.Background(), nil)
		assertCode(t, err, callable.CodeUnauthenticated, "User must be authenticated")
	})

	t.Run("no record", func(t *testing.T) {
		f := newFixture()
		_, err := f.uc.RefreshUserTokens(context.Background(), caller)
		assertCode(t, err, callable.CodeNotFound, "No tokens found for user")
	})

	t.Run("no refresh token", func(t *testing.T) {
		f := newFixture()
		f.tokens.records["u1"] = &emaildomain.TokenRecord{AccessToken: "a"}
		_, err := f.uc.RefreshUserTokens(context.Background(), caller)
		assertCode(t, err, callable.CodeInvalidArgument, "No refresh token available")
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture()
		created := fixedNow.Add(-48 * time.Hour)
		f.tokens.records["u1"] = &emaildomain.TokenRecord{AccessToken: "old", RefreshToken: "r1", Scope: "s", CreatedAt: created}

		resp, err := f.uc.RefreshUserTokens(context.Background(), caller)
		if err != nil {
			t.Fatalf("RefreshUserTokens: %v", err)
		}
		if !resp.Success || resp.Message != "Tokens refreshed successfully" {
			t.Fatalf("response %+v", resp)
		}
		rec := f.tokens.records["u1"]
		if rec.AccessToken != "fresh-r1" || !rec.ExpiryDate.Equal(fixedNow.Add(time.Hour)) || !rec.UpdatedAt.Equal(fixedNow) {
			t.Fatalf("record %+v", rec)
		}
		if rec.RefreshToken != "r1" || rec.Scope != "s" || !rec.CreatedAt.Equal(created) {
			t.Fatalf("unrelated fields changed: %+v", rec)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newFixture()
		f.tokens.records["u1"] = &emaildomain.TokenRecord{RefreshToken: "r1"}
		f.mail.refreshErr = errors.New("token revoked")
		_, err := f.uc.RefreshUserTokens(context.Background(), caller)
		assertCode(t, err, callable.CodeInternal, "Failed to refresh tokens: token revoked")
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.tokens.getErr = errors.New("unavailable")
		_, err := f.uc.RefreshUserTokens(context.Background(), caller)
		assertCode(t, err, callable.CodeInternal, "")
		if cerr, _ := callable.AsError(err); !strings.HasPrefix(cerr.Message, "Failed to refresh tokens: ") {
			t.Fatalf("message %q", cerr.Message)
		}
	})
}

func TestDeleteUserData(t *testing.T) {
	f := newFixture()
	f.tokens.records["u1"] = &emaildomain.TokenRecord{AccessToken: "a"}
	seedSnapshot(f, 2)

	if _, err := f.uc.DeleteUserData(context.Background(), nil); err == nil {
		t.Fatal("expected unauthenticated")
	}

	resp, err := f.uc.DeleteUserData(context.Background(), caller)
	if err != nil || !resp.Success {
		t.Fatalf("DeleteUserData: %v %+v", err, resp)
	}
	if _, ok := f.tokens.records["u1"]; ok {
		t.Fatal("token record not deleted")
	}
	if _, ok := f.snapshots.snapshots["u1"]; ok {
		t.Fatal("snapshot not deleted")
	}
}
