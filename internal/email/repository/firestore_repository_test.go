package repository

import (
	"context"
	"os"
	"testing"
	"time"

	emaildomain "lighthouse/internal/email/domain"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

// newEmulatorClient connects to the Firestore emulator, skipping the test when it is not running.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "lighthouse-test")
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFirestoreTokenRepository_MergeUpsert(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreTokenRepository(client)
	ctx := context.Background()
	uid := uuid.NewString()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := repo.Upsert(ctx, uid, &emaildomain.TokenRecord{
		AccessToken:  "a1",
		RefreshToken: "r1",
		Scope:        "gmail.readonly",
		TokenType:    "Bearer",
		ExpiryDate:   first.Add(time.Hour),
	}, first)
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	second := first.Add(24 * time.Hour)
	if err := repo.Upsert(ctx, uid, &emaildomain.TokenRecord{AccessToken: "a2"}, second); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	rec, err := repo.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.AccessToken != "a2" || rec.RefreshToken != "r1" || rec.Scope != "gmail.readonly" {
		t.Fatalf("merge lost fields: %+v", rec)
	}
	if !rec.CreatedAt.Equal(first) || !rec.UpdatedAt.Equal(second) {
		t.Fatalf("timestamps created=%v updated=%v", rec.CreatedAt, rec.UpdatedAt)
	}

	third := second.Add(time.Hour)
	if err := repo.UpdateAccessToken(ctx, uid, "a3", third.Add(time.Hour), third); err != nil {
		t.Fatalf("UpdateAccessToken: %v", err)
	}
	rec, _ = repo.Get(ctx, uid)
	if rec.AccessToken != "a3" || rec.RefreshToken != "r1" || !rec.UpdatedAt.Equal(third) {
		t.Fatalf("after refresh %+v", rec)
	}

	if err := repo.Delete(ctx, uid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec, err := repo.Get(ctx, uid); err != nil || rec != nil {
		t.Fatalf("record should be gone, got %v %v", rec, err)
	}
}

func TestFirestoreTokenRepository_UpdateMissing(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreTokenRepository(client)

	err := repo.UpdateAccessToken(context.Background(), uuid.NewString(), "a", time.Now(), time.Now())
	if err == nil {
		t.Fatal("expected error updating a missing record")
	}
}

func TestFirestoreSnapshotRepository(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewFirestoreSnapshotRepository(client)
	ctx := context.Background()
	uid := uuid.NewString()

	if s, err := repo.Get(ctx, uid); err != nil || s != nil {
		t.Fatalf("expected no snapshot, got %v %v", s, err)
	}

	thread := "t1"
	fetched := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := repo.Replace(ctx, uid, &emaildomain.Snapshot{
		Emails: []emaildomain.EmailSummary{
			{ID: "m1", Sender: "a", Subject: "s", Date: "d", Snippet: "p", ThreadID: &thread},
			emaildomain.PlaceholderSummary("m2", fetched),
		},
		FetchedAt: fetched,
		Count:     2,
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	s, err := repo.Get(ctx, uid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Count != 2 || len(s.Emails) != 2 || !s.FetchedAt.Equal(fetched) {
		t.Fatalf("snapshot %+v", s)
	}
	if s.Emails[0].ThreadID == nil || *s.Emails[0].ThreadID != "t1" || s.Emails[1].ThreadID != nil {
		t.Fatalf("thread ids %+v", s.Emails)
	}

	if err := repo.Replace(ctx, uid, &emaildomain.Snapshot{Emails: []emaildomain.EmailSummary{}, FetchedAt: fetched, Count: 0}); err != nil {
		t.Fatalf("second Replace: %v", err)
	}
	s, _ = repo.Get(ctx, uid)
	if s.Count != 0 || len(s.Emails) != 0 {
		t.Fatalf("snapshot should be fully replaced, got %+v", s)
	}

	if err := repo.Delete(ctx, uid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
