package client

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"lighthouse/pkg/callable"

	"github.com/golang-jwt/jwt/v5"
)

func TestFriendlyMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "fallback"},
		{"cancelled", &AuthError{Code: "auth/cancelled-popup-request"}, "Sign in was cancelled."},
		{"blocked", &AuthError{Code: "auth/popup-blocked"}, "Popup was blocked by browser. Please allow popups."},
		{"wrapped", fmt.Errorf("sign in: %w", &AuthError{Code: "auth/wrong-password"}), "Incorrect password."},
		{"weak", &AuthError{Code: "auth/weak-password", Message: "WEAK_PASSWORD"}, "Password should be at least 6 characters."},
		{"unknown code", &AuthError{Code: "auth/quota-exceeded", Message: "Quota exceeded"}, "Quota exceeded"},
		{"unknown code no message", &AuthError{Code: "auth/other"}, "fallback"},
		{"callable", callable.NewError(callable.CodeUnauthenticated, "User must be authenticated"), "User must be authenticated"},
		{"raw", errors.New("network down"), "network down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FriendlyMessage(tc.err, "fallback"); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateSignUp(t *testing.T) {
	cases := []struct {
		email, password, confirm string
		want                     string
	}{
		{"", "secret1", "secret1", MsgFillAllFields},
		{"a@b.c", "secret1", "secret2", MsgPasswordMismatch},
		{"a@b.c", "abc", "abc", MsgPasswordTooShort},
		{"a@b.c", "secret1", "secret1", ""},
	}
	for _, tc := range cases {
		err := ValidateSignUp(tc.email, tc.password, tc.confirm)
		got := ""
		if err != nil {
			got = FriendlyMessage(err, "")
		}
		if got != tc.want {
			t.Fatalf("ValidateSignUp(%q, %q, %q) = %q, want %q", tc.email, tc.password, tc.confirm, got, tc.want)
		}
	}
	if err := ValidateSignIn("a@b.c", ""); err == nil {
		t.Fatal("empty password accepted")
	}
}

func TestIdentityFromIDToken(t *testing.T) {
	exp := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"sub":     "u1",
		"email":   "ada@example.com",
		"exp":     exp.Unix(),
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatal(err)
	}

	id, err := IdentityFromIDToken(token, "refresh")
	if err != nil {
		t.Fatalf("IdentityFromIDToken: %v", err)
	}
	if id.UID != "u1" || id.Email != "ada@example.com" || !id.ExpiresAt.Equal(exp) || id.RefreshToken != "refresh" {
		t.Fatalf("identity %+v", id)
	}

	if _, err := IdentityFromIDToken("not-a-jwt", ""); err == nil {
		t.Fatal("expected parse error")
	}
}
