package client

import (
	"errors"
	"fmt"

	"lighthouse/pkg/callable"
)

const (
	MsgSignInFailed     = "An error occurred during sign in."
	MsgSignUpFailed     = "An error occurred during sign up."
	MsgNoAuthCode       = "No authorization code received"
	MsgFetchFailed      = "Failed to fetch emails. Please try again."
	MsgLoadFailed       = "Failed to load emails. Please sign in again."
	MsgSignOutFailed    = "Error signing out. Please try again."
	MsgRefreshFailed    = "Failed to refresh tokens. Please sign in again."
	MsgDeleteFailed     = "Failed to delete your data. Please try again."
	MsgNotSignedIn      = "You are not signed in."
	MsgSignedIn         = "Successfully signed in! Fetching your emails..."
	MsgNoEmails         = "No emails found."
	MsgFillAllFields    = "Please fill in all fields."
	MsgPasswordMismatch = "Passwords do not match."
	MsgPasswordTooShort = "Password must be at least 6 characters long."
)

// MinPasswordLength is the shortest password accepted for sign-up.
const MinPasswordLength = 6

var friendlyAuthMessages = map[string]string{
	"auth/popup-closed-by-user":    "Sign in was cancelled.",
	"auth/cancelled-popup-request": "Sign in was cancelled.",
	"auth/popup-blocked":           "Popup was blocked by browser. Please allow popups.",
	"auth/user-not-found":          "No user found with this email address.",
	"auth/wrong-password":          "Incorrect password.",
	"auth/invalid-email":           "Invalid email address.",
	"auth/user-disabled":           "This account has been disabled.",
	"auth/too-many-requests":       "Too many failed attempts. Please try again later.",
	"auth/email-already-in-use":    "An account with this email already exists.",
	"auth/weak-password":           "Password should be at least 6 characters.",
	"auth/operation-not-allowed":   "Email/password accounts are not enabled.",
}

// AuthError is an identity-provider failure identified by an "auth/..." code
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FriendlyMessage maps known provider codes to user-facing text and falls back to the raw
// message, then to fallback when there is none.
func FriendlyMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if msg, ok := friendlyAuthMessages[authErr.Code]; ok {
			return msg
		}
		if authErr.Message != "" {
			return authErr.Message
		}
		return fallback
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	if cerr, ok := callable.AsError(err); ok && cerr.Message != "" {
		return cerr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// ValidationError is a form problem detected before any provider is contacted
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateSignIn checks email/password sign-in input.
func ValidateSignIn(email, password string) error {
	if email == "" || password == "" {
		return &ValidationError{Message: MsgFillAllFields}
	}
	return nil
}

// ValidateSignUp checks email/password sign-up input.
func ValidateSignUp(email, password, confirm string) error {
	if email == "" || password == "" || confirm == "" {
		return &ValidationError{Message: MsgFillAllFields}
	}
	if password != confirm {
		return &ValidationError{Message: MsgPasswordMismatch}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Message: MsgPasswordTooShort}
	}
	return nil
}

// StepError reports which step of the pipeline failed with a message fit for display
type StepError struct {
	Step    Step
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Step, e.Message, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
