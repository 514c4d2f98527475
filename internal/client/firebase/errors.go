package firebase

import (
	"strings"

	"lighthouse/internal/client"
)

// restErrorCodes maps REST error identifiers to the auth/ codes used by the web SDK.
var restErrorCodes = map[string]string{
	"EMAIL_NOT_FOUND":             "auth/user-not-found",
	"USER_NOT_FOUND":              "auth/user-not-found",
	"INVALID_PASSWORD":            "auth/wrong-password",
	"INVALID_LOGIN_CREDENTIALS":   "auth/invalid-credential",
	"INVALID_IDP_RESPONSE":        "auth/invalid-credential",
	"INVALID_EMAIL":               "auth/invalid-email",
	"MISSING_PASSWORD":            "auth/missing-password",
	"USER_DISABLED":               "auth/user-disabled",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "auth/too-many-requests",
	"EMAIL_EXISTS":                "auth/email-already-in-use",
	"WEAK_PASSWORD":               "auth/weak-password",
	"OPERATION_NOT_ALLOWED":       "auth/operation-not-allowed",
	"PASSWORD_LOGIN_DISABLED":     "auth/operation-not-allowed",
	"TOKEN_EXPIRED":               "auth/user-token-expired",
	"INVALID_REFRESH_TOKEN":       "auth/invalid-refresh-token",
	"INVALID_API_KEY":             "auth/invalid-api-key",
}

// authErrorFromREST converts messages such as "WEAK_PASSWORD : Password should be at least
// 6 characters" into a client.AuthError.
func authErrorFromREST(message string) *client.AuthError {
	id, detail, _ := strings.Cut(message, ":")
	id = strings.TrimSpace(id)
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = id
	}

	code, ok := restErrorCodes[id]
	if !ok {
		code = "auth/internal-error"
	}
	return &client.AuthError{Code: code, Message: detail}
}
