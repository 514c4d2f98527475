package domain

// User is the authenticated caller of an operation, as asserted by a verified Firebase ID token
type User struct {
	ID    string `json:"uid"`
	Email string `json:"email,omitempty"`
}
