package domain

import "github.com/google/uuid"

// Caller is the authenticated identity handed over by the auth provider.
type Caller struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	IsSuperuser bool      `json:"is_superuser"`
}
