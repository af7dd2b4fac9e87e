package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxOriginalURLLength = 2048
	MaxShortCodeLength   = 50
	MaxProjectLength     = 100
)

// Link represents an active shortened URL
type Link struct {
	ID            uuid.UUID  `json:"id"`
	OriginalURL   string     `json:"original_url"`
	ShortCode     string     `json:"short_code"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsActive      bool       `json:"is_active"`
	Clicks        int64      `json:"clicks"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	OwnerID       *uuid.UUID `json:"owner_user_id,omitempty"`
	IsCustom      bool       `json:"is_custom"`
	Project       *string    `json:"project,omitempty"`
}

// IsAnonymous reports whether the link was created without an owner.
func (l *Link) IsAnonymous() bool {
	return l.OwnerID == nil
}

// OwnedBy reports whether userID owns the link.
func (l *Link) OwnedBy(userID uuid.UUID) bool {
	return l.OwnerID != nil && *l.OwnerID == userID
}

// Expired reports whether expires_at has been reached at the given instant.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Archive builds the immutable history record written when the link is retired.
func (l *Link) Archive(id uuid.UUID, expiredAt time.Time) *ExpiredLink {
	return &ExpiredLink{
		ID:          id,
		OriginalURL: l.OriginalURL,
		ShortCode:   l.ShortCode,
		CreatedAt:   l.CreatedAt,
		ExpiredAt:   expiredAt,
		TotalClicks: l.Clicks,
		OwnerID:     l.OwnerID,
		Project:     l.Project,
	}
}

// LinkPatch carries the optional fields of an update. Nil fields are left untouched.
type LinkPatch struct {
	ShortCode   *string
	IsActive    *bool
	OriginalURL *string
	ExpiresAt   *time.Time
}

// Empty reports whether the patch changes nothing.
func (p LinkPatch) Empty() bool {
	return p.ShortCode == nil && p.IsActive == nil && p.OriginalURL == nil && p.ExpiresAt == nil
}

// CreateLinkInput is the request accepted by the link service on shorten.
type CreateLinkInput struct {
	OriginalURL string
	CustomAlias *string
	ExpiresAt   *time.Time
	Project     *string
}
