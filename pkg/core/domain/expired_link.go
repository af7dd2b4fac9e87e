package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExpiredLink is the archived copy of a retired Link. Never modified after insert.
type ExpiredLink struct {
	ID          uuid.UUID  `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiredAt   time.Time  `json:"expired_at"`
	TotalClicks int64      `json:"total_clicks"`
	OwnerID     *uuid.UUID `json:"owner_user_id,omitempty"`
	Project     *string    `json:"project,omitempty"`
}
