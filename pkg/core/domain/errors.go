package domain

import "errors"

var (
	ErrNotFound         = errors.New("link not found")
	ErrAliasTaken       = errors.New("short code already exists")
	ErrForbidden        = errors.New("not authorized")
	ErrQuotaExceeded    = errors.New("maximum number of anonymous links reached")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrExhaustedRetries = errors.New("failed to generate unique short code after max attempts")
	ErrStorage          = errors.New("storage error")

	// ErrDuplicateCode is returned by repositories when short_code violates uniqueness.
	ErrDuplicateCode = errors.New("duplicate short code")
)
