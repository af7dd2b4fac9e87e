// Package shortcode generates and validates random alphanumeric short codes.
package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

const (
	DefaultLength = 6
	Charset       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	minAliasLength = 3
	aliasCharset   = Charset + "_-"
)

var charsetSize = big.NewInt(int64(len(Charset)))

// Generate returns a random code of DefaultLength.
func Generate() (string, error) {
	return GenerateN(DefaultLength)
}

// GenerateN returns a random code of the given length.
// Uniqueness is not guaranteed; callers rely on the repository to reject duplicates.
func GenerateN(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: code length must be a positive integer, got %d", domain.ErrInvalidArgument, length)
	}

	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}

// Validate reports whether code is DefaultLength long and drawn from Charset.
func Validate(code string) bool {
	return ValidateN(code, DefaultLength)
}

// ValidateN is Validate with an explicit expected length.
func ValidateN(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Charset, code[i]) < 0 {
			return false
		}
	}
	return true
}

// ValidateAlias checks a user-chosen code: 3 to 50 characters, letters, digits, '_' or '-'.
func ValidateAlias(alias string) error {
	if len(alias) < minAliasLength || len(alias) > domain.MaxShortCodeLength {
		return fmt.Errorf("%w: short code must be between %d and %d characters",
			domain.ErrInvalidArgument, minAliasLength, domain.MaxShortCodeLength)
	}
	for i := 0; i < len(alias); i++ {
		if strings.IndexByte(aliasCharset, alias[i]) < 0 {
			return fmt.Errorf("%w: short code contains invalid character %q", domain.ErrInvalidArgument, alias[i])
		}
	}
	return nil
}
