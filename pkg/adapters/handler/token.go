package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

const (
	authCookieName = "auth_token"
	tokenLifetime  = 24 * time.Hour
)

// CustomClaims carries the caller identity. Subject holds the user UUID.
type CustomClaims struct {
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

// UserIDForEmail derives a stable user id from an email address.
func UserIDForEmail(email string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email)))
}

// IssueToken signs an HS256 token for caller that expires at expiresAt.
func IssueToken(secret []byte, caller domain.Caller, expiresAt time.Time) (string, error) {
	claims := &CustomClaims{
		Email:       caller.Email,
		IsSuperuser: caller.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates tokenString and returns the caller it names.
func ParseToken(secret []byte, tokenString string) (domain.Caller, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Caller{}, err
	}
	if !token.Valid {
		return domain.Caller{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("invalid subject: %w", err)
	}
	return domain.Caller{
		UserID:      userID,
		Email:       claims.Email,
		IsSuperuser: claims.IsSuperuser,
	}, nil
}
