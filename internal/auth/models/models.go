package models

import (
	"errors"
	"time"

	id "waypost/pkg/domain"
)

// User is an account able to submit venues, corroborate, and (for admins)
// manage badges.
type User struct {
	ID           id.UserID
	Email        string
	DisplayName  string
	Role         id.Role
	PasswordHash string
	CreatedAt    time.Time
}

// TokenPair is what login, registration and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshTokenRecord tracks one opaque refresh token. Tokens are single-use:
// a successful refresh consumes the old token and issues a new one.
type RefreshTokenRecord struct {
	Token     string
	UserID    id.UserID
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	Revoked   bool
}

// ValidateForConsume checks whether the token may be exchanged at the given
// instant. The store translates these into sentinel errors at its boundary.
func (r *RefreshTokenRecord) ValidateForConsume(now time.Time) error {
	if r.Revoked {
		return errors.New("refresh token revoked")
	}
	if r.Used {
		return errors.New("refresh token already used")
	}
	if !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now) {
		return errors.New("refresh token expired")
	}
	return nil
}

// MarkUsed consumes the token.
func (r *RefreshTokenRecord) MarkUsed() { r.Used = true }
