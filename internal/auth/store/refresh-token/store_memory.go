package refreshtoken

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"waypost/internal/auth/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// translateConsumeError converts domain errors from ValidateForConsume to
// sentinel errors at the store boundary.
func translateConsumeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrExpired)
	case strings.Contains(msg, "revoked"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrRevoked)
	case strings.Contains(msg, "already used"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	default:
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	}
}

// InMemoryStore stores refresh tokens in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshTokenRecord
}

// New constructs an empty in-memory refresh token store.
func New() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.tokens[record.Token] = &copied
	return nil
}

// Consume marks the refresh token as used if valid. Returns the record even
// on validation failure so callers can detect replay.
func (s *InMemoryStore) Consume(_ context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err := record.ValidateForConsume(now); err != nil {
		copied := *record
		return &copied, translateConsumeError(err)
	}
	record.MarkUsed()
	copied := *record
	return &copied, nil
}

// RevokeByUser invalidates every live token for a user (logout).
func (s *InMemoryStore) RevokeByUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.tokens {
		if record.UserID == userID {
			record.Revoked = true
		}
	}
	return nil
}

// DeleteExpired removes tokens expired as of now. Time is injected for
// testability.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if !record.ExpiresAt.After(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
