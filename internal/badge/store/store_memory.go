package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"waypost/internal/badge/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// InMemoryStore keeps badges and venue-admin links in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	badges  map[id.BadgeID]*models.Badge
	byToken map[string]id.BadgeID
	admins  map[id.VenueID]map[id.UserID]*models.VenueAdmin
}

func New() *InMemoryStore {
	return &InMemoryStore{
		badges:  make(map[id.BadgeID]*models.Badge),
		byToken: make(map[string]id.BadgeID),
		admins:  make(map[id.VenueID]map[id.UserID]*models.VenueAdmin),
	}
}

func (s *InMemoryStore) CreateBadge(_ context.Context, badge *models.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.badges[badge.ID]; exists {
		return fmt.Errorf("badge already exists: %w", sentinel.ErrConflict)
	}
	if _, exists := s.byToken[badge.Token]; exists {
		return fmt.Errorf("token already bound: %w", sentinel.ErrDuplicate)
	}
	copied := *badge
	s.badges[badge.ID] = &copied
	s.byToken[badge.Token] = badge.ID
	return nil
}

func (s *InMemoryStore) FindBadgeByID(_ context.Context, badgeID id.BadgeID) (*models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badge, ok := s.badges[badgeID]
	if !ok {
		return nil, fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
	}
	copied := *badge
	return &copied, nil
}

func (s *InMemoryStore) FindBadgeByToken(_ context.Context, token string) (*models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	badgeID, ok := s.byToken[token]
	if !ok {
		return nil, fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
	}
	copied := *s.badges[badgeID]
	return &copied, nil
}

// ListBadgesByVenue returns the venue's badges ordered by issue time.
func (s *InMemoryStore) ListBadgesByVenue(_ context.Context, venueID id.VenueID) ([]models.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Badge
	for _, badge := range s.badges {
		if badge.VenueID == venueID {
			out = append(out, *badge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// MarkRevoked flips the badge to revoked. Returns true when this call did
// the flip, false when the badge was already revoked.
func (s *InMemoryStore) MarkRevoked(_ context.Context, badgeID id.BadgeID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	badge, ok := s.badges[badgeID]
	if !ok {
		return false, fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
	}
	if badge.Revoked {
		return false, nil
	}
	badge.Revoked = true
	badge.Active = false
	return true, nil
}

// TouchLastChecked records a public verification lookup. Best effort; the
// resolver ignores failures.
func (s *InMemoryStore) TouchLastChecked(_ context.Context, badgeID id.BadgeID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	badge, ok := s.badges[badgeID]
	if !ok {
		return fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
	}
	badge.LastCheckedAt = &at
	return nil
}

func (s *InMemoryStore) UpsertAdmin(_ context.Context, admin *models.VenueAdmin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.admins[admin.VenueID]
	if !ok {
		byUser = make(map[id.UserID]*models.VenueAdmin)
		s.admins[admin.VenueID] = byUser
	}
	copied := *admin
	byUser[admin.UserID] = &copied
	return nil
}

func (s *InMemoryStore) FindAdmin(_ context.Context, venueID id.VenueID, userID id.UserID) (*models.VenueAdmin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[venueID][userID]
	if !ok {
		return nil, fmt.Errorf("admin relation not found: %w", sentinel.ErrNotFound)
	}
	copied := *admin
	return &copied, nil
}
