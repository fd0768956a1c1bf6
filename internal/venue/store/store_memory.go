package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// InMemoryStore keeps venues and their signal logs in memory for tests and
// dev runs. Signals are append-only; venue mutation is limited to the listed
// flip.
type InMemoryStore struct {
	mu      sync.RWMutex
	venues  map[id.VenueID]*models.Venue
	signals map[id.VenueID][]models.Signal
}

// New constructs an empty in-memory venue store.
func New() *InMemoryStore {
	return &InMemoryStore{
		venues:  make(map[id.VenueID]*models.Venue),
		signals: make(map[id.VenueID][]models.Signal),
	}
}

// CreateWithInitialSignal commits a venue and its first signal as one unit,
// preserving the invariant that every venue has at least one signal.
func (s *InMemoryStore) CreateWithInitialSignal(_ context.Context, venue *models.Venue, signal *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.venues[venue.ID]; exists {
		return fmt.Errorf("venue already exists: %w", sentinel.ErrConflict)
	}
	copied := *venue
	s.venues[venue.ID] = &copied
	s.signals[venue.ID] = []models.Signal{*signal}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, venueID id.VenueID) (*models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	venue, ok := s.venues[venueID]
	if !ok {
		return nil, fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
	}
	copied := *venue
	return &copied, nil
}

// List returns venues sorted by name. listedOnly hides pending venues from
// anonymous browsing.
func (s *InMemoryStore) List(_ context.Context, listedOnly bool) ([]models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Venue, 0, len(s.venues))
	for _, venue := range s.venues {
		if listedOnly && !venue.Listed {
			continue
		}
		out = append(out, *venue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MarkListed flips the venue to listed. Returns true when this call did the
// flip, false when the venue was already listed. The flip is one-directional.
func (s *InMemoryStore) MarkListed(_ context.Context, venueID id.VenueID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	venue, ok := s.venues[venueID]
	if !ok {
		return false, fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
	}
	if venue.Listed {
		return false, nil
	}
	venue.Listed = true
	venue.ListedAt = &at
	return true, nil
}

func (s *InMemoryStore) AppendSignal(_ context.Context, signal *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.venues[signal.VenueID]; !ok {
		return fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
	}
	s.signals[signal.VenueID] = append(s.signals[signal.VenueID], *signal)
	return nil
}

// ListSignals returns the venue's signals ordered by creation time.
func (s *InMemoryStore) ListSignals(_ context.Context, venueID id.VenueID) ([]models.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.venues[venueID]; !ok {
		return nil, fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
	}
	signals := s.signals[venueID]
	out := make([]models.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// HasSubmitterSignal reports whether the identity already contributed any
// signal to the venue. Used by the duplicate check during the pending phase.
func (s *InMemoryStore) HasSubmitterSignal(_ context.Context, venueID id.VenueID, submitterID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, signal := range s.signals[venueID] {
		if signal.SubmitterID != nil && *signal.SubmitterID == submitterID {
			return true, nil
		}
	}
	return false, nil
}
