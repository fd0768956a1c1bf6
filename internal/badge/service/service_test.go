package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"waypost/internal/audit"
	badgestore "waypost/internal/badge/store"
	"waypost/internal/platform/metrics"
	venuemodels "waypost/internal/venue/models"
	venuestore "waypost/internal/venue/store"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	badges *badgestore.InMemoryStore
	venues *venuestore.InMemoryStore
	sink   *audit.MemoryPublisher
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.badges = badgestore.New()
	s.venues = venuestore.New()
	s.sink = audit.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = New(s.badges, s.venues, s.sink, metrics.NewForTest(), logger, 0)
}

// seedVenue creates a venue, optionally listed, and returns it.
func (s *ServiceSuite) seedVenue(listed bool) *venuemodels.Venue {
	ctx := context.Background()
	submitter := id.NewUserID()
	venue := &venuemodels.Venue{
		ID:        id.NewVenueID(),
		Name:      "Guild Hall",
		CreatedAt: time.Now(),
	}
	signal := &venuemodels.Signal{
		ID:          id.NewSignalID(),
		VenueID:     venue.ID,
		Kind:        id.SignalInitial,
		SourceRole:  id.RoleUser,
		SubmitterID: &submitter,
		CreatedAt:   time.Now(),
	}
	s.Require().NoError(s.venues.CreateWithInitialSignal(ctx, venue, signal))
	if listed {
		_, err := s.venues.MarkListed(ctx, venue.ID, time.Now())
		s.Require().NoError(err)
		venue.Listed = true
	}
	return venue
}

// verifiedAdmin links a fresh user to the venue as a verified admin.
func (s *ServiceSuite) verifiedAdmin(venueID id.VenueID) id.UserID {
	userID := id.NewUserID()
	s.Require().NoError(s.svc.LinkAdmin(context.Background(), venueID, userID, true))
	return userID
}

func (s *ServiceSuite) TestIssue_Succeeds() {
	venue := s.seedVenue(true)
	admin := s.verifiedAdmin(venue.ID)

	badge, err := s.svc.Issue(context.Background(), venue.ID, admin)
	s.Require().NoError(err)
	s.True(badge.Active)
	s.False(badge.Revoked)
	s.NotEmpty(badge.Token)
	s.Nil(badge.ExpiresAt, "zero TTL issues without expiry")
	s.Equal(admin, badge.IssuedBy)

	var actions []audit.Action
	for _, event := range s.sink.Events() {
		actions = append(actions, event.Action)
	}
	s.Contains(actions, audit.ActionBadgeIssued)
}

func (s *ServiceSuite) TestIssue_AppliesTTL() {
	venue := s.seedVenue(true)
	admin := s.verifiedAdmin(venue.ID)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(s.badges, s.venues, s.sink, metrics.NewForTest(), logger, 24*time.Hour)

	badge, err := svc.Issue(context.Background(), venue.ID, admin)
	s.Require().NoError(err)
	s.Require().NotNil(badge.ExpiresAt)
	s.True(badge.ExpiresAt.After(badge.IssuedAt))
}

func (s *ServiceSuite) TestIssue_FreshTokenPerBadge() {
	venue := s.seedVenue(true)
	admin := s.verifiedAdmin(venue.ID)

	first, err := s.svc.Issue(context.Background(), venue.ID, admin)
	s.Require().NoError(err)
	second, err := s.svc.Issue(context.Background(), venue.ID, admin)
	s.Require().NoError(err)
	s.NotEqual(first.Token, second.Token)
}

func (s *ServiceSuite) TestIssue_NotListed() {
	venue := s.seedVenue(false)
	admin := s.verifiedAdmin(venue.ID)

	_, err := s.svc.Issue(context.Background(), venue.ID, admin)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestIssue_NoAdminRelation() {
	venue := s.seedVenue(true)

	_, err := s.svc.Issue(context.Background(), venue.ID, id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestIssue_UnverifiedAdminRelation() {
	venue := s.seedVenue(true)
	userID := id.NewUserID()
	s.Require().NoError(s.svc.LinkAdmin(context.Background(), venue.ID, userID, false))

	_, err := s.svc.Issue(context.Background(), venue.ID, userID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestIssue_UnknownVenue() {
	_, err := s.svc.Issue(context.Background(), id.NewVenueID(), id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRevoke_TerminalAndIdempotent() {
	ctx := context.Background()
	venue := s.seedVenue(true)
	admin := s.verifiedAdmin(venue.ID)

	badge, err := s.svc.Issue(ctx, venue.ID, admin)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Revoke(ctx, badge.ID, admin))

	got, err := s.badges.FindBadgeByID(ctx, badge.ID)
	s.Require().NoError(err)
	s.True(got.Revoked)
	s.False(got.Active)

	// Second revoke is a no-op success and emits no second audit event.
	before := len(s.sink.Events())
	s.Require().NoError(s.svc.Revoke(ctx, badge.ID, admin))
	s.Equal(before, len(s.sink.Events()))
}

func (s *ServiceSuite) TestRevoke_RequiresAdminRelation() {
	ctx := context.Background()
	venue := s.seedVenue(true)
	admin := s.verifiedAdmin(venue.ID)

	badge, err := s.svc.Issue(ctx, venue.ID, admin)
	s.Require().NoError(err)

	err = s.svc.Revoke(ctx, badge.ID, id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRevoke_UnknownBadge() {
	err := s.svc.Revoke(context.Background(), id.NewBadgeID(), id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestConcurrentRevokes_SingleTransition revokes one badge from many
// goroutines and asserts a single recorded transition.
func TestConcurrentRevokes_SingleTransition(t *testing.T) {
	ctx := context.Background()
	badges := badgestore.New()
	venues := venuestore.New()
	sink := audit.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(badges, venues, sink, metrics.NewForTest(), logger, 0)

	submitter := id.NewUserID()
	venue := &venuemodels.Venue{ID: id.NewVenueID(), Name: "Old Forge", CreatedAt: time.Now()}
	require.NoError(t, venues.CreateWithInitialSignal(ctx, venue, &venuemodels.Signal{
		ID: id.NewSignalID(), VenueID: venue.ID, Kind: id.SignalInitial,
		SourceRole: id.RoleUser, SubmitterID: &submitter, CreatedAt: time.Now(),
	}))
	_, err := venues.MarkListed(ctx, venue.ID, time.Now())
	require.NoError(t, err)

	admin := id.NewUserID()
	require.NoError(t, svc.LinkAdmin(ctx, venue.ID, admin, true))
	badge, err := svc.Issue(ctx, venue.ID, admin)
	require.NoError(t, err)

	const revokers = 8
	errs := make(chan error, revokers)
	var wg sync.WaitGroup
	wg.Add(revokers)
	for i := 0; i < revokers; i++ {
		go func() {
			defer wg.Done()
			errs <- svc.Revoke(ctx, badge.ID, admin)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	revocations := 0
	for _, event := range sink.Events() {
		if event.Action == audit.ActionBadgeRevoked {
			revocations++
		}
	}
	require.Equal(t, 1, revocations)
}
