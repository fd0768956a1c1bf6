package verify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgemodels "waypost/internal/badge/models"
	badgestore "waypost/internal/badge/store"
	"waypost/internal/platform/metrics"
	venuemodels "waypost/internal/venue/models"
	venuestore "waypost/internal/venue/store"
	id "waypost/pkg/domain"
)

type fixture struct {
	badges   *badgestore.InMemoryStore
	venues   *venuestore.InMemoryStore
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	badges := badgestore.New()
	venues := venuestore.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		badges:   badges,
		venues:   venues,
		resolver: NewResolver(badges, venues, metrics.NewForTest(), logger),
	}
}

func (f *fixture) seedBadge(t *testing.T, mutate func(*badgemodels.Badge)) *badgemodels.Badge {
	t.Helper()
	ctx := context.Background()
	submitter := id.NewUserID()
	venue := &venuemodels.Venue{ID: id.NewVenueID(), Name: "Harbour House", CreatedAt: time.Now()}
	require.NoError(t, f.venues.CreateWithInitialSignal(ctx, venue, &venuemodels.Signal{
		ID: id.NewSignalID(), VenueID: venue.ID, Kind: id.SignalInitial,
		SourceRole: id.RoleUser, SubmitterID: &submitter, CreatedAt: time.Now(),
	}))

	badge := &badgemodels.Badge{
		ID:       id.NewBadgeID(),
		VenueID:  venue.ID,
		IssuedBy: id.NewUserID(),
		Token:    "tok_" + id.NewBadgeID().String(),
		Active:   true,
		IssuedAt: time.Now().Add(-time.Hour),
	}
	if mutate != nil {
		mutate(badge)
	}
	require.NoError(t, f.badges.CreateBadge(ctx, badge))
	return badge
}

func TestResolve_ValidBadge(t *testing.T) {
	f := newFixture(t)
	badge := f.seedBadge(t, nil)

	result, err := f.resolver.Resolve(context.Background(), badge.Token)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, badge.VenueID.String(), result.VenueID)
	assert.Equal(t, "Harbour House", result.VenueName)
	require.NotNil(t, result.IssuedAt)
	assert.True(t, result.IssuedAt.Equal(badge.IssuedAt))
}

func TestResolve_UnknownTokenLeaksNothing(t *testing.T) {
	f := newFixture(t)
	f.seedBadge(t, nil)

	result, err := f.resolver.Resolve(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)
}

func TestResolve_EmptyToken(t *testing.T) {
	f := newFixture(t)

	result, err := f.resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestResolve_RevokedBadgeLeaksNothing(t *testing.T) {
	f := newFixture(t)
	badge := f.seedBadge(t, func(b *badgemodels.Badge) {
		b.Revoked = true
		b.Active = false
	})

	result, err := f.resolver.Resolve(context.Background(), badge.Token)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result, "invalid badge must expose validity only")
}

func TestResolve_ExpiredBadgeLeaksNothing(t *testing.T) {
	f := newFixture(t)
	expired := time.Now().Add(-time.Minute)
	badge := f.seedBadge(t, func(b *badgemodels.Badge) {
		b.ExpiresAt = &expired
	})

	result, err := f.resolver.Resolve(context.Background(), badge.Token)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)
}

func TestResolve_TouchesLastChecked(t *testing.T) {
	f := newFixture(t)
	badge := f.seedBadge(t, nil)

	_, err := f.resolver.Resolve(context.Background(), badge.Token)
	require.NoError(t, err)

	got, err := f.badges.FindBadgeByID(context.Background(), badge.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastCheckedAt)
}
