package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"waypost/internal/audit"
	"waypost/internal/confidence"
	"waypost/internal/platform/metrics"
	"waypost/internal/venue/models"
	"waypost/internal/venue/store"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	store *store.InMemoryStore
	cache *confidence.MemoryCache
	sink  *audit.MemoryPublisher
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.New()
	s.cache = confidence.NewMemoryCache()
	s.sink = audit.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = New(s.store, s.cache, s.sink, metrics.NewForTest(), logger)
}

func (s *ServiceSuite) submitAs(role id.Role) (*models.Venue, id.UserID) {
	submitter := id.NewUserID()
	venue, signal, err := s.svc.Submit(context.Background(),
		models.Draft{Name: "Corner Hall"}, role, submitter)
	s.Require().NoError(err)
	s.Require().NotNil(signal)
	return venue, submitter
}

func (s *ServiceSuite) auditActions() []audit.Action {
	var out []audit.Action
	for _, event := range s.sink.Events() {
		out = append(out, event.Action)
	}
	return out
}

func (s *ServiceSuite) TestSubmit_UserStartsPending() {
	venue, _ := s.submitAs(id.RoleUser)

	s.False(venue.Listed)
	s.Nil(venue.ListedAt)

	signals, err := s.store.ListSignals(context.Background(), venue.ID)
	s.Require().NoError(err)
	s.Require().Len(signals, 1)
	s.Equal(id.SignalInitial, signals[0].Kind)
	s.Equal(id.RoleUser, signals[0].SourceRole)
	s.Contains(s.auditActions(), audit.ActionVenueSubmitted)
	s.NotContains(s.auditActions(), audit.ActionVenueActivated)
}

func (s *ServiceSuite) TestSubmit_AdminListsImmediately() {
	venue, _ := s.submitAs(id.RoleAdmin)

	s.True(venue.Listed)
	s.NotNil(venue.ListedAt)

	signals, err := s.store.ListSignals(context.Background(), venue.ID)
	s.Require().NoError(err)
	s.Require().Len(signals, 1)
	s.Equal(id.SignalAdminVerify, signals[0].Kind)
	s.Contains(s.auditActions(), audit.ActionVenueActivated)
}

func (s *ServiceSuite) TestSubmit_RejectsEmptyName() {
	_, _, err := s.svc.Submit(context.Background(),
		models.Draft{Name: "   "}, id.RoleUser, id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCorroborate_ActivatesAtThirdDistinctSubmitter() {
	ctx := context.Background()
	venue, _ := s.submitAs(id.RoleUser)

	second := id.NewUserID()
	_, err := s.svc.Corroborate(ctx, venue.ID, id.RoleUser, &second, "seen it")
	s.Require().NoError(err)

	current, err := s.svc.Get(ctx, venue.ID)
	s.Require().NoError(err)
	s.False(current.Listed, "two distinct submitters must not activate")

	third := id.NewUserID()
	_, err = s.svc.Corroborate(ctx, venue.ID, id.RoleUser, &third, "")
	s.Require().NoError(err)

	current, err = s.svc.Get(ctx, venue.ID)
	s.Require().NoError(err)
	s.True(current.Listed, "third distinct submitter activates")
	s.NotNil(current.ListedAt)
	s.Contains(s.auditActions(), audit.ActionVenueActivated)
}

func (s *ServiceSuite) TestCorroborate_AnonymousSignalsCountIndividually() {
	ctx := context.Background()
	venue, _ := s.submitAs(id.RoleUser)

	for i := 0; i < 2; i++ {
		_, err := s.svc.Corroborate(ctx, venue.ID, id.RoleUser, nil, "")
		s.Require().NoError(err)
	}

	current, err := s.svc.Get(ctx, venue.ID)
	s.Require().NoError(err)
	s.True(current.Listed)
}

func (s *ServiceSuite) TestCorroborate_DuplicateRejectedWhilePending() {
	ctx := context.Background()
	venue, submitter := s.submitAs(id.RoleUser)

	_, err := s.svc.Corroborate(ctx, venue.ID, id.RoleUser, &submitter, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(s.auditActions(), audit.ActionSignalRejected)

	other := id.NewUserID()
	_, err = s.svc.Corroborate(ctx, venue.ID, id.RoleUser, &other, "")
	s.Require().NoError(err)
	_, err = s.svc.Corroborate(ctx, venue.ID, id.RoleUser, &other, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCorroborate_RepeatAcceptedOnceListed() {
	ctx := context.Background()
	venue, submitter := s.submitAs(id.RoleAdmin)
	s.Require().True(venue.Listed)

	for i := 0; i < 2; i++ {
		_, err := s.svc.Corroborate(ctx, venue.ID, id.RoleAdmin, &submitter, "")
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) TestCorroborate_AdminVerifyActivatesPendingVenue() {
	ctx := context.Background()
	venue, _ := s.submitAs(id.RoleUser)

	admin := id.NewUserID()
	signal, err := s.svc.Corroborate(ctx, venue.ID, id.RoleAdmin, &admin, "")
	s.Require().NoError(err)
	s.Equal(id.SignalAdminVerify, signal.Kind)

	current, err := s.svc.Get(ctx, venue.ID)
	s.Require().NoError(err)
	s.True(current.Listed)
}

func (s *ServiceSuite) TestCorroborate_UnknownVenue() {
	_, err := s.svc.Corroborate(context.Background(), id.NewVenueID(), id.RoleUser, nil, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCorroborate_InvalidatesLevelCache() {
	ctx := context.Background()
	venue, _ := s.submitAs(id.RoleUser)

	s.Require().NoError(s.cache.Set(ctx, venue.ID, id.LevelReported))

	_, err := s.svc.Corroborate(ctx, venue.ID, id.RoleUser, nil, "")
	s.Require().NoError(err)

	_, err = s.cache.Get(ctx, venue.ID)
	s.Require().Error(err, "cached level must be invalidated by a signal write")
}

func (s *ServiceSuite) TestBrowse_VisibilityByRole() {
	ctx := context.Background()
	s.submitAs(id.RoleUser)
	s.submitAs(id.RoleAdmin)

	public, err := s.svc.Browse(ctx, id.RoleUser)
	s.Require().NoError(err)
	s.Len(public, 1)

	all, err := s.svc.Browse(ctx, id.RoleAdmin)
	s.Require().NoError(err)
	s.Len(all, 2)
}

// TestConcurrentCorroborations_SingleFlip starts many distinct submitters at
// once against a pending venue and asserts exactly one activation.
func TestConcurrentCorroborations_SingleFlip(t *testing.T) {
	ctx := context.Background()
	memStore := store.New()
	sink := audit.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(memStore, confidence.NewMemoryCache(), sink, metrics.NewForTest(), logger)

	venue, _, err := svc.Submit(ctx, models.Draft{Name: "Packed House"}, id.RoleUser, id.NewUserID())
	require.NoError(t, err)

	const corroborators = 16
	errs := make(chan error, corroborators)
	var wg sync.WaitGroup
	wg.Add(corroborators)
	for i := 0; i < corroborators; i++ {
		go func() {
			defer wg.Done()
			submitter := id.NewUserID()
			_, err := svc.Corroborate(ctx, venue.ID, id.RoleUser, &submitter, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	current, err := svc.Get(ctx, venue.ID)
	require.NoError(t, err)
	require.True(t, current.Listed)

	activations := 0
	for _, event := range sink.Events() {
		if event.Action == audit.ActionVenueActivated {
			activations++
		}
	}
	require.Equal(t, 1, activations, "exactly one corroboration performs the flip")
}
