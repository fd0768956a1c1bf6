// Package service implements venue submission and corroboration, including
// the activation flip that makes a venue publicly listed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"waypost/internal/audit"
	"waypost/internal/confidence"
	"waypost/internal/platform/metrics"
	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/platform/keyedmutex"
	"waypost/pkg/platform/sentinel"
	"waypost/pkg/requestcontext"
)

// activationThreshold is the distinct-USER-submitter count at which an
// unlisted venue flips to listed.
const activationThreshold = 3

const maxNameLength = 200

// Store is the persistence contract for venues and their signal logs.
type Store interface {
	CreateWithInitialSignal(ctx context.Context, venue *models.Venue, signal *models.Signal) error
	FindByID(ctx context.Context, venueID id.VenueID) (*models.Venue, error)
	List(ctx context.Context, listedOnly bool) ([]models.Venue, error)
	MarkListed(ctx context.Context, venueID id.VenueID, at time.Time) (bool, error)
	AppendSignal(ctx context.Context, signal *models.Signal) error
	ListSignals(ctx context.Context, venueID id.VenueID) ([]models.Signal, error)
	HasSubmitterSignal(ctx context.Context, venueID id.VenueID, submitterID id.UserID) (bool, error)
}

// LevelCache invalidates a venue's cached confidence level after a signal
// write. Invalidation failures are logged, never surfaced to the caller.
type LevelCache interface {
	Invalidate(ctx context.Context, venueID id.VenueID) error
}

type Service struct {
	store   Store
	cache   LevelCache
	audit   audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	locks   *keyedmutex.Mutex
}

func New(store Store, cache LevelCache, publisher audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		audit:   publisher,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("waypost/venue"),
		locks:   keyedmutex.New(),
	}
}

// Submit creates a venue together with its first signal. An admin submission
// is listed immediately with an ADMIN_VERIFY signal; a user submission starts
// unlisted with an INITIAL signal and must earn its listing through
// corroboration.
func (s *Service) Submit(ctx context.Context, draft models.Draft, role id.Role, submitterID id.UserID) (*models.Venue, *models.Signal, error) {
	if err := validateDraft(draft); err != nil {
		return nil, nil, err
	}

	now := requestcontext.Now(ctx)
	venue := &models.Venue{
		ID:          id.NewVenueID(),
		Name:        strings.TrimSpace(draft.Name),
		Description: strings.TrimSpace(draft.Description),
		CreatedAt:   now,
	}
	kind := id.SignalInitial
	if role.IsAdmin() {
		venue.Listed = true
		venue.ListedAt = &now
		kind = id.SignalAdminVerify
	}
	submitter := submitterID
	signal := &models.Signal{
		ID:          id.NewSignalID(),
		VenueID:     venue.ID,
		Kind:        kind,
		SourceRole:  role,
		SubmitterID: &submitter,
		CreatedAt:   now,
	}

	if err := s.store.CreateWithInitialSignal(ctx, venue, signal); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "create venue")
	}

	s.metrics.VenuesSubmitted.WithLabelValues(string(role)).Inc()
	if venue.Listed {
		s.metrics.VenuesActivated.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:  audit.ActionVenueSubmitted,
		VenueID: venue.ID,
		Actor:   submitterID.String(),
		Detail:  string(kind),
	})
	if venue.Listed {
		s.emit(ctx, audit.Event{
			Action:  audit.ActionVenueActivated,
			VenueID: venue.ID,
			Actor:   submitterID.String(),
			Detail:  "admin submission",
		})
	}
	s.logger.InfoContext(ctx, "venue submitted",
		slog.String("venue_id", venue.ID.String()),
		slog.String("role", string(role)),
		slog.Bool("listed", venue.Listed))
	return venue, signal, nil
}

// Corroborate appends a signal for the venue and re-evaluates the listing.
// The check-then-append-then-flip sequence runs under a per-venue lock so
// concurrent corroborations see a linear signal history: exactly one of them
// performs the activation flip, and two signals from the same identity can
// never both pass the pending-phase duplicate check.
func (s *Service) Corroborate(ctx context.Context, venueID id.VenueID, role id.Role, submitterID *id.UserID, note string) (*models.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "venue.corroborate")
	defer span.End()

	unlock := s.locks.Lock(venueID.String())
	defer unlock()

	venue, err := s.store.FindByID(ctx, venueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load venue")
	}

	// While a venue is pending, a second signal from the same identity is a
	// duplicate: one actor must not be able to walk a venue to the
	// activation threshold alone. Once listed, repeats are accepted and the
	// distinct-submitter count absorbs them.
	if !venue.Listed && submitterID != nil {
		seen, err := s.store.HasSubmitterSignal(ctx, venueID, *submitterID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check duplicate submitter")
		}
		if seen {
			s.metrics.SignalsRejected.WithLabelValues("duplicate").Inc()
			s.emit(ctx, audit.Event{
				Action:  audit.ActionSignalRejected,
				VenueID: venueID,
				Actor:   submitterID.String(),
				Detail:  "duplicate submitter while pending",
			})
			return nil, dErrors.New(dErrors.CodeConflict, "identity already signalled this venue")
		}
	}

	kind := id.SignalCorroboration
	if role.IsAdmin() {
		kind = id.SignalAdminVerify
	}
	signal := &models.Signal{
		ID:          id.NewSignalID(),
		VenueID:     venueID,
		Kind:        kind,
		SourceRole:  role,
		SubmitterID: submitterID,
		Note:        strings.TrimSpace(note),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.AppendSignal(ctx, signal); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "append signal")
	}

	s.metrics.SignalsRecorded.WithLabelValues(string(kind)).Inc()
	s.invalidateLevel(ctx, venueID)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionSignalRecorded,
		VenueID: venueID,
		Actor:   actorString(submitterID),
		Detail:  string(kind),
	})

	if !venue.Listed {
		if err := s.reevaluateListing(ctx, venueID, kind, submitterID); err != nil {
			return nil, err
		}
	}
	return signal, nil
}

// reevaluateListing flips an unlisted venue to listed when an admin has
// verified it or the distinct-USER-submitter count reaches the threshold.
// Caller holds the venue lock.
func (s *Service) reevaluateListing(ctx context.Context, venueID id.VenueID, kind id.SignalKind, submitterID *id.UserID) error {
	activate := kind == id.SignalAdminVerify
	if !activate {
		signals, err := s.store.ListSignals(ctx, venueID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list signals")
		}
		activate = confidence.DistinctUserSubmitters(signals) >= activationThreshold
	}
	if !activate {
		return nil
	}

	flipped, err := s.store.MarkListed(ctx, venueID, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark venue listed")
	}
	if !flipped {
		return nil
	}
	s.metrics.VenuesActivated.Inc()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionVenueActivated,
		VenueID: venueID,
		Actor:   actorString(submitterID),
		Detail:  string(kind),
	})
	s.logger.InfoContext(ctx, "venue activated", slog.String("venue_id", venueID.String()))
	return nil
}

// Get returns one venue. Unlisted venues are visible only to admins and to
// their original submitters via the signal log, not hidden here: fetch by id
// is not a discovery surface, so no role filter applies.
func (s *Service) Get(ctx context.Context, venueID id.VenueID) (*models.Venue, error) {
	venue, err := s.store.FindByID(ctx, venueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load venue")
	}
	return venue, nil
}

// Browse lists venues. Non-admin callers see listed venues only.
func (s *Service) Browse(ctx context.Context, role id.Role) ([]models.Venue, error) {
	venues, err := s.store.List(ctx, !role.IsAdmin())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list venues")
	}
	return venues, nil
}

// Signals returns the venue's signal history in creation order.
func (s *Service) Signals(ctx context.Context, venueID id.VenueID) ([]models.Signal, error) {
	signals, err := s.store.ListSignals(ctx, venueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list signals")
	}
	return signals, nil
}

func (s *Service) invalidateLevel(ctx context.Context, venueID id.VenueID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, venueID); err != nil {
		s.logger.WarnContext(ctx, "level cache invalidation failed",
			slog.String("venue_id", venueID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
	}
}

func validateDraft(draft models.Draft) error {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "venue name is required")
	}
	if len(name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "venue name too long")
	}
	return nil
}

func actorString(submitterID *id.UserID) string {
	if submitterID == nil {
		return ""
	}
	return submitterID.String()
}
