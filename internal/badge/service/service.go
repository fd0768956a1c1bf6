// Package service implements the badge lifecycle: issuance for listed venues
// on behalf of verified venue admins, terminal revocation, and the admin
// link management behind both.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"waypost/internal/audit"
	"waypost/internal/badge/models"
	"waypost/internal/platform/metrics"
	venuemodels "waypost/internal/venue/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/platform/keyedmutex"
	"waypost/pkg/platform/sentinel"
	"waypost/pkg/requestcontext"
	"waypost/pkg/secrets"
)

// Store is the persistence contract for badges and venue-admin links.
type Store interface {
	CreateBadge(ctx context.Context, badge *models.Badge) error
	FindBadgeByID(ctx context.Context, badgeID id.BadgeID) (*models.Badge, error)
	ListBadgesByVenue(ctx context.Context, venueID id.VenueID) ([]models.Badge, error)
	MarkRevoked(ctx context.Context, badgeID id.BadgeID) (bool, error)
	UpsertAdmin(ctx context.Context, admin *models.VenueAdmin) error
	FindAdmin(ctx context.Context, venueID id.VenueID, userID id.UserID) (*models.VenueAdmin, error)
}

// VenueSource supplies venue state for the listed check.
type VenueSource interface {
	FindByID(ctx context.Context, venueID id.VenueID) (*venuemodels.Venue, error)
}

type Service struct {
	store    Store
	venues   VenueSource
	audit    audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	locks    *keyedmutex.Mutex
	badgeTTL time.Duration
}

// New constructs the badge service. badgeTTL of zero issues badges without
// expiry.
func New(store Store, venues VenueSource, publisher audit.Publisher, m *metrics.Metrics, logger *slog.Logger, badgeTTL time.Duration) *Service {
	return &Service{
		store:    store,
		venues:   venues,
		audit:    publisher,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("waypost/badge"),
		locks:    keyedmutex.New(),
		badgeTTL: badgeTTL,
	}
}

// Issue creates a badge for the venue with a fresh verification token.
// Fails when the venue is not listed or when the issuer has no verified
// admin link to it.
func (s *Service) Issue(ctx context.Context, venueID id.VenueID, issuerID id.UserID) (*models.Badge, error) {
	ctx, span := s.tracer.Start(ctx, "badge.issue")
	defer span.End()

	unlock := s.locks.Lock("venue:" + venueID.String())
	defer unlock()

	venue, err := s.venues.FindByID(ctx, venueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load venue")
	}
	if !venue.Listed {
		return nil, dErrors.New(dErrors.CodeInvalidState, "venue is not listed")
	}
	if err := s.requireVerifiedAdmin(ctx, venueID, issuerID); err != nil {
		return nil, err
	}

	token, err := secrets.GenerateToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate verification token")
	}

	now := requestcontext.Now(ctx)
	badge := &models.Badge{
		ID:       id.NewBadgeID(),
		VenueID:  venueID,
		IssuedBy: issuerID,
		Token:    token,
		Active:   true,
		IssuedAt: now,
	}
	if s.badgeTTL > 0 {
		expires := now.Add(s.badgeTTL)
		badge.ExpiresAt = &expires
	}

	if err := s.store.CreateBadge(ctx, badge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create badge")
	}

	s.metrics.BadgesIssued.Inc()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionBadgeIssued,
		VenueID: venueID,
		Actor:   issuerID.String(),
		Detail:  badge.ID.String(),
	})
	s.logger.InfoContext(ctx, "badge issued",
		slog.String("badge_id", badge.ID.String()),
		slog.String("venue_id", venueID.String()))
	return badge, nil
}

// Revoke marks the badge revoked. Revocation is terminal; revoking an
// already-revoked badge is a no-op success. The check-then-set sequence
// runs under a per-badge lock so concurrent revokes cannot lose updates.
func (s *Service) Revoke(ctx context.Context, badgeID id.BadgeID, actorID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "badge.revoke")
	defer span.End()

	unlock := s.locks.Lock("badge:" + badgeID.String())
	defer unlock()

	badge, err := s.store.FindBadgeByID(ctx, badgeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "badge not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load badge")
	}
	if err := s.requireVerifiedAdmin(ctx, badge.VenueID, actorID); err != nil {
		return err
	}
	if badge.Revoked {
		return nil
	}

	flipped, err := s.store.MarkRevoked(ctx, badgeID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke badge")
	}
	if !flipped {
		return nil
	}

	s.metrics.BadgesRevoked.Inc()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionBadgeRevoked,
		VenueID: badge.VenueID,
		Actor:   actorID.String(),
		Detail:  badgeID.String(),
	})
	s.logger.InfoContext(ctx, "badge revoked",
		slog.String("badge_id", badgeID.String()),
		slog.String("venue_id", badge.VenueID.String()))
	return nil
}

// ListByVenue returns the venue's badges in issue order.
func (s *Service) ListByVenue(ctx context.Context, venueID id.VenueID) ([]models.Badge, error) {
	badges, err := s.store.ListBadgesByVenue(ctx, venueID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list badges")
	}
	return badges, nil
}

// LinkAdmin creates or updates a venue-admin relation. Used by operator
// tooling; links start unverified unless verified is set.
func (s *Service) LinkAdmin(ctx context.Context, venueID id.VenueID, userID id.UserID, verified bool) error {
	now := requestcontext.Now(ctx)
	admin := &models.VenueAdmin{
		VenueID:   venueID,
		UserID:    userID,
		Verified:  verified,
		CreatedAt: now,
	}
	if verified {
		admin.VerifiedAt = &now
	}
	if err := s.store.UpsertAdmin(ctx, admin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "link venue admin")
	}
	return nil
}

func (s *Service) requireVerifiedAdmin(ctx context.Context, venueID id.VenueID, userID id.UserID) error {
	admin, err := s.store.FindAdmin(ctx, venueID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "no verified admin relation to venue")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load admin relation")
	}
	if !admin.Verified {
		return dErrors.New(dErrors.CodeForbidden, "no verified admin relation to venue")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
	}
}
