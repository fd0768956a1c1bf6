// Package verify resolves public verification tokens to badge validity.
// The lookup is anonymous and read-only; an unknown or invalid token yields
// nothing beyond valid=false, so the endpoint leaks no existence or state
// information.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	badgemodels "waypost/internal/badge/models"
	"waypost/internal/platform/metrics"
	venuemodels "waypost/internal/venue/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/platform/sentinel"
	"waypost/pkg/requestcontext"
)

// BadgeSource supplies badge lookups by token and the last-checked touch.
type BadgeSource interface {
	FindBadgeByToken(ctx context.Context, token string) (*badgemodels.Badge, error)
	TouchLastChecked(ctx context.Context, badgeID id.BadgeID, at time.Time) error
}

// VenueSource supplies the public identity of the badge's venue.
type VenueSource interface {
	FindByID(ctx context.Context, venueID id.VenueID) (*venuemodels.Venue, error)
}

// Result is the public verification outcome. All fields beyond Valid are
// populated only for a currently valid badge.
type Result struct {
	Valid     bool       `json:"valid"`
	VenueID   string     `json:"venue_id,omitempty"`
	VenueName string     `json:"venue_name,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Resolver struct {
	badges  BadgeSource
	venues  VenueSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewResolver(badges BadgeSource, venues VenueSource, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{badges: badges, venues: venues, metrics: m, logger: logger}
}

// Resolve looks up a verification token. Unknown tokens and invalid badges
// produce the same bare valid=false result. Known tokens get a best-effort
// last-checked touch; touch failures never affect the outcome.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Result, error) {
	if token == "" {
		r.metrics.VerificationLookups.WithLabelValues("unknown").Inc()
		return &Result{}, nil
	}

	badge, err := r.badges.FindBadgeByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.metrics.VerificationLookups.WithLabelValues("unknown").Inc()
			return &Result{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up token")
	}

	now := requestcontext.Now(ctx)
	r.touch(ctx, badge.ID, now)

	if !badge.ValidAt(now) {
		r.metrics.VerificationLookups.WithLabelValues("invalid").Inc()
		return &Result{}, nil
	}

	venue, err := r.venues.FindByID(ctx, badge.VenueID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load badge venue")
	}

	r.metrics.VerificationLookups.WithLabelValues("valid").Inc()
	issuedAt := badge.IssuedAt
	return &Result{
		Valid:     true,
		VenueID:   venue.ID.String(),
		VenueName: venue.Name,
		IssuedAt:  &issuedAt,
		ExpiresAt: badge.ExpiresAt,
	}, nil
}

func (r *Resolver) touch(ctx context.Context, badgeID id.BadgeID, at time.Time) {
	if err := r.badges.TouchLastChecked(ctx, badgeID, at); err != nil {
		r.logger.WarnContext(ctx, "badge touch failed",
			slog.String("badge_id", badgeID.String()),
			slog.String("error", err.Error()))
	}
}
