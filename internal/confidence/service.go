package confidence

import (
	"context"
	"errors"
	"log/slog"

	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/platform/sentinel"
)

// SignalSource supplies a venue's full signal history.
type SignalSource interface {
	ListSignals(ctx context.Context, venueID id.VenueID) ([]models.Signal, error)
}

// Service computes and caches per-venue confidence levels. The store is the
// source of truth; the cache is read-through with invalidate-on-write done
// by the venue service.
type Service struct {
	signals SignalSource
	cache   Cache
	logger  *slog.Logger
}

func NewService(signals SignalSource, cache Cache, logger *slog.Logger) *Service {
	return &Service{signals: signals, cache: cache, logger: logger}
}

// Level returns the venue's current confidence level.
func (s *Service) Level(ctx context.Context, venueID id.VenueID) (id.Level, error) {
	if level, err := s.cache.Get(ctx, venueID); err == nil {
		return level, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "level cache read failed",
			slog.String("venue_id", venueID.String()),
			slog.String("error", err.Error()))
	}

	signals, err := s.signals.ListSignals(ctx, venueID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "venue not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list signals")
	}

	level := ComputeLevel(signals)
	if err := s.cache.Set(ctx, venueID, level); err != nil {
		s.logger.WarnContext(ctx, "level cache write failed",
			slog.String("venue_id", venueID.String()),
			slog.String("error", err.Error()))
	}
	return level, nil
}
