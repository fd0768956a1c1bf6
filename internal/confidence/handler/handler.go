package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waypost/internal/transport/http/shared"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
)

// Service resolves a venue's confidence level.
type Service interface {
	Level(ctx context.Context, venueID id.VenueID) (id.Level, error)
}

// Handler exposes the derived confidence level for a venue.
type Handler struct {
	confidence Service
}

func New(confidence Service) *Handler {
	return &Handler{confidence: confidence}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/venues/{venueID}/confidence", h.handleLevel)
}

func (h *Handler) handleLevel(w http.ResponseWriter, r *http.Request) {
	venueID, err := id.ParseVenueID(chi.URLParam(r, "venueID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid venue id"))
		return
	}

	level, err := h.confidence.Level(r.Context(), venueID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"venue_id": venueID.String(),
		"level":    int(level),
		"label":    level.String(),
	})
}
