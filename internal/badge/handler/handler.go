package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"waypost/internal/badge/models"
	"waypost/internal/platform/middleware"
	"waypost/internal/transport/http/shared"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/requestcontext"
)

// Service defines the badge operations the handler delegates to.
type Service interface {
	Issue(ctx context.Context, venueID id.VenueID, issuerID id.UserID) (*models.Badge, error)
	Revoke(ctx context.Context, badgeID id.BadgeID, actorID id.UserID) error
	ListByVenue(ctx context.Context, venueID id.VenueID) ([]models.Badge, error)
}

// Handler exposes badge issuance, listing and revocation endpoints.
// Authorization beyond authentication (the verified venue-admin link) lives
// in the service.
type Handler struct {
	badges       Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(badges Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{badges: badges, logger: logger, jwtValidator: jwtValidator}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/venues/{venueID}/badges", h.handleList)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/venues/{venueID}/badges", h.handleIssue)
		r.Post("/badges/{badgeID}/revoke", h.handleRevoke)
	})
}

type badgeResponse struct {
	ID        string     `json:"id"`
	VenueID   string     `json:"venue_id"`
	Active    bool       `json:"active"`
	Revoked   bool       `json:"revoked"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// issuedBadgeResponse carries the verification token. Only the issuance
// response exposes it; listings never do.
type issuedBadgeResponse struct {
	badgeResponse
	Token string `json:"token"`
}

func toBadgeResponse(badge *models.Badge) badgeResponse {
	return badgeResponse{
		ID:        badge.ID.String(),
		VenueID:   badge.VenueID.String(),
		Active:    badge.Active,
		Revoked:   badge.Revoked,
		IssuedAt:  badge.IssuedAt,
		ExpiresAt: badge.ExpiresAt,
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	venueID, err := id.ParseVenueID(chi.URLParam(r, "venueID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid venue id"))
		return
	}

	badge, err := h.badges.Issue(r.Context(), venueID, requestcontext.UserID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issuedBadgeResponse{
		badgeResponse: toBadgeResponse(badge),
		Token:         badge.Token,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	badgeID, err := id.ParseBadgeID(chi.URLParam(r, "badgeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid badge id"))
		return
	}

	if err := h.badges.Revoke(r.Context(), badgeID, requestcontext.UserID(r.Context())); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	venueID, err := id.ParseVenueID(chi.URLParam(r, "venueID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid venue id"))
		return
	}

	badges, err := h.badges.ListByVenue(r.Context(), venueID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]badgeResponse, 0, len(badges))
	for i := range badges {
		out = append(out, toBadgeResponse(&badges[i]))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"badges": out})
}
