package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"waypost/internal/platform/middleware"
	"waypost/internal/transport/http/shared"
	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
	dErrors "waypost/pkg/domain-errors"
	"waypost/pkg/requestcontext"
)

// Service defines the venue operations the handler delegates to.
type Service interface {
	Submit(ctx context.Context, draft models.Draft, role id.Role, submitterID id.UserID) (*models.Venue, *models.Signal, error)
	Corroborate(ctx context.Context, venueID id.VenueID, role id.Role, submitterID *id.UserID, note string) (*models.Signal, error)
	Get(ctx context.Context, venueID id.VenueID) (*models.Venue, error)
	Browse(ctx context.Context, role id.Role) ([]models.Venue, error)
	Signals(ctx context.Context, venueID id.VenueID) ([]models.Signal, error)
}

// Handler exposes venue submission, browsing and corroboration endpoints.
type Handler struct {
	venues       Service
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func New(venues Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{venues: venues, logger: logger, jwtValidator: jwtValidator}
}

// Register mounts the venue routes on the router. Corroboration accepts
// anonymous callers; submission requires an authenticated identity.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(h.jwtValidator, h.logger))
		r.Get("/venues", h.handleBrowse)
		r.Get("/venues/{venueID}", h.handleGet)
		r.Get("/venues/{venueID}/signals", h.handleListSignals)
		r.Post("/venues/{venueID}/signals", h.handleCorroborate)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/venues", h.handleSubmit)
	})
}

type submitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type venueResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Listed      bool       `json:"listed"`
	CreatedAt   time.Time  `json:"created_at"`
	ListedAt    *time.Time `json:"listed_at,omitempty"`
}

type signalResponse struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venue_id"`
	Kind        string    `json:"kind"`
	SourceRole  string    `json:"source_role"`
	SubmitterID string    `json:"submitter_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toVenueResponse(venue *models.Venue) venueResponse {
	return venueResponse{
		ID:          venue.ID.String(),
		Name:        venue.Name,
		Description: venue.Description,
		Listed:      venue.Listed,
		CreatedAt:   venue.CreatedAt,
		ListedAt:    venue.ListedAt,
	}
}

func toSignalResponse(signal *models.Signal) signalResponse {
	resp := signalResponse{
		ID:         signal.ID.String(),
		VenueID:    signal.VenueID.String(),
		Kind:       string(signal.Kind),
		SourceRole: string(signal.SourceRole),
		Note:       signal.Note,
		CreatedAt:  signal.CreatedAt,
	}
	if signal.SubmitterID != nil {
		resp.SubmitterID = signal.SubmitterID.String()
	}
	return resp
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	ctx := r.Context()
	venue, signal, err := h.venues.Submit(ctx,
		models.Draft{Name: req.Name, Description: req.Description},
		requestcontext.Role(ctx), requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"venue":  toVenueResponse(venue),
		"signal": toSignalResponse(signal),
	})
}

type corroborateRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleCorroborate(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDFromPath(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req corroborateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	ctx := r.Context()
	var submitterID *id.UserID
	if userID := requestcontext.UserID(ctx); !userID.IsZero() {
		submitterID = &userID
	}

	signal, err := h.venues.Corroborate(ctx, venueID, requestcontext.Role(ctx), submitterID, req.Note)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toSignalResponse(signal))
}

func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	venues, err := h.venues.Browse(r.Context(), requestcontext.Role(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]venueResponse, 0, len(venues))
	for i := range venues {
		out = append(out, toVenueResponse(&venues[i]))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"venues": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDFromPath(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	venue, err := h.venues.Get(r.Context(), venueID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toVenueResponse(venue))
}

func (h *Handler) handleListSignals(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDFromPath(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	signals, err := h.venues.Signals(r.Context(), venueID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]signalResponse, 0, len(signals))
	for i := range signals {
		out = append(out, toSignalResponse(&signals[i]))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"signals": out})
}

func venueIDFromPath(r *http.Request) (id.VenueID, error) {
	venueID, err := id.ParseVenueID(chi.URLParam(r, "venueID"))
	if err != nil {
		return id.VenueID{}, dErrors.New(dErrors.CodeBadRequest, "invalid venue id")
	}
	return venueID, nil
}
