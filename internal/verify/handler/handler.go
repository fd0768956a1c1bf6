package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"waypost/internal/transport/http/shared"
	"waypost/internal/verify"
)

// Service resolves a verification token.
type Service interface {
	Resolve(ctx context.Context, token string) (*verify.Result, error)
}

// Handler exposes the public, unauthenticated badge verification endpoint.
type Handler struct {
	resolver Service
}

func New(resolver Service) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/verify/{token}", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
