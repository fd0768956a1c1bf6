package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypost/internal/verify"
	"waypost/internal/verify/handler"
)

type stubResolver struct {
	results map[string]*verify.Result
}

func (s *stubResolver) Resolve(_ context.Context, token string) (*verify.Result, error) {
	if result, ok := s.results[token]; ok {
		return result, nil
	}
	return &verify.Result{}, nil
}

func newRouter(resolver handler.Service) chi.Router {
	r := chi.NewRouter()
	handler.New(resolver).Register(r)
	return r
}

func TestVerify_ValidToken(t *testing.T) {
	router := newRouter(&stubResolver{results: map[string]*verify.Result{
		"tok-live": {Valid: true, VenueID: "v-1", VenueName: "Harbour House"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/verify/tok-live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body verify.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Valid)
	assert.Equal(t, "Harbour House", body.VenueName)
}

func TestVerify_UnknownTokenIsBareFalse(t *testing.T) {
	router := newRouter(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/verify/no-such-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "unknown tokens are not errors")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, map[string]any{"valid": false}, raw,
		"nothing beyond validity may appear in the payload")
}
