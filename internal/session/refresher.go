package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	dErrors "waypost/pkg/domain-errors"
)

// HTTPRefresher exchanges refresh tokens against the token refresh endpoint.
type HTTPRefresher struct {
	client  Doer
	baseURL string
}

func NewHTTPRefresher(client Doer, baseURL string) *HTTPRefresher {
	return &HTTPRefresher{client: client, baseURL: baseURL}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/auth/token/refresh", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh call: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("refresh rejected with status %d", resp.StatusCode))
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh response missing tokens")
	}
	return &Credentials{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken}, nil
}
