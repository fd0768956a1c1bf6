// Package session manages an authenticated HTTP client session: access
// credential attachment, a single shared refresh-and-retry on authentication
// failure, and global session destruction when refresh fails.
package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Doer issues HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials is the token pair held for a live session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for fresh credentials.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// Manager wraps a Doer with session-aware authorization. A 401 response
// triggers at most one refresh and one retry per original call; concurrent
// 401s share a single in-flight refresh. Refresh failure destroys the whole
// session, so every subsequent call goes out unauthenticated until a new
// login installs credentials.
type Manager struct {
	client    Doer
	refresher Refresher
	logger    *slog.Logger

	group singleflight.Group

	mu         sync.RWMutex
	creds      *Credentials
	generation uint64
}

func NewManager(client Doer, refresher Refresher, logger *slog.Logger) *Manager {
	return &Manager{client: client, refresher: refresher, logger: logger}
}

// SetCredentials installs a new session, replacing any previous one.
func (m *Manager) SetCredentials(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := creds
	m.creds = &copied
	m.generation++
}

// Destroy drops the session. Idempotent.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	m.generation++
}

// Authenticated reports whether a session is currently held.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil
}

// Do issues the request with the current access credential attached, if any.
// On a 401 with a refresh credential held it refreshes once and retries the
// call exactly once; a second 401 is returned as-is. Transport errors are
// surfaced directly and never trigger a refresh.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	creds, generation := m.snapshot()

	resp, err := m.send(req, creds)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if creds == nil || creds.RefreshToken == "" {
		return resp, nil
	}

	fresh, refreshErr := m.refresh(req.Context(), generation)
	if refreshErr != nil {
		// Session is already destroyed; the caller gets the original
		// authentication failure, not the refresh error.
		return resp, nil
	}

	retry, cloneErr := cloneRequest(req)
	if cloneErr != nil {
		m.logger.WarnContext(req.Context(), "cannot replay request after refresh",
			slog.String("error", cloneErr.Error()))
		return resp, nil
	}
	discard(resp)
	return m.send(retry, fresh)
}

func (m *Manager) snapshot() (*Credentials, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil, m.generation
	}
	copied := *m.creds
	return &copied, m.generation
}

func (m *Manager) send(req *http.Request, creds *Credentials) (*http.Response, error) {
	if creds != nil && creds.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	} else {
		req.Header.Del("Authorization")
	}
	return m.client.Do(req)
}

// refresh runs at most one refresh at a time; waiters share the result.
// generation identifies the credentials the caller saw the 401 with: if the
// session already rotated past it, the rotated credentials are returned
// without another refresh round-trip.
func (m *Manager) refresh(ctx context.Context, generation uint64) (*Credentials, error) {
	result, err, _ := m.group.Do("refresh", func() (any, error) {
		m.mu.RLock()
		current := m.creds
		currentGen := m.generation
		m.mu.RUnlock()

		if current == nil {
			return nil, errSessionDestroyed
		}
		if currentGen != generation {
			copied := *current
			return &copied, nil
		}

		fresh, err := m.refresher.Refresh(ctx, current.RefreshToken)
		if err != nil {
			m.Destroy()
			m.logger.WarnContext(ctx, "session refresh failed, session destroyed",
				slog.String("error", err.Error()))
			return nil, err
		}

		m.mu.Lock()
		copied := *fresh
		m.creds = &copied
		m.generation++
		m.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Credentials), nil
}

// cloneRequest rebuilds the request for the retry. Requests with a consumed
// one-shot body (no GetBody) cannot be replayed.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func discard(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}
}
