package session_test

//go:generate mockgen -source=manager.go -destination=mocks/mocks.go -package=mocks Doer,Refresher

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"waypost/internal/session"
	"waypost/internal/session/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://api.test/venues", nil)
	require.NoError(t, err)
	return req
}

func TestDo_AttachesAccessToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "acc-1", RefreshToken: "ref-1"})

	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer acc-1", req.Header.Get("Authorization"))
		return response(http.StatusOK), nil
	})

	resp, err := manager.Do(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_UnauthenticatedGoesOutBare(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())

	// A 401 without a held session must not trigger a refresh.
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Empty(t, req.Header.Get("Authorization"))
		return response(http.StatusUnauthorized), nil
	})

	resp, err := manager.Do(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "stale", RefreshToken: "ref-1"})

	gomock.InOrder(
		doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer stale", req.Header.Get("Authorization"))
			return response(http.StatusUnauthorized), nil
		}),
		refresher.EXPECT().Refresh(gomock.Any(), "ref-1").Return(
			&session.Credentials{AccessToken: "fresh", RefreshToken: "ref-2"}, nil),
		doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer fresh", req.Header.Get("Authorization"))
			return response(http.StatusOK), nil
		}),
	)

	resp, err := manager.Do(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, manager.Authenticated())
}

func TestDo_SecondUnauthorizedIsFatalToTheCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "stale", RefreshToken: "ref-1"})

	// One refresh, one retry; the retry's 401 comes straight back.
	gomock.InOrder(
		doer.EXPECT().Do(gomock.Any()).Return(response(http.StatusUnauthorized), nil),
		refresher.EXPECT().Refresh(gomock.Any(), "ref-1").Return(
			&session.Credentials{AccessToken: "fresh", RefreshToken: "ref-2"}, nil),
		doer.EXPECT().Do(gomock.Any()).Return(response(http.StatusUnauthorized), nil),
	)

	resp, err := manager.Do(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDo_RefreshFailureDestroysSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "stale", RefreshToken: "ref-1"})

	gomock.InOrder(
		doer.EXPECT().Do(gomock.Any()).Return(response(http.StatusUnauthorized), nil),
		refresher.EXPECT().Refresh(gomock.Any(), "ref-1").Return(nil, errors.New("refresh rejected")),
	)

	resp, err := manager.Do(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "caller sees the original auth failure")
	assert.False(t, manager.Authenticated(), "session destruction is global and immediate")

	// Subsequent calls go out logged out.
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Empty(t, req.Header.Get("Authorization"))
		return response(http.StatusOK), nil
	})
	_, err = manager.Do(newRequest(t))
	require.NoError(t, err)
}

func TestDo_TransportErrorSurfacedDirectly(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	refresher := mocks.NewMockRefresher(ctrl)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "acc", RefreshToken: "ref-1"})

	transportErr := errors.New("connection reset")
	doer.EXPECT().Do(gomock.Any()).Return(nil, transportErr)

	_, err := manager.Do(newRequest(t))
	require.ErrorIs(t, err, transportErr)
	assert.True(t, manager.Authenticated(), "transport failures never destroy the session")
}

// doerFunc lets the concurrency test serve scripted responses without mock
// call ordering.
type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestDo_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	var refreshes atomic.Int64
	var fresh atomic.Int64

	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("Authorization") == "Bearer fresh" {
			fresh.Add(1)
			return response(http.StatusOK), nil
		}
		return response(http.StatusUnauthorized), nil
	})

	ctrl := gomock.NewController(t)
	refresher := mocks.NewMockRefresher(ctrl)
	refresher.EXPECT().Refresh(gomock.Any(), "ref-1").DoAndReturn(
		func(_ any, _ string) (*session.Credentials, error) {
			refreshes.Add(1)
			return &session.Credentials{AccessToken: "fresh", RefreshToken: "ref-2"}, nil
		}).Times(1)

	manager := session.NewManager(doer, refresher, testLogger())
	manager.SetCredentials(session.Credentials{AccessToken: "stale", RefreshToken: "ref-1"})

	const callers = 12
	results := make(chan int, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, "http://api.test/venues", nil)
			resp, err := manager.Do(req)
			if err != nil {
				results <- -1
				return
			}
			results <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(results)

	for status := range results {
		require.Equal(t, http.StatusOK, status)
	}
	require.Equal(t, int64(1), refreshes.Load(), "waiters must share a single in-flight refresh")
	require.Equal(t, int64(callers), fresh.Load())
}
