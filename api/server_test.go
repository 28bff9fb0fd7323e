package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/session"
)

type stubSchema struct{}

func (stubSchema) Render(context.Context) (string, error) {
	return "TABLE profiles ()", nil
}

type stubRunner struct {
	res *query.Result
	err error
}

func (s stubRunner) Run(context.Context, string) (*query.Result, error) {
	return s.res, s.err
}

// newTestServer builds a server in degraded (fallback-only) mode backed by a
// stub executor.
func newTestServer(t *testing.T, runner chat.Runner) *Server {
	t.Helper()

	svc, err := chat.New(chat.Config{
		Sessions: session.NewStore(session.DefaultWindow, log.NewNop()),
		Schema:   stubSchema{},
		Executor: runner,
		Logger:   log.NewNop(),
	})
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{Chat: svc, Logger: log.NewNop()})
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresChatService(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t, stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
	require.Contains(t, w.Body.String(), `"degraded":true`)
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t, stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RequestIDHeader(t *testing.T) {
	srv := newTestServer(t, stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_GracefulShutdown(t *testing.T) {
	srv := newTestServer(t, stubRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()

	cancel()
	require.NoError(t, <-done)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(0.001, 2)

	require.True(t, rl.allow("10.0.0.1"))
	require.True(t, rl.allow("10.0.0.1"))
	require.False(t, rl.allow("10.0.0.1"), "third request should exhaust the burst")
	require.True(t, rl.allow("10.0.0.2"), "different IP has its own bucket")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	require.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "bare-host"
	require.Equal(t, "bare-host", clientIP(req))
}

func TestRecoveryMiddleware_WithPanic(t *testing.T) {
	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	})

	wrapped := recoveryMiddleware(log.NewNop())(handler)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "internal server error")
}

func TestChain(t *testing.T) {
	var order []string

	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}
	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	})

	wrapped := chain(handler, mw("m1"), mw("m2"))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}, order)
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := &healthHandler{logger: log.NewNop()}

	w := httptest.NewRecorder()
	h.liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestHealthHandler_Readiness_PoolNil(t *testing.T) {
	h := &healthHandler{logger: log.NewNop()}

	w := httptest.NewRecorder()
	h.readiness(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "database pool not configured")
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "invalid_request", "bad input")

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.True(t, strings.Contains(w.Body.String(), "invalid_request"))
}
