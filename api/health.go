package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/log"
)

// healthHandler serves the status object and orchestration probes.
type healthHandler struct {
	pool   *pgxpool.Pool
	chat   *chat.Service
	logger log.Logger
}

// RegisterRoutes registers probe routes on the given mux.
func (h *healthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// StatusResponse is the GET / body.
type StatusResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Degraded bool   `json:"degraded"` // true when the agent stage is unavailable
}

// status reports overall service state. Degraded means fallback-only mode,
// not an outage.
func (h *healthHandler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   "ok",
		Service:  "argonaut",
		Degraded: h.chat.Degraded(),
	})
}

// liveness is a liveness probe endpoint.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports 200 only when the database answers a ping.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
