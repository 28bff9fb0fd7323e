package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/log"
)

// maxChatBodyBytes bounds the request body; questions are short.
const maxChatBodyBytes = 64 * 1024

// chatHandler handles the conversational endpoint.
type chatHandler struct {
	service *chat.Service
	logger  log.Logger
}

// RegisterRoutes registers chat routes on the given mux.
func (h *chatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.send)
}

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
	ForceSQL  bool   `json:"force_sql,omitempty"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	Output    string           `json:"output"`
	TableData []map[string]any `json:"table_data,omitempty"`
	GeoData   []map[string]any `json:"geo_data,omitempty"`
	SQLQuery  string           `json:"sql_query,omitempty"`
}

// send handles one conversational turn.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	resp, err := h.service.Respond(r.Context(), chat.Request{
		Input:     req.Input,
		SessionID: req.SessionID,
		ForceSQL:  req.ForceSQL,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyInput) {
			writeError(w, http.StatusBadRequest, "invalid_request", "input is required")
			return
		}
		h.logger.Error("chat turn failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Output:    resp.Output,
		TableData: resp.TableData,
		GeoData:   resp.GeoData,
		SQLQuery:  resp.SQLQuery,
	})
}
