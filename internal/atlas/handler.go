package atlas

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hyperengineering/roster"
)

// ServerStore extends the record-store contract with the summary view
// served by the status endpoint. Implemented by *roster.Store.
type ServerStore interface {
	RecordStore
	StatusSummary() (*roster.StatusView, error)
	Stats() (*roster.StoreStats, error)
}

// Handler exposes the sync protocol over HTTP:
//
//	POST /api/v1/sync/push
//	GET  /api/v1/sync/pull?since=<RFC3339Nano>&entity_type=<type>
//	GET  /api/v1/status
//	GET  /api/v1/health
//
// Used by the serve command to self-host an Atlas-compatible registry,
// and by tests to exercise the full protocol end to end.
type Handler struct {
	store   ServerStore
	applier *Applier
	apiKey  string
	version string
	mux     *http.ServeMux
}

// NewHandler creates a handler over the given store. If apiKey is
// non-empty, every request must carry it as a bearer token.
func NewHandler(store ServerStore, apiKey, version string) *Handler {
	h := &Handler{
		store:   store,
		applier: NewApplier(store),
		apiKey:  apiKey,
		version: version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sync/push", h.handlePush)
	mux.HandleFunc("GET /api/v1/sync/pull", h.handlePull)
	mux.HandleFunc("GET /api/v1/status", h.handleStatus)
	mux.HandleFunc("GET /api/v1/health", h.handleHealth)
	h.mux = mux

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	var req roster.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid push request: "+err.Error())
		return
	}

	resp, err := h.applier.ApplyPush(&req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp: "+err.Error())
			return
		}
		since = parsed
	}

	entityType := roster.EntityType(r.URL.Query().Get("entity_type"))
	if entityType != "" && !entityType.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown entity type: "+string(entityType))
		return
	}

	resp, err := h.applier.ListSince(entityType, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.store.StatusSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, roster.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Records: stats.RecordCount,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
