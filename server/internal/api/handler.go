package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysinv/sysinv/pkg/types"
	"github.com/sysinv/sysinv/server/internal/store"
)

// DefaultMaxBodyBytes caps an inventory upload when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 16 << 20

// Options configures the handler.
type Options struct {
	// MaxBodyBytes caps the request body of an inventory upload.
	MaxBodyBytes int64
	// Auth wraps every route except health. Nil means no authentication.
	Auth func(http.Handler) http.Handler
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	maxBody int64
	mux     *http.ServeMux
}

// New creates a Handler wired to the given inventory store and registers all routes.
func New(st *store.Store, opts Options) http.Handler {
	h := &Handler{store: st, maxBody: opts.MaxBodyBytes, mux: http.NewServeMux()}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	auth := opts.Auth
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	agents := http.NewServeMux()
	agents.HandleFunc("PUT /api/v1/agents/{agentId}/system-info", h.putInventory)
	agents.HandleFunc("GET /api/v1/agents/{agentId}/system-info", h.getInventory)
	agents.HandleFunc("GET "+types.AgentsPath, h.listAgents)
	agents.HandleFunc("GET "+types.ValidateKeyPath, h.validateKey)

	h.mux.HandleFunc("GET "+types.HealthPath, h.health)
	h.mux.Handle(types.AgentsPath, auth(agents))
	h.mux.Handle(types.AgentsPath+"/", auth(agents))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// putInventory stores the uploaded system information for {agentId}. The
// body must be a JSON object; an embedded agent key is dropped before storing.
func (h *Handler) putInventory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("agentId")
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "missing agent id")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooBig.Limit))
			return
		}
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	inv, err := sanitize(body)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.store.Put(id, inv)
	slog.Info("api: inventory stored", "agent_id", id, "bytes", len(inv))
	w.WriteHeader(http.StatusNoContent)
}

// getInventory returns the stored inventory for {agentId} verbatim.
func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	e, ok := h.store.Get(r.PathValue("agentId"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "agent not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Last-Modified", e.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(e.Inventory) //nolint:errcheck
}

// listAgents returns a summary of every live agent, sorted by agent ID.
func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	entries := h.store.List()
	out := make([]types.AgentSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSummary(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// validateKey is reached only when Auth accepted the key.
func (h *Handler) validateKey(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, types.ValidateResponse{Valid: true})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, types.HealthResponse{
		Status: "ok",
		Agents: len(h.store.List()),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}

// sanitize checks that body is a JSON object and removes the agent key member.
func sanitize(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("body must be a JSON object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	if _, ok := obj[types.BodyKeyField]; !ok {
		return json.RawMessage(trimmed), nil
	}
	delete(obj, types.BodyKeyField)
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("re-encode: %v", err)
	}
	return out, nil
}

// toSummary maps a store.Entry to its list representation. Host and
// collection time are read from the inventory's agent section when present.
func toSummary(e *store.Entry) types.AgentSummary {
	var inv struct {
		Agent struct {
			Host           string `json:"host"`
			CollectedAtUTC string `json:"collectedAtUtc"`
		} `json:"agent"`
	}
	json.Unmarshal(e.Inventory, &inv) //nolint:errcheck
	return types.AgentSummary{
		AgentID:        e.AgentID,
		Host:           inv.Agent.Host,
		CollectedAtUTC: inv.Agent.CollectedAtUTC,
		UpdatedAt:      e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
