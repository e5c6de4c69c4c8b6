package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/flemzord/chatmem/internal/provider"
	"github.com/flemzord/chatmem/internal/session"
)

type createSessionRequest struct {
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type addMessageRequest struct {
	Role    provider.MessageRole `json:"role"`
	Content string               `json:"content"`
	OwnerID string               `json:"owner_id"`
}

type contextRequest struct {
	Query           string `json:"query"`
	OwnerID         string `json:"owner_id"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

// overflowResponse carries the bundle that did not fit so clients can
// still inspect usage and decide how to shrink the request.
type overflowResponse struct {
	Error  string               `json:"error"`
	Bundle memory.ContextBundle `json:"bundle"`
}

type compactResponse struct {
	Compacted bool   `json:"compacted"`
	Error     string `json:"error,omitempty"`
}

type validateRequest struct {
	Messages  []provider.LLMMessage `json:"messages"`
	MaxTokens int                   `json:"max_tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if !g.decode(w, r, &req) {
			return
		}
		id, err := g.engine.CreateSession(r.Context(), req.OwnerID, req.SessionID)
		if err != nil {
			g.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
	}
}

// handleListSessions returns live sessions, optionally filtered by the
// owner_id query parameter.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner_id")
		sessions := g.engine.Sessions()
		if owner != "" {
			sessions = slices.DeleteFunc(sessions, func(s memory.SessionInfo) bool {
				return s.OwnerID != owner
			})
		}
		if sessions == nil {
			sessions = []memory.SessionInfo{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := g.engine.Session(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.engine.DeleteSession(r.Context(), chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) handleAddMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addMessageRequest
		if !g.decode(w, r, &req) {
			return
		}
		res, err := g.engine.AddMessage(r.Context(), chi.URLParam(r, "id"), req.Role, req.Content, req.OwnerID)
		if err != nil {
			g.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (g *Gateway) handleGetContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contextRequest
		if !g.decode(w, r, &req) {
			return
		}
		if req.MaxOutputTokens < 0 {
			writeError(w, http.StatusBadRequest, "max_output_tokens must not be negative")
			return
		}
		bundle, err := g.engine.GetContext(r.Context(), chi.URLParam(r, "id"), req.Query, req.OwnerID, req.MaxOutputTokens)
		switch {
		case errors.Is(err, memory.ErrContextWindowExceeded):
			writeJSON(w, http.StatusRequestEntityTooLarge, overflowResponse{Error: err.Error(), Bundle: bundle})
		case err != nil:
			g.writeEngineError(w, err)
		default:
			writeJSON(w, http.StatusOK, bundle)
		}
	}
}

func (g *Gateway) handleCompact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := g.engine.Session(id); !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		compacted, err := g.engine.MaybeCompact(r.Context(), id)
		switch {
		case errors.Is(err, memory.ErrContextWindowExceeded):
			writeJSON(w, http.StatusRequestEntityTooLarge, compactResponse{Compacted: compacted, Error: err.Error()})
		case err != nil:
			g.writeEngineError(w, err)
		default:
			writeJSON(w, http.StatusOK, compactResponse{Compacted: compacted})
		}
	}
}

func (g *Gateway) handleValidateBudget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if !g.decode(w, r, &req) {
			return
		}
		for i, m := range req.Messages {
			if !m.Role.Valid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: invalid role %q", i, m.Role))
				return
			}
		}
		if req.MaxTokens < 0 {
			writeError(w, http.StatusBadRequest, "max_tokens must not be negative")
			return
		}
		writeJSON(w, http.StatusOK, g.engine.Budget().ValidateRequest(req.Messages, req.MaxTokens))
	}
}

func (g *Gateway) handleOwnerStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := g.engine.Stats(r.Context(), chi.URLParam(r, "owner"))
		if err != nil {
			g.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// decode reads a JSON body capped at MaxBodyBytes. An empty body decodes
// to the zero value. It writes the error response itself and reports
// whether the handler should continue.
func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
	return false
}

// writeEngineError maps engine errors onto HTTP status codes.
func (g *Gateway) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrStoreFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, memory.ErrStatsUnavailable):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, memory.ErrContextWindowExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		g.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
