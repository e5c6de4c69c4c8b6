package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/chatmem/internal/core"
	"github.com/flemzord/chatmem/internal/provider"
)

// StatusResponse is the JSON response for GET /api/status.
type StatusResponse struct {
	Uptime           int64             `json:"uptime_seconds"`
	Metrics          MetricsSnapshot   `json:"metrics"`
	Sessions         int               `json:"sessions"`
	MaxContextTokens int               `json:"max_context_tokens"`
	Providers        []provider.Status `json:"providers,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /api/status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:           int64(time.Since(g.startedAt) / time.Second),
			Metrics:          g.metrics.Snapshot(),
			Sessions:         len(g.engine.SessionIDs()),
			MaxContextTokens: g.engine.Budget().Config().MaxContextTokens,
		}

		if g.chain != nil {
			resp.Providers = g.chain.HealthReport()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleGetAllModules lists compiled modules, optionally restricted to the
// namespace query parameter (for /api/modules).
func (g *Gateway) handleGetAllModules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mods := core.GetModules()
		if ns := r.URL.Query().Get("namespace"); ns != "" {
			mods = core.GetModulesByNamespace(ns)
		}
		out := make([]moduleJSON, 0, len(mods))
		for _, m := range mods {
			out = append(out, moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
