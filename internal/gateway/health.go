package gateway

import (
	"net/http"

	"github.com/flemzord/chatmem/internal/provider"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string            `json:"status"` // "ok" or "degraded"
	Sessions  int               `json:"sessions"`
	Providers []provider.Status `json:"providers,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 if all providers are available, 503 if any is degraded or
// dead. Without providers the engine only trims, which is still healthy.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Sessions: len(g.engine.SessionIDs()),
		}

		if g.chain != nil {
			resp.Providers = g.chain.HealthReport()
			for _, p := range resp.Providers {
				if !p.Available {
					resp.Status = "degraded"
					break
				}
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
