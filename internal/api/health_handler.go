package api

import (
	"net/http"
	"time"

	"github.com/ignite/campaign-orchestrator/internal/pkg/httputil"
)

// HealthCheck reports liveness plus a few cheap runtime facts.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":          "ok",
		"time":            time.Now().UTC().Format(time.RFC3339),
		"active_sessions": h.tracker.ActiveSessions(),
	})
}
