package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/pkg/httputil"
)

type startTrackingRequest struct {
	OrchestrationID string                                       `json:"orchestration_id"`
	Channels        []domain.TrackedChannel                      `json:"channels"`
	Initial         map[domain.ChannelType]domain.ChannelMetrics `json:"initial,omitempty"`
}

// StartTracking opens a performance tracking session for an orchestration.
func (h *Handlers) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req startTrackingRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	trackingID, err := h.tracker.StartTracking(r.Context(), req.OrchestrationID, req.Channels, req.Initial)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.Created(w, map[string]any{
		"tracking_id":      trackingID,
		"orchestration_id": req.OrchestrationID,
	})
}

// GetCurrentMetrics returns the session's running totals, summary, and trend.
func (h *Handlers) GetCurrentMetrics(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.GetCurrentMetrics(chi.URLParam(r, "orchestrationID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, report)
}

// StopTracking halts the session and returns the final snapshot.
func (h *Handlers) StopTracking(w http.ResponseWriter, r *http.Request) {
	final, err := h.tracker.StopTracking(r.Context(), chi.URLParam(r, "orchestrationID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, final)
}
