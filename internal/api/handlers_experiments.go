package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/pkg/httputil"
)

type createExperimentRequest struct {
	Name           string                   `json:"name"`
	PrimaryMetric  domain.ExperimentMetric  `json:"primary_metric"`
	ControlContent map[string]string        `json:"control_content,omitempty"`
	Variants       []experiment.VariantSpec `json:"variants"`
	Audience       domain.AudienceSlice     `json:"audience"`
}

// CreateExperiment creates an A/B/n test over the given audience.
func (h *Handlers) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	testID, err := h.experiments.CreateExperiment(r.Context(), experiment.Spec{
		Name:          req.Name,
		PrimaryMetric: req.PrimaryMetric,
		Variants:      req.Variants,
	}, req.ControlContent, req.Audience)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"test_id": testID})
}

// GetExperiment returns the experiment's current state.
func (h *Handlers) GetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := h.experiments.GetExperiment(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, exp)
}

type recordEventRequest struct {
	VariantID string `json:"variant_id"`
	EventType string `json:"event_type"`
}

// RecordEvent increments one variant counter.
func (h *Handlers) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	testID := chi.URLParam(r, "testID")
	if err := h.experiments.RecordEvent(r.Context(), testID, req.VariantID, req.EventType); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.NoContent(w)
}

// AnalyzeExperiment runs significance analysis on demand.
func (h *Handlers) AnalyzeExperiment(w http.ResponseWriter, r *http.Request) {
	results, err := h.experiments.Analyze(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, results)
}
