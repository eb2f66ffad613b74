package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/orchestration"
	"github.com/ignite/campaign-orchestrator/internal/performance"
	"github.com/ignite/campaign-orchestrator/internal/pkg/httputil"
	"github.com/ignite/campaign-orchestrator/internal/pkg/logger"
	"github.com/ignite/campaign-orchestrator/internal/provider"
)

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	planner     *orchestration.Planner
	scheduler   *orchestration.Scheduler
	plans       orchestration.PlanStore
	tracker     *performance.Aggregator
	experiments *experiment.Engine
	sender      provider.ChannelSender
}

// NewHandlers creates the handler set.
func NewHandlers(
	planner *orchestration.Planner,
	scheduler *orchestration.Scheduler,
	plans orchestration.PlanStore,
	tracker *performance.Aggregator,
	experiments *experiment.Engine,
	sender provider.ChannelSender,
) *Handlers {
	return &Handlers{
		planner:     planner,
		scheduler:   scheduler,
		plans:       plans,
		tracker:     tracker,
		experiments: experiments,
		sender:      sender,
	}
}

// writeDomainError maps sentinel errors from the engines onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestration.ErrInvalidSpec),
		errors.Is(err, orchestration.ErrUnsupportedStrategy),
		errors.Is(err, performance.ErrInvalidSpec),
		errors.Is(err, experiment.ErrInvalidSpec):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, orchestration.ErrNotFound),
		errors.Is(err, performance.ErrNotFound),
		errors.Is(err, experiment.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, orchestration.ErrAlreadyScheduled),
		errors.Is(err, performance.ErrAlreadyTracking):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

type buildPlanRequest struct {
	Strategy string                       `json:"strategy"`
	Channels []domain.ChannelSpec         `json:"channels"`
	Audience domain.AudienceSlice         `json:"audience"`
	Stages   []orchestration.StageRequest `json:"stages,omitempty"`
}

// BuildPlan builds an execution plan from the requested strategy and
// persists it for later scheduling.
func (h *Handlers) BuildPlan(w http.ResponseWriter, r *http.Request) {
	var req buildPlanRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	plan, err := h.planner.BuildPlan(orchestration.PlanRequest{
		Strategy: req.Strategy,
		Channels: req.Channels,
		Audience: req.Audience,
		Stages:   req.Stages,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.plans.SavePlan(r.Context(), plan); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, plan)
}

// GetPlan returns a stored plan.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, plan)
}

// ListPlans returns all stored plans, newest first.
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListPlans(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"plans": plans, "count": len(plans)})
}

// SchedulePlan arms the stored plan's triggers. Fired executions dispatch to
// the delivery provider.
func (h *Handlers) SchedulePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	plan, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.scheduler.Schedule(plan, h.dispatch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"plan_id":         planID,
		"scheduled_count": result.ScheduledCount,
	})
}

// dispatch sends one fired channel execution through the delivery provider.
// It runs on the trigger goroutine after the scheduler releases its lock.
func (h *Handlers) dispatch(exec domain.ChannelExecution) {
	handle, err := h.sender.SendViaChannel(context.Background(), exec.Channel.Type, exec.Audience, nil)
	if err != nil {
		logger.Error("channel dispatch failed",
			"channel", string(exec.Channel.Type),
			"error", err.Error())
		return
	}
	logger.Info("channel dispatched",
		"channel", string(exec.Channel.Type),
		"provider_campaign_id", handle.ProviderCampaignID,
		"recipients", handle.Recipients)
}

// CancelPlan clears the plan's outstanding triggers.
func (h *Handlers) CancelPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	result, err := h.scheduler.Cancel(planID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"plan_id":          planID,
		"cancelled_timers": result.CancelledTimers,
	})
}

// PlanStatus reports the trigger states for a scheduled plan.
func (h *Handlers) PlanStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.scheduler.Status(chi.URLParam(r, "planID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"executions": statuses})
}
