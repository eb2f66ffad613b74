// Package store provides the persistence implementations behind the
// engine-level store interfaces: an in-memory default plus swappable
// Redis- and Postgres-backed variants in subpackages. The in-memory store
// is the reference implementation — single-process and non-durable by
// design; everything is lost on restart.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/orchestration"
	"github.com/ignite/campaign-orchestrator/internal/performance"
)

// Memory implements orchestration.PlanStore, performance.SessionStore, and
// experiment.Store over process memory. Safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	plans       map[string]*domain.ExecutionPlan
	sessions    map[string]*domain.PerformanceSession
	experiments map[string]*domain.Experiment
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plans:       make(map[string]*domain.ExecutionPlan),
		sessions:    make(map[string]*domain.PerformanceSession),
		experiments: make(map[string]*domain.Experiment),
	}
}

// --- orchestration.PlanStore ---

func (m *Memory) SavePlan(_ context.Context, plan *domain.ExecutionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.PlanID] = copyPlan(plan)
	return nil
}

func (m *Memory) GetPlan(_ context.Context, planID string) (*domain.ExecutionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, orchestration.ErrNotFound
	}
	return copyPlan(plan), nil
}

func (m *Memory) DeletePlan(_ context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[planID]; !ok {
		return orchestration.ErrNotFound
	}
	delete(m.plans, planID)
	return nil
}

func (m *Memory) ListPlans(_ context.Context) ([]*domain.ExecutionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plans := make([]*domain.ExecutionPlan, 0, len(m.plans))
	for _, p := range m.plans {
		plans = append(plans, copyPlan(p))
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

// --- performance.SessionStore ---

func (m *Memory) SaveSession(_ context.Context, session *domain.PerformanceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.OrchestrationID] = copySession(session)
	return nil
}

func (m *Memory) GetSession(_ context.Context, orchestrationID string) (*domain.PerformanceSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[orchestrationID]
	if !ok {
		return nil, performance.ErrNotFound
	}
	return copySession(session), nil
}

func (m *Memory) DeleteSession(_ context.Context, orchestrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[orchestrationID]; !ok {
		return performance.ErrNotFound
	}
	delete(m.sessions, orchestrationID)
	return nil
}

// --- experiment.Store ---

func (m *Memory) CreateExperiment(_ context.Context, exp *domain.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.experiments[exp.TestID]; exists {
		return fmt.Errorf("experiment %s already exists", exp.TestID)
	}
	m.experiments[exp.TestID] = copyExperiment(exp)
	return nil
}

func (m *Memory) GetExperiment(_ context.Context, testID string) (*domain.Experiment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	exp, ok := m.experiments[testID]
	if !ok {
		return nil, experiment.ErrNotFound
	}
	return copyExperiment(exp), nil
}

// IncrementEvent applies one counter increment atomically under the store
// lock and re-derives the variant's rates from the new totals.
func (m *Memory) IncrementEvent(_ context.Context, testID, variantID string, event domain.ExperimentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[testID]
	if !ok {
		return experiment.ErrNotFound
	}
	result, ok := exp.Results.VariantResults[variantID]
	if !ok {
		return fmt.Errorf("%w: variant %s", experiment.ErrNotFound, variantID)
	}

	switch event {
	case domain.EventSent:
		result.Sent++
	case domain.EventDelivered:
		result.Delivered++
	case domain.EventOpened:
		result.Opened++
	case domain.EventClicked:
		result.Clicked++
	case domain.EventConverted:
		result.Converted++
	case domain.EventUnsubscribed:
		result.Unsubscribed++
	default:
		return fmt.Errorf("unknown experiment event %q", event)
	}
	result.RecomputeRates()
	return nil
}

// SaveAnalysis merges analysis output into the stored experiment. A
// previously stored winner is never cleared or replaced, and
// significanceReached never transitions back to false.
func (m *Memory) SaveAnalysis(_ context.Context, testID string, results domain.ExperimentResults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[testID]
	if !ok {
		return experiment.ErrNotFound
	}

	stored := &exp.Results
	for id, r := range results.VariantResults {
		existing, ok := stored.VariantResults[id]
		if !ok {
			continue
		}
		existing.ZScore = r.ZScore
		existing.PValue = r.PValue
		existing.Improvement = r.Improvement
		existing.Significant = r.Significant
	}
	if stored.Winner == "" {
		stored.Winner = results.Winner
	}
	stored.SignificanceReached = stored.SignificanceReached || results.SignificanceReached
	stored.AnalyzedAt = results.AnalyzedAt
	return nil
}

// --- deep copies ---

func copyPlan(p *domain.ExecutionPlan) *domain.ExecutionPlan {
	out := *p
	out.Channels = make([]domain.ChannelExecution, len(p.Channels))
	copy(out.Channels, p.Channels)
	out.Stages = make([]domain.StageInfo, len(p.Stages))
	copy(out.Stages, p.Stages)
	return &out
}

func copySession(s *domain.PerformanceSession) *domain.PerformanceSession {
	out := *s
	out.ChannelMetrics = make(map[domain.ChannelType]*domain.ChannelMetrics, len(s.ChannelMetrics))
	for k, v := range s.ChannelMetrics {
		m := *v
		out.ChannelMetrics[k] = &m
	}
	out.TimeSeries = make([]domain.MetricsSnapshot, len(s.TimeSeries))
	copy(out.TimeSeries, s.TimeSeries)
	out.Channels = make([]domain.TrackedChannel, len(s.Channels))
	copy(out.Channels, s.Channels)
	return &out
}

func copyExperiment(e *domain.Experiment) *domain.Experiment {
	out := *e
	out.Variants = make([]domain.Variant, len(e.Variants))
	copy(out.Variants, e.Variants)
	out.Results.VariantResults = make(map[string]*domain.VariantResult, len(e.Results.VariantResults))
	for k, v := range e.Results.VariantResults {
		r := *v
		out.Results.VariantResults[k] = &r
	}
	return &out
}
