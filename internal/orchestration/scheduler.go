package orchestration

import (
	"log"
	"sync"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// ExecutionState is the lifecycle of one armed channel execution.
type ExecutionState string

const (
	StatePending   ExecutionState = "pending"
	StateArmed     ExecutionState = "armed"
	StateFired     ExecutionState = "fired"
	StateCancelled ExecutionState = "cancelled"
)

// ExecuteFunc is invoked when a channel execution's trigger fires. It runs
// on the trigger's own goroutine; one callback's panic never prevents other
// triggers from firing.
type ExecuteFunc func(domain.ChannelExecution)

// ScheduleResult reports how many triggers were armed for a plan.
type ScheduleResult struct {
	ScheduledCount int `json:"scheduled_count"`
}

// CancelResult reports how many outstanding triggers a cancel call cleared.
type CancelResult struct {
	CancelledTimers int `json:"cancelled_timers"`
}

type armedExecution struct {
	exec  domain.ChannelExecution
	state ExecutionState
	timer clock.Timer
}

type scheduledPlan struct {
	executions []*armedExecution
}

// Scheduler arms per-channel delayed triggers for built plans and exposes
// group cancellation by plan id. Triggers are independent per channel and
// may fire concurrently; cancellation is best-effort — a trigger already
// in flight may still complete.
type Scheduler struct {
	clk clock.Clock

	mu    sync.Mutex
	plans map[string]*scheduledPlan
}

// NewScheduler creates a scheduler on the given clock.
func NewScheduler(clk clock.Clock) *Scheduler {
	return &Scheduler{clk: clk, plans: make(map[string]*scheduledPlan)}
}

// Schedule arms one trigger per channel execution. Executions with zero
// delay fire on the next scheduling tick rather than synchronously in the
// caller's stack, to preserve fairness. Handles are stored keyed by plan id
// so Cancel can clear them as a group.
func (s *Scheduler) Schedule(plan *domain.ExecutionPlan, onExecute ExecuteFunc) (ScheduleResult, error) {
	if plan == nil || len(plan.Channels) == 0 {
		return ScheduleResult{}, ErrInvalidSpec
	}

	s.mu.Lock()
	if _, exists := s.plans[plan.PlanID]; exists {
		s.mu.Unlock()
		return ScheduleResult{}, ErrAlreadyScheduled
	}
	sp := &scheduledPlan{executions: make([]*armedExecution, 0, len(plan.Channels))}
	s.plans[plan.PlanID] = sp

	for _, exec := range plan.Channels {
		armed := &armedExecution{exec: exec, state: StatePending}
		sp.executions = append(sp.executions, armed)

		exec := exec
		armed.timer = s.clk.AfterFunc(exec.Timing.Delay, func() {
			s.fire(plan.PlanID, armed, onExecute)
		})
		armed.state = StateArmed
	}
	count := len(sp.executions)
	s.mu.Unlock()

	log.Printf("[scheduler] armed %d triggers for plan %s", count, plan.PlanID)
	return ScheduleResult{ScheduledCount: count}, nil
}

func (s *Scheduler) fire(planID string, armed *armedExecution, onExecute ExecuteFunc) {
	s.mu.Lock()
	if armed.state != StateArmed {
		s.mu.Unlock()
		return
	}
	armed.state = StateFired
	s.cleanupLocked(planID)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] execute callback panic for plan %s channel %s: %v",
				planID, armed.exec.Channel.Type, r)
		}
	}()
	onExecute(armed.exec)
}

// cleanupLocked drops the plan entry once every execution has reached a
// terminal state. Caller holds the lock.
func (s *Scheduler) cleanupLocked(planID string) {
	sp, ok := s.plans[planID]
	if !ok {
		return
	}
	for _, a := range sp.executions {
		if a.state == StatePending || a.state == StateArmed {
			return
		}
	}
	delete(s.plans, planID)
}

// Cancel clears every outstanding trigger for a plan and returns the count
// cancelled. An unknown or already-fully-fired plan is a NotFound condition
// with zero cancelled, not a fatal error.
func (s *Scheduler) Cancel(planID string) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.plans[planID]
	if !ok {
		return CancelResult{}, ErrNotFound
	}

	cancelled := 0
	for _, a := range sp.executions {
		if a.state != StateArmed {
			continue
		}
		if a.timer.Stop() {
			a.state = StateCancelled
			cancelled++
		}
	}
	s.cleanupLocked(planID)

	if cancelled == 0 {
		return CancelResult{}, ErrNotFound
	}
	log.Printf("[scheduler] cancelled %d triggers for plan %s", cancelled, planID)
	return CancelResult{CancelledTimers: cancelled}, nil
}

// ExecutionStatus is one channel execution's observable trigger state.
type ExecutionStatus struct {
	Channel domain.ChannelType `json:"channel"`
	State   ExecutionState     `json:"state"`
}

// Status returns the trigger states for a plan's executions. Plans whose
// executions have all reached a terminal state are dropped and report
// ErrNotFound.
func (s *Scheduler) Status(planID string) ([]ExecutionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.plans[planID]
	if !ok {
		return nil, ErrNotFound
	}
	statuses := make([]ExecutionStatus, 0, len(sp.executions))
	for _, a := range sp.executions {
		statuses = append(statuses, ExecutionStatus{Channel: a.exec.Channel.Type, State: a.state})
	}
	return statuses, nil
}
