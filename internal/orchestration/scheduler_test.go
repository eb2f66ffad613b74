package orchestration

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

func planWithDelays(planID string, delays ...time.Duration) *domain.ExecutionPlan {
	channels := make([]domain.ChannelExecution, len(delays))
	for i, d := range delays {
		channels[i] = domain.ChannelExecution{
			Channel: domain.ChannelSpec{Type: domain.ChannelSMS},
			Timing:  domain.ExecutionTiming{Delay: d},
			Order:   i,
		}
	}
	return &domain.ExecutionPlan{PlanID: planID, Type: domain.PlanSequential, Channels: channels}
}

type firedRecorder struct {
	mu    sync.Mutex
	fired []time.Duration
}

func (r *firedRecorder) record(exec domain.ChannelExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, exec.Timing.Delay)
}

func (r *firedRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestScheduler_SchedulesAllChannels(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(fake)
	rec := &firedRecorder{}

	res, err := s.Schedule(planWithDelays("plan-1", 0, 5*time.Minute, 10*time.Minute), rec.record)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ScheduledCount)

	// Nothing fires synchronously, even the zero-delay channel.
	assert.Equal(t, 0, rec.count())

	fake.Advance(0)
	assert.Equal(t, 1, rec.count())

	fake.Advance(5 * time.Minute)
	assert.Equal(t, 2, rec.count())

	fake.Advance(5 * time.Minute)
	assert.Equal(t, 3, rec.count())
}

func TestScheduler_StateTransitions(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(fake)
	rec := &firedRecorder{}

	_, err := s.Schedule(planWithDelays("plan-2", time.Minute, time.Hour), rec.record)
	require.NoError(t, err)

	statuses, err := s.Status("plan-2")
	require.NoError(t, err)
	assert.Equal(t, StateArmed, statuses[0].State)
	assert.Equal(t, StateArmed, statuses[1].State)

	fake.Advance(time.Minute)
	statuses, err = s.Status("plan-2")
	require.NoError(t, err)
	assert.Equal(t, StateFired, statuses[0].State)
	assert.Equal(t, StateArmed, statuses[1].State)
}

func TestScheduler_CancelClearsOutstandingTriggers(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(fake)
	rec := &firedRecorder{}

	_, err := s.Schedule(planWithDelays("plan-3", time.Minute, 2*time.Minute, 3*time.Minute), rec.record)
	require.NoError(t, err)

	fake.Advance(time.Minute)
	require.Equal(t, 1, rec.count())

	res, err := s.Cancel("plan-3")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CancelledTimers)

	// Cancelled triggers never fire.
	fake.Advance(time.Hour)
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_CancelUnknownPlan(t *testing.T) {
	s := NewScheduler(clock.NewFake(time.Now()))
	res, err := s.Cancel("no-such-plan")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, res.CancelledTimers)
}

func TestScheduler_CancelFullyFiredPlan(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(fake)
	rec := &firedRecorder{}

	_, err := s.Schedule(planWithDelays("plan-4", 0, time.Minute), rec.record)
	require.NoError(t, err)

	fake.Advance(time.Minute)
	require.Equal(t, 2, rec.count())

	// Everything has fired; cancel reports NotFound with zero cancelled,
	// and must not panic.
	res, err := s.Cancel("plan-4")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, res.CancelledTimers)
}

func TestScheduler_DuplicateSchedule(t *testing.T) {
	fake := clock.NewFake(time.Now())
	s := NewScheduler(fake)
	plan := planWithDelays("plan-5", time.Hour)

	_, err := s.Schedule(plan, func(domain.ChannelExecution) {})
	require.NoError(t, err)
	_, err = s.Schedule(plan, func(domain.ChannelExecution) {})
	assert.ErrorIs(t, err, ErrAlreadyScheduled)
}

func TestScheduler_CallbackPanicIsolated(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(fake)
	rec := &firedRecorder{}

	cb := func(exec domain.ChannelExecution) {
		if exec.Order == 0 {
			panic("boom")
		}
		rec.record(exec)
	}

	plan := planWithDelays("plan-6", time.Minute, 2*time.Minute)
	_, err := s.Schedule(plan, cb)
	require.NoError(t, err)

	// The first trigger panics; the second must still fire.
	fake.Advance(2 * time.Minute)
	assert.Equal(t, 1, rec.count())
}

func TestScheduler_StatusUnknownPlan(t *testing.T) {
	s := NewScheduler(clock.NewFake(time.Now()))
	_, err := s.Status("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
