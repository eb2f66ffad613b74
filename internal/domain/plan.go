package domain

import "time"

// PlanType enumerates the recognized scheduling strategies.
type PlanType string

const (
	PlanSequential PlanType = "sequential"
	PlanParallel   PlanType = "parallel"
	PlanStaged     PlanType = "staged"
	PlanOptimal    PlanType = "optimal"
)

// ValidPlanType reports whether s names a recognized strategy.
func ValidPlanType(s string) bool {
	switch PlanType(s) {
	case PlanSequential, PlanParallel, PlanStaged, PlanOptimal:
		return true
	}
	return false
}

// ExecutionTiming places one channel execution on the plan's timeline.
// Delay is relative to plan creation; ScheduledTime is the absolute start.
type ExecutionTiming struct {
	Delay             time.Duration `json:"delay"`
	ScheduledTime     time.Time     `json:"scheduled_time"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// ChannelExecution is one channel's scheduled participation in a plan.
type ChannelExecution struct {
	Channel  ChannelSpec     `json:"channel"`
	Timing   ExecutionTiming `json:"timing"`
	Audience AudienceSlice   `json:"audience"`
	// Order is the channel's position for sequential plans; Stage is the
	// stage index for staged plans. Exactly one of them is meaningful per
	// plan type.
	Order int `json:"order"`
	Stage int `json:"stage"`
}

// StageInfo describes one stage of a staged plan.
type StageInfo struct {
	Index int `json:"index"`
	// Delay is the stage's own delay, applied after the prior stage's
	// channels have run.
	Delay time.Duration `json:"delay"`
	// StartOffset is the stage's absolute start relative to plan creation.
	StartOffset time.Duration `json:"start_offset"`
	// MaxDuration is the longest estimated channel duration within the stage.
	MaxDuration time.Duration `json:"max_duration"`
	Channels    []ChannelType `json:"channels"`
}

// ExecutionPlan is a concrete, timed execution plan across channels. It is
// immutable once built; changing timing requires building a new plan.
type ExecutionPlan struct {
	PlanID string   `json:"plan_id"`
	Type   PlanType `json:"type"`
	// ResolvedType records the strategy the optimal decision tree fell back
	// to. Equal to Type for the three explicit strategies.
	ResolvedType  PlanType           `json:"resolved_type"`
	Channels      []ChannelExecution `json:"channels"`
	Stages        []StageInfo        `json:"stages,omitempty"`
	TotalDuration time.Duration      `json:"total_duration"`
	CreatedAt     time.Time          `json:"created_at"`
}
