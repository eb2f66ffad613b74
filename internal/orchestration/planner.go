package orchestration

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-orchestrator/internal/audience"
	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// PlannerConfig holds the planner's tuning knobs. Zero values fall back to
// the defaults below.
type PlannerConfig struct {
	// SequentialDelay is the default inter-channel delay for the
	// sequential strategy.
	SequentialDelay time.Duration
	// OptimalSequentialDelay is the longer inter-channel delay the optimal
	// decision tree uses when it falls back to sequential.
	OptimalSequentialDelay time.Duration
	// OptimalParallelDelay is the short start delay the optimal decision
	// tree uses when it falls back to parallel.
	OptimalParallelDelay time.Duration
	// LargeAudienceThreshold is the audience size above which the optimal
	// decision tree falls back to staged delivery.
	LargeAudienceThreshold int
	// StageSize is the approximate per-stage audience size for
	// auto-generated stages.
	StageSize int
	// StageDelay is the delay between auto-generated stages.
	StageDelay time.Duration
	// Costs is the duration-estimation table.
	Costs CostTable
}

// DefaultPlannerConfig returns the documented defaults.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		SequentialDelay:        5 * time.Minute,
		OptimalSequentialDelay: 15 * time.Minute,
		OptimalParallelDelay:   1 * time.Minute,
		LargeAudienceThreshold: 10000,
		StageSize:              5000,
		StageDelay:             10 * time.Minute,
		Costs:                  DefaultCostTable(),
	}
}

// StageRequest is one caller-supplied stage for the staged strategy.
// Channels are matched into the stage by explicit ChannelSpec.Stage index or
// by type membership in Channels.
type StageRequest struct {
	Delay    time.Duration        `json:"delay"`
	Channels []domain.ChannelType `json:"channels,omitempty"`
}

// PlanRequest is the input to BuildPlan.
type PlanRequest struct {
	Strategy string
	Channels []domain.ChannelSpec
	Audience domain.AudienceSlice
	// Stages is required for the staged strategy and ignored otherwise.
	Stages []StageRequest
}

// Planner builds execution plans. Safe for concurrent use; all state is
// read-only configuration.
type Planner struct {
	cfg PlannerConfig
	clk clock.Clock
	rng *rand.Rand
}

// NewPlanner creates a planner with the given configuration and clock.
// A nil rng seeds from the clock.
func NewPlanner(cfg PlannerConfig, clk clock.Clock, rng *rand.Rand) *Planner {
	if cfg.SequentialDelay == 0 {
		cfg.SequentialDelay = 5 * time.Minute
	}
	if cfg.OptimalSequentialDelay == 0 {
		cfg.OptimalSequentialDelay = 15 * time.Minute
	}
	if cfg.OptimalParallelDelay == 0 {
		cfg.OptimalParallelDelay = 1 * time.Minute
	}
	if cfg.LargeAudienceThreshold == 0 {
		cfg.LargeAudienceThreshold = 10000
	}
	if cfg.StageSize == 0 {
		cfg.StageSize = 5000
	}
	if cfg.StageDelay == 0 {
		cfg.StageDelay = 10 * time.Minute
	}
	if cfg.Costs == nil {
		cfg.Costs = DefaultCostTable()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, clk: clk, rng: rng}
}

// BuildPlan selects the named strategy and produces a timed plan of
// per-channel executions. The returned plan is immutable; changing timing
// requires building a new plan.
func (p *Planner) BuildPlan(req PlanRequest) (*domain.ExecutionPlan, error) {
	if !domain.ValidPlanType(req.Strategy) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, req.Strategy)
	}
	if len(req.Channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", ErrInvalidSpec)
	}

	createdAt := p.clk.Now()
	planType := domain.PlanType(req.Strategy)

	var (
		plan *domain.ExecutionPlan
		err  error
	)
	switch planType {
	case domain.PlanSequential:
		plan, err = p.buildSequential(req, createdAt, p.cfg.SequentialDelay)
	case domain.PlanParallel:
		plan, err = p.buildParallel(req, createdAt, 0)
	case domain.PlanStaged:
		plan, err = p.buildStaged(req, createdAt)
	case domain.PlanOptimal:
		plan, err = p.buildOptimal(req, createdAt)
	}
	if err != nil {
		return nil, err
	}

	plan.PlanID = uuid.NewString()
	plan.Type = planType
	if plan.ResolvedType == "" {
		plan.ResolvedType = planType
	}
	plan.CreatedAt = createdAt
	return plan, nil
}

// buildSequential schedules channels one after another. Channel i's delay is
// the cumulative sum of the prior channels' delays; each channel without an
// explicit delay contributes interDelay.
func (p *Planner) buildSequential(req PlanRequest, createdAt time.Time, interDelay time.Duration) (*domain.ExecutionPlan, error) {
	executions := make([]domain.ChannelExecution, 0, len(req.Channels))
	var cumulative time.Duration
	var total time.Duration

	for i, spec := range req.Channels {
		slice := audience.PrepareChannelAudience(req.Audience, spec, createdAt)
		estimated := EstimateDuration(p.cfg.Costs, spec.Type, slice.Size)

		executions = append(executions, domain.ChannelExecution{
			Channel: spec,
			Timing: domain.ExecutionTiming{
				Delay:             cumulative,
				ScheduledTime:     createdAt.Add(cumulative),
				EstimatedDuration: estimated,
			},
			Audience: slice,
			Order:    i,
		})
		if end := cumulative + estimated; end > total {
			total = end
		}

		step := interDelay
		if spec.Delay != nil {
			step = *spec.Delay
		}
		cumulative += step
	}

	return &domain.ExecutionPlan{Channels: executions, TotalDuration: total}, nil
}

// buildParallel schedules every channel at the same start delay.
func (p *Planner) buildParallel(req PlanRequest, createdAt time.Time, startDelay time.Duration) (*domain.ExecutionPlan, error) {
	executions := make([]domain.ChannelExecution, 0, len(req.Channels))
	var longest time.Duration

	for i, spec := range req.Channels {
		delay := startDelay
		if spec.Delay != nil {
			delay = *spec.Delay
		}
		slice := audience.PrepareChannelAudience(req.Audience, spec, createdAt)
		estimated := EstimateDuration(p.cfg.Costs, spec.Type, slice.Size)

		executions = append(executions, domain.ChannelExecution{
			Channel: spec,
			Timing: domain.ExecutionTiming{
				Delay:             delay,
				ScheduledTime:     createdAt.Add(delay),
				EstimatedDuration: estimated,
			},
			Audience: slice,
			Order:    i,
		})
		if end := delay + estimated; end > longest {
			longest = end
		}
	}

	return &domain.ExecutionPlan{Channels: executions, TotalDuration: longest}, nil
}

// buildStaged schedules caller-supplied stages. Stage k's absolute start is
// the cumulative delay of stages 0..k plus the cumulative max-duration of
// the prior stages.
func (p *Planner) buildStaged(req PlanRequest, createdAt time.Time) (*domain.ExecutionPlan, error) {
	if len(req.Stages) == 0 {
		return nil, fmt.Errorf("%w: staged strategy requires at least one stage", ErrInvalidSpec)
	}

	assigned, err := assignStages(req.Channels, req.Stages)
	if err != nil {
		return nil, err
	}

	var (
		executions []domain.ChannelExecution
		stages     []domain.StageInfo
		offset     time.Duration
		total      time.Duration
	)

	for k, stage := range req.Stages {
		offset += stage.Delay
		var maxDuration time.Duration
		var stageTypes []domain.ChannelType

		for _, idx := range assigned[k] {
			spec := req.Channels[idx]
			slice := audience.PrepareChannelAudience(req.Audience, spec, createdAt)
			estimated := EstimateDuration(p.cfg.Costs, spec.Type, slice.Size)

			executions = append(executions, domain.ChannelExecution{
				Channel: spec,
				Timing: domain.ExecutionTiming{
					Delay:             offset,
					ScheduledTime:     createdAt.Add(offset),
					EstimatedDuration: estimated,
				},
				Audience: slice,
				Stage:    k,
			})
			if estimated > maxDuration {
				maxDuration = estimated
			}
			stageTypes = append(stageTypes, spec.Type)
		}

		stages = append(stages, domain.StageInfo{
			Index:       k,
			Delay:       stage.Delay,
			StartOffset: offset,
			MaxDuration: maxDuration,
			Channels:    stageTypes,
		})
		total += stage.Delay + maxDuration
		offset += maxDuration
	}

	return &domain.ExecutionPlan{Channels: executions, Stages: stages, TotalDuration: total}, nil
}

// assignStages maps each channel index to a stage: an explicit Stage index
// wins, otherwise type membership in the stage's channel list. A channel
// that matches no stage rejects the whole request.
func assignStages(channels []domain.ChannelSpec, stages []StageRequest) (map[int][]int, error) {
	assigned := make(map[int][]int, len(stages))
	for i, spec := range channels {
		stage := -1
		if spec.Stage != nil {
			if *spec.Stage < 0 || *spec.Stage >= len(stages) {
				return nil, fmt.Errorf("%w: channel %s references stage %d of %d", ErrInvalidSpec, spec.Type, *spec.Stage, len(stages))
			}
			stage = *spec.Stage
		} else {
			for k, s := range stages {
				for _, t := range s.Channels {
					if t == spec.Type {
						stage = k
						break
					}
				}
				if stage >= 0 {
					break
				}
			}
		}
		if stage < 0 {
			return nil, fmt.Errorf("%w: channel %s is not assigned to any stage", ErrInvalidSpec, spec.Type)
		}
		assigned[stage] = append(assigned[stage], i)
	}
	return assigned, nil
}

// buildOptimal is a fixed decision tree, not a search:
//
//  1. instant (sms/mms) and slow (email) channels both present →
//     sequential with instant channels first and a longer inter-channel
//     delay, so short-form messages land before the slower content arrives;
//  2. audience above the large-audience threshold → staged delivery in
//     auto-generated chunks of ~StageSize contacts;
//  3. otherwise → parallel with a short fixed start delay.
//
// Downstream consumers depend on this exact ordering; do not replace it
// with a different heuristic without flagging the behavioral change.
func (p *Planner) buildOptimal(req PlanRequest, createdAt time.Time) (*domain.ExecutionPlan, error) {
	hasInstant, hasSlow := false, false
	for _, spec := range req.Channels {
		if spec.Type.IsInstant() {
			hasInstant = true
		}
		if spec.Type == domain.ChannelEmail {
			hasSlow = true
		}
	}

	if hasInstant && hasSlow {
		ordered := make([]domain.ChannelSpec, 0, len(req.Channels))
		for _, spec := range req.Channels {
			if spec.Type.IsInstant() {
				ordered = append(ordered, spec)
			}
		}
		for _, spec := range req.Channels {
			if !spec.Type.IsInstant() {
				ordered = append(ordered, spec)
			}
		}
		seq := req
		seq.Channels = ordered
		plan, err := p.buildSequential(seq, createdAt, p.cfg.OptimalSequentialDelay)
		if err != nil {
			return nil, err
		}
		plan.ResolvedType = domain.PlanSequential
		return plan, nil
	}

	if req.Audience.Size > p.cfg.LargeAudienceThreshold {
		plan, err := p.buildAutoStaged(req, createdAt)
		if err != nil {
			return nil, err
		}
		plan.ResolvedType = domain.PlanStaged
		return plan, nil
	}

	plan, err := p.buildParallel(req, createdAt, p.cfg.OptimalParallelDelay)
	if err != nil {
		return nil, err
	}
	plan.ResolvedType = domain.PlanParallel
	return plan, nil
}

// buildAutoStaged chunks a large audience into balanced stages of roughly
// StageSize contacts. Every channel sends in every stage, each stage to its
// own chunk. The first stage starts immediately; later stages wait
// StageDelay after the prior stage's longest channel finishes.
func (p *Planner) buildAutoStaged(req PlanRequest, createdAt time.Time) (*domain.ExecutionPlan, error) {
	stageCount := (req.Audience.Size + p.cfg.StageSize - 1) / p.cfg.StageSize
	if stageCount < 1 {
		stageCount = 1
	}
	chunks := audience.Partition(req.Audience, stageCount, p.rng)

	var (
		executions []domain.ChannelExecution
		stages     []domain.StageInfo
		offset     time.Duration
		total      time.Duration
	)

	for k, chunk := range chunks {
		var stageDelay time.Duration
		if k > 0 {
			stageDelay = p.cfg.StageDelay
		}
		offset += stageDelay

		var maxDuration time.Duration
		var stageTypes []domain.ChannelType
		for _, spec := range req.Channels {
			slice := audience.PrepareChannelAudience(chunk, spec, createdAt)
			estimated := EstimateDuration(p.cfg.Costs, spec.Type, slice.Size)

			executions = append(executions, domain.ChannelExecution{
				Channel: spec,
				Timing: domain.ExecutionTiming{
					Delay:             offset,
					ScheduledTime:     createdAt.Add(offset),
					EstimatedDuration: estimated,
				},
				Audience: slice,
				Stage:    k,
			})
			if estimated > maxDuration {
				maxDuration = estimated
			}
			stageTypes = append(stageTypes, spec.Type)
		}

		stages = append(stages, domain.StageInfo{
			Index:       k,
			Delay:       stageDelay,
			StartOffset: offset,
			MaxDuration: maxDuration,
			Channels:    stageTypes,
		})
		total += stageDelay + maxDuration
		offset += maxDuration
	}

	return &domain.ExecutionPlan{Channels: executions, Stages: stages, TotalDuration: total}, nil
}
