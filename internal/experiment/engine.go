package experiment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-orchestrator/internal/audience"
	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// Store persists experiments. IncrementEvent must apply each increment
// atomically; concurrent RecordEvent calls for the same test must never
// interleave reads with another call's write to the same counter.
// SaveAnalysis must never clear a previously stored winner.
type Store interface {
	CreateExperiment(ctx context.Context, exp *domain.Experiment) error
	GetExperiment(ctx context.Context, testID string) (*domain.Experiment, error)
	IncrementEvent(ctx context.Context, testID, variantID string, event domain.ExperimentEvent) error
	SaveAnalysis(ctx context.Context, testID string, results domain.ExperimentResults) error
}

// Config holds the engine's statistical tuning knobs. The constants are
// configuration, not hard science; see the package doc.
type Config struct {
	// MinSampleSize rejects experiments whose audience cannot reach a
	// meaningful read, and gates auto-analysis.
	MinSampleSize int
	// ConfidenceLevel drives the zα constant (default 0.95).
	ConfidenceLevel float64
	// SignificanceThreshold is the p-value below which a variant is
	// significant (default 0.05).
	SignificanceThreshold float64
	// BaselineRate is the assumed baseline conversion rate p in the
	// sample-size formula.
	BaselineRate float64
	// ExpectedImprovement is the detectable difference δ in the
	// sample-size formula.
	ExpectedImprovement float64
	// Power drives the zβ constant (default 0.80).
	Power float64
	// MinDuration is how long an experiment must run before auto-analysis
	// triggers.
	MinDuration time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:         100,
		ConfidenceLevel:       0.95,
		SignificanceThreshold: 0.05,
		BaselineRate:          0.10,
		ExpectedImprovement:   0.02,
		Power:                 0.80,
		MinDuration:           48 * time.Hour,
	}
}

// VariantSpec defines one challenger variant at creation time.
type VariantSpec struct {
	Name    string            `json:"name"`
	Content map[string]string `json:"content,omitempty"`
}

// Spec is the input to CreateExperiment.
type Spec struct {
	Name          string                  `json:"name"`
	PrimaryMetric domain.ExperimentMetric `json:"primary_metric"`
	// Variants are the challengers; the control is supplied separately.
	Variants []VariantSpec `json:"variants"`
}

// WinnerFunc is invoked once when an experiment declares a winner, e.g. to
// shift remaining traffic to the winning content.
type WinnerFunc func(testID, variantID string)

// Engine manages experiments. RecordEvent is safe to call concurrently from
// multiple delivery-callback contexts; Analyze tolerates a slightly stale
// snapshot of counts rather than locking writers out.
type Engine struct {
	cfg      Config
	clk      clock.Clock
	store    Store
	rng      *rand.Rand
	onWinner WinnerFunc

	// analyzeMu serializes winner declaration so two concurrent analyses
	// cannot both declare.
	analyzeMu sync.Mutex
}

// NewEngine creates an experiment engine. onWinner may be nil. A nil rng
// seeds from the clock.
func NewEngine(cfg Config, clk clock.Clock, store Store, rng *rand.Rand, onWinner WinnerFunc) *Engine {
	if cfg.MinSampleSize == 0 {
		cfg.MinSampleSize = 100
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = 0.95
	}
	if cfg.SignificanceThreshold == 0 {
		cfg.SignificanceThreshold = 0.05
	}
	if cfg.BaselineRate == 0 {
		cfg.BaselineRate = 0.10
	}
	if cfg.ExpectedImprovement == 0 {
		cfg.ExpectedImprovement = 0.02
	}
	if cfg.Power == 0 {
		cfg.Power = 0.80
	}
	if cfg.MinDuration == 0 {
		cfg.MinDuration = 48 * time.Hour
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(clk.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, clk: clk, store: store, rng: rng, onWinner: onWinner}
}

// CreateExperiment validates the spec, partitions the audience into
// balanced, randomly shuffled variant groups (control first), and persists
// the experiment.
func (e *Engine) CreateExperiment(ctx context.Context, spec Spec, controlContent map[string]string, aud domain.AudienceSlice) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if spec.PrimaryMetric == "" {
		return "", fmt.Errorf("%w: primary metric is required", ErrInvalidSpec)
	}
	if len(spec.Variants) == 0 {
		return "", fmt.Errorf("%w: at least one challenger variant is required", ErrInvalidSpec)
	}
	if aud.Size < e.cfg.MinSampleSize {
		return "", fmt.Errorf("%w: audience size %d is below the minimum sample size %d",
			ErrInvalidSpec, aud.Size, e.cfg.MinSampleSize)
	}

	variantCount := len(spec.Variants) + 1
	groups := audience.Partition(aud, variantCount, e.rng)

	variants := make([]domain.Variant, 0, variantCount)
	results := make(map[string]*domain.VariantResult, variantCount)

	control := domain.Variant{
		ID:           domain.ControlVariantID,
		Name:         "Control",
		Content:      controlContent,
		Audience:     groups[0],
		TrafficShare: share(groups[0].Size, aud.Size),
	}
	variants = append(variants, control)
	results[control.ID] = &domain.VariantResult{}

	for i, vs := range spec.Variants {
		v := domain.Variant{
			ID:           uuid.NewString(),
			Name:         vs.Name,
			Content:      vs.Content,
			Audience:     groups[i+1],
			TrafficShare: share(groups[i+1].Size, aud.Size),
		}
		variants = append(variants, v)
		results[v.ID] = &domain.VariantResult{}
	}

	exp := &domain.Experiment{
		TestID:        uuid.NewString(),
		Name:          spec.Name,
		PrimaryMetric: spec.PrimaryMetric,
		Variants:      variants,
		Statistics: domain.StatisticalConfig{
			ConfidenceLevel:       e.cfg.ConfidenceLevel,
			SignificanceThreshold: e.cfg.SignificanceThreshold,
			RequiredSampleSize: RequiredSampleSize(
				e.cfg.BaselineRate, e.cfg.ExpectedImprovement, e.cfg.ConfidenceLevel, e.cfg.Power),
		},
		Results:   domain.ExperimentResults{VariantResults: results},
		CreatedAt: e.clk.Now(),
	}

	if err := e.store.CreateExperiment(ctx, exp); err != nil {
		return "", err
	}
	log.Printf("[experiment] created %s (%q, %d variants, required n=%d)",
		exp.TestID, exp.Name, variantCount, exp.Statistics.RequiredSampleSize)
	return exp.TestID, nil
}

func share(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// RecordEvent increments the named counter for a variant and re-derives its
// rates. Once the experiment has run its minimum duration and total sends
// meet the minimum sample size, analysis triggers automatically.
func (e *Engine) RecordEvent(ctx context.Context, testID, variantID string, eventType string) error {
	if !domain.ValidExperimentEvent(eventType) {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidSpec, eventType)
	}
	if err := e.store.IncrementEvent(ctx, testID, variantID, domain.ExperimentEvent(eventType)); err != nil {
		return err
	}

	exp, err := e.store.GetExperiment(ctx, testID)
	if err != nil {
		return err
	}
	if e.clk.Now().Sub(exp.CreatedAt) >= e.cfg.MinDuration && exp.TotalSent() >= int64(e.cfg.MinSampleSize) {
		if _, err := e.Analyze(ctx, testID); err != nil {
			log.Printf("[experiment] auto-analysis for %s: %v", testID, err)
		}
	}
	return nil
}

// GetExperiment returns the experiment's current state.
func (e *Engine) GetExperiment(ctx context.Context, testID string) (*domain.Experiment, error) {
	return e.store.GetExperiment(ctx, testID)
}

// Analyze runs the two-proportion z-test for every challenger against the
// control on the experiment's primary metric. The winner is the significant
// variant with the greatest positive improvement; once set it is terminal
// and re-analysis never overwrites it.
func (e *Engine) Analyze(ctx context.Context, testID string) (*domain.ExperimentResults, error) {
	e.analyzeMu.Lock()
	defer e.analyzeMu.Unlock()

	exp, err := e.store.GetExperiment(ctx, testID)
	if err != nil {
		return nil, err
	}

	results := exp.Results
	control := exp.ControlResult()
	if control == nil {
		return nil, fmt.Errorf("%w: experiment %s has no control result", ErrNotFound, testID)
	}
	controlRate, controlSuccesses, controlTrials := control.Rate(exp.PrimaryMetric)

	bestImprovement := 0.0
	bestVariant := ""

	for _, v := range exp.Variants {
		if v.ID == domain.ControlVariantID {
			continue
		}
		r, ok := results.VariantResults[v.ID]
		if !ok {
			continue
		}
		variantRate, successes, trials := r.Rate(exp.PrimaryMetric)

		z := TwoProportionZ(controlSuccesses, controlTrials, successes, trials)
		p := PValueTwoTailed(z)
		r.ZScore = z
		r.PValue = p
		r.Significant = trials > 0 && controlTrials > 0 && p < exp.Statistics.SignificanceThreshold
		if controlRate > 0 {
			r.Improvement = (variantRate - controlRate) / controlRate * 100
		} else {
			r.Improvement = 0
		}

		if r.Significant && r.Improvement > bestImprovement {
			bestImprovement = r.Improvement
			bestVariant = v.ID
		}
	}

	// Winner is terminal: a prior declaration survives every re-analysis,
	// and significanceReached only ever transitions false→true.
	declared := false
	if results.Winner == "" && bestVariant != "" {
		results.Winner = bestVariant
		results.SignificanceReached = true
		declared = true
	} else if bestVariant != "" {
		results.SignificanceReached = true
	}

	now := e.clk.Now()
	results.AnalyzedAt = &now
	if err := e.store.SaveAnalysis(ctx, testID, results); err != nil {
		return nil, err
	}

	if declared {
		log.Printf("[experiment] %s declared winner %s (+%.1f%% on %s)",
			testID, results.Winner, bestImprovement, exp.PrimaryMetric)
		if e.onWinner != nil {
			e.onWinner(testID, results.Winner)
		}
	}
	return &results, nil
}
