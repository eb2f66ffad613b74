package experiment_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/store"
)

func testAudience(n int) domain.AudienceSlice {
	contacts := make([]domain.Contact, n)
	for i := range contacts {
		contacts[i] = domain.Contact{
			ID:    fmt.Sprintf("c-%04d", i),
			Email: fmt.Sprintf("c-%04d@example.com", i),
		}
	}
	return domain.NewAudienceSlice(contacts, nil, nil)
}

func newTestEngine(t *testing.T, cfg experiment.Config, onWinner experiment.WinnerFunc) (*experiment.Engine, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rng := rand.New(rand.NewSource(1))
	return experiment.NewEngine(cfg, fake, store.NewMemory(), rng, onWinner), fake
}

func record(t *testing.T, eng *experiment.Engine, testID, variantID string, event domain.ExperimentEvent, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, eng.RecordEvent(context.Background(), testID, variantID, string(event)))
	}
}

func challengerID(t *testing.T, exp *domain.Experiment, name string) string {
	t.Helper()
	for _, v := range exp.Variants {
		if v.Name == name {
			return v.ID
		}
	}
	t.Fatalf("variant %q not found", name)
	return ""
}

func TestCreateExperiment_Validation(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		spec     experiment.Spec
		audience domain.AudienceSlice
	}{
		{
			name:     "missing name",
			spec:     experiment.Spec{PrimaryMetric: domain.MetricOpenRate, Variants: []experiment.VariantSpec{{Name: "B"}}},
			audience: testAudience(200),
		},
		{
			name:     "missing metric",
			spec:     experiment.Spec{Name: "subject test", Variants: []experiment.VariantSpec{{Name: "B"}}},
			audience: testAudience(200),
		},
		{
			name:     "no challengers",
			spec:     experiment.Spec{Name: "subject test", PrimaryMetric: domain.MetricOpenRate},
			audience: testAudience(200),
		},
		{
			name:     "audience below minimum sample size",
			spec:     experiment.Spec{Name: "subject test", PrimaryMetric: domain.MetricOpenRate, Variants: []experiment.VariantSpec{{Name: "B"}}},
			audience: testAudience(40),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.CreateExperiment(ctx, tt.spec, nil, tt.audience)
			assert.ErrorIs(t, err, experiment.ErrInvalidSpec)
		})
	}
}

func TestCreateExperiment_BalancedVariants(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	ctx := context.Background()

	spec := experiment.Spec{
		Name:          "subject line test",
		PrimaryMetric: domain.MetricOpenRate,
		Variants: []experiment.VariantSpec{
			{Name: "B", Content: map[string]string{"subject": "Don't miss out"}},
			{Name: "C", Content: map[string]string{"subject": "Last chance"}},
		},
	}
	testID, err := eng.CreateExperiment(ctx, spec, map[string]string{"subject": "Hello"}, testAudience(1003))
	require.NoError(t, err)

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	require.Len(t, exp.Variants, 3)

	// Control comes first, under the reserved id.
	assert.Equal(t, domain.ControlVariantID, exp.Variants[0].ID)
	assert.Equal(t, "Hello", exp.Variants[0].Content["subject"])

	// 1003 over 3 groups: one group of 335, two of 334, nothing lost.
	sizes := []int{exp.Variants[0].Audience.Size, exp.Variants[1].Audience.Size, exp.Variants[2].Audience.Size}
	total, shares := 0, 0.0
	for i, v := range exp.Variants {
		total += sizes[i]
		shares += v.TrafficShare
		assert.GreaterOrEqual(t, sizes[i], 334)
		assert.LessOrEqual(t, sizes[i], 335)
	}
	assert.Equal(t, 1003, total)
	assert.InDelta(t, 1.0, shares, 1e-9)

	assert.Greater(t, exp.Statistics.RequiredSampleSize, 0)
	assert.Empty(t, exp.Results.Winner)
	for _, r := range exp.Results.VariantResults {
		assert.Zero(t, r.Sent)
	}
}

func TestAnalyze_DeclaresSignificantWinner(t *testing.T) {
	var declared []string
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), func(testID, variantID string) {
		declared = append(declared, variantID)
	})
	ctx := context.Background()

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "cta test",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(2000))
	require.NoError(t, err)

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	bID := challengerID(t, exp, "B")

	// Control opens at 30%, challenger at 40% on n=1000 each.
	record(t, eng, testID, domain.ControlVariantID, domain.EventSent, 1000)
	record(t, eng, testID, domain.ControlVariantID, domain.EventOpened, 300)
	record(t, eng, testID, bID, domain.EventSent, 1000)
	record(t, eng, testID, bID, domain.EventOpened, 400)

	results, err := eng.Analyze(ctx, testID)
	require.NoError(t, err)

	b := results.VariantResults[bID]
	require.NotNil(t, b)
	assert.True(t, b.Significant)
	assert.Greater(t, b.ZScore, 4.0)
	assert.Less(t, b.PValue, 0.05)
	assert.InDelta(t, 33.33, b.Improvement, 0.1)

	assert.Equal(t, bID, results.Winner)
	assert.True(t, results.SignificanceReached)
	require.NotNil(t, results.AnalyzedAt)
	assert.Equal(t, []string{bID}, declared)

	// The winner persisted too.
	exp, err = eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, bID, exp.Results.Winner)
}

func TestAnalyze_NoWinnerWithoutSignificance(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	ctx := context.Background()

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "close race",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(400))
	require.NoError(t, err)

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	bID := challengerID(t, exp, "B")

	// 30% vs 32% on n=100 is noise.
	record(t, eng, testID, domain.ControlVariantID, domain.EventSent, 100)
	record(t, eng, testID, domain.ControlVariantID, domain.EventOpened, 30)
	record(t, eng, testID, bID, domain.EventSent, 100)
	record(t, eng, testID, bID, domain.EventOpened, 32)

	results, err := eng.Analyze(ctx, testID)
	require.NoError(t, err)
	assert.False(t, results.VariantResults[bID].Significant)
	assert.Empty(t, results.Winner)
	assert.False(t, results.SignificanceReached)
}

func TestAnalyze_WinnerIsTerminal(t *testing.T) {
	winnerCalls := 0
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), func(string, string) { winnerCalls++ })
	ctx := context.Background()

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "terminal winner",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(2000))
	require.NoError(t, err)

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	bID := challengerID(t, exp, "B")

	record(t, eng, testID, domain.ControlVariantID, domain.EventSent, 1000)
	record(t, eng, testID, domain.ControlVariantID, domain.EventOpened, 300)
	record(t, eng, testID, bID, domain.EventSent, 1000)
	record(t, eng, testID, bID, domain.EventOpened, 400)

	results, err := eng.Analyze(ctx, testID)
	require.NoError(t, err)
	require.Equal(t, bID, results.Winner)
	require.Equal(t, 1, winnerCalls)

	// Late opens push control ahead; the declared winner must survive.
	record(t, eng, testID, domain.ControlVariantID, domain.EventOpened, 600)

	results, err = eng.Analyze(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, bID, results.Winner)
	assert.True(t, results.SignificanceReached)
	assert.Equal(t, 1, winnerCalls)

	exp, err = eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, bID, exp.Results.Winner)
}

func TestRecordEvent_Validation(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	ctx := context.Background()

	err := eng.RecordEvent(ctx, "any", domain.ControlVariantID, "bogus")
	assert.ErrorIs(t, err, experiment.ErrInvalidSpec)

	err = eng.RecordEvent(ctx, "no-such-test", domain.ControlVariantID, string(domain.EventSent))
	assert.ErrorIs(t, err, experiment.ErrNotFound)

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "events",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(200))
	require.NoError(t, err)

	err = eng.RecordEvent(ctx, testID, "no-such-variant", string(domain.EventSent))
	assert.ErrorIs(t, err, experiment.ErrNotFound)
}

func TestRecordEvent_ConcurrentIncrements(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	ctx := context.Background()

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "concurrency",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(500))
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := eng.RecordEvent(ctx, testID, domain.ControlVariantID, string(domain.EventSent)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), exp.ControlResult().Sent)
}

func TestRecordEvent_AutoAnalysisGating(t *testing.T) {
	cfg := experiment.DefaultConfig()
	cfg.MinSampleSize = 100
	cfg.MinDuration = time.Hour

	eng, fake := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	testID, err := eng.CreateExperiment(ctx, experiment.Spec{
		Name:          "auto analysis",
		PrimaryMetric: domain.MetricOpenRate,
		Variants:      []experiment.VariantSpec{{Name: "B"}},
	}, nil, testAudience(2200))
	require.NoError(t, err)

	exp, err := eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	bID := challengerID(t, exp, "B")

	record(t, eng, testID, domain.ControlVariantID, domain.EventSent, 1000)
	record(t, eng, testID, domain.ControlVariantID, domain.EventOpened, 300)
	record(t, eng, testID, bID, domain.EventSent, 1000)
	record(t, eng, testID, bID, domain.EventOpened, 400)

	// Sample size is satisfied but the minimum duration is not.
	exp, err = eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	assert.Nil(t, exp.Results.AnalyzedAt)

	fake.Advance(2 * time.Hour)
	require.NoError(t, eng.RecordEvent(ctx, testID, bID, string(domain.EventOpened)))

	exp, err = eng.GetExperiment(ctx, testID)
	require.NoError(t, err)
	require.NotNil(t, exp.Results.AnalyzedAt)
	assert.Equal(t, bID, exp.Results.Winner)
}

func TestAnalyze_UnknownExperiment(t *testing.T) {
	eng, _ := newTestEngine(t, experiment.DefaultConfig(), nil)
	_, err := eng.Analyze(context.Background(), "missing")
	assert.True(t, errors.Is(err, experiment.ErrNotFound))
}
