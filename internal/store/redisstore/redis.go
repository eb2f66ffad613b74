// Package redisstore persists performance sessions and experiments in Redis
// so tracking and test state survive a process restart. Session snapshots are
// stored as JSON blobs; experiment counters live in per-variant hashes so
// event recording is a single atomic HINCRBY rather than a read-modify-write.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-orchestrator/internal/domain"
	"github.com/ignite/campaign-orchestrator/internal/experiment"
	"github.com/ignite/campaign-orchestrator/internal/performance"
)

const (
	sessionKeyPrefix    = "orchestration:session:"
	experimentDefPrefix = "experiment:def:"
	countsKeyPrefix     = "experiment:counts:"
	analysisKeyPrefix   = "experiment:analysis:"
	winnerKeyPrefix     = "experiment:winner:"
)

// Store implements performance.SessionStore and experiment.Store over a
// Redis client. Safe for concurrent use; all atomicity comes from Redis
// itself, so multiple processes can share one store.
type Store struct {
	client *redis.Client
}

// New wraps an existing Redis client. The caller owns the client's lifecycle.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// --- performance.SessionStore ---

func (s *Store) SaveSession(ctx context.Context, session *domain.PerformanceSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.OrchestrationID, err)
	}
	key := sessionKeyPrefix + session.OrchestrationID
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, orchestrationID string) (*domain.PerformanceSession, error) {
	key := sessionKeyPrefix + orchestrationID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, performance.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var session domain.PerformanceSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", orchestrationID, err)
	}
	return &session, nil
}

func (s *Store) DeleteSession(ctx context.Context, orchestrationID string) error {
	key := sessionKeyPrefix + orchestrationID
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	if deleted == 0 {
		return performance.ErrNotFound
	}
	return nil
}

// --- experiment.Store ---

// experimentDef is the immutable part of an experiment: everything except
// counters and analysis output, which live under their own keys.
type experimentDef struct {
	TestID        string                   `json:"test_id"`
	Name          string                   `json:"name"`
	PrimaryMetric domain.ExperimentMetric  `json:"primary_metric"`
	Variants      []domain.Variant         `json:"variants"`
	Statistics    domain.StatisticalConfig `json:"statistics"`
	CreatedAt     time.Time                `json:"created_at"`
}

// variantAnalysis is the per-variant slice of analysis output merged back
// into VariantResult on load.
type variantAnalysis struct {
	ZScore      float64 `json:"z_score"`
	PValue      float64 `json:"p_value"`
	Improvement float64 `json:"improvement"`
	Significant bool    `json:"significant"`
}

type analysisRecord struct {
	Variants            map[string]variantAnalysis `json:"variants"`
	SignificanceReached bool                       `json:"significance_reached"`
	AnalyzedAt          *time.Time                 `json:"analyzed_at,omitempty"`
}

func (s *Store) CreateExperiment(ctx context.Context, exp *domain.Experiment) error {
	def := experimentDef{
		TestID:        exp.TestID,
		Name:          exp.Name,
		PrimaryMetric: exp.PrimaryMetric,
		Variants:      exp.Variants,
		Statistics:    exp.Statistics,
		CreatedAt:     exp.CreatedAt,
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal experiment %s: %w", exp.TestID, err)
	}
	key := experimentDefPrefix + exp.TestID
	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	if !created {
		return fmt.Errorf("experiment %s already exists", exp.TestID)
	}
	return nil
}

func (s *Store) GetExperiment(ctx context.Context, testID string) (*domain.Experiment, error) {
	key := experimentDefPrefix + testID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, experiment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var def experimentDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal experiment %s: %w", testID, err)
	}

	exp := &domain.Experiment{
		TestID:        def.TestID,
		Name:          def.Name,
		PrimaryMetric: def.PrimaryMetric,
		Variants:      def.Variants,
		Statistics:    def.Statistics,
		Results:       domain.ExperimentResults{VariantResults: make(map[string]*domain.VariantResult, len(def.Variants))},
		CreatedAt:     def.CreatedAt,
	}
	for _, v := range def.Variants {
		result, err := s.loadCounts(ctx, testID, v.ID)
		if err != nil {
			return nil, err
		}
		exp.Results.VariantResults[v.ID] = result
	}
	if err := s.mergeAnalysis(ctx, testID, &exp.Results); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *Store) IncrementEvent(ctx context.Context, testID, variantID string, event domain.ExperimentEvent) error {
	// Validate the target before incrementing so unknown ids surface as
	// ErrNotFound instead of silently minting counter hashes.
	defKey := experimentDefPrefix + testID
	data, err := s.client.Get(ctx, defKey).Bytes()
	if err == redis.Nil {
		return experiment.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis GET %s: %w", defKey, err)
	}
	var def experimentDef
	if err := json.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("unmarshal experiment %s: %w", testID, err)
	}
	known := false
	for _, v := range def.Variants {
		if v.ID == variantID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: variant %s", experiment.ErrNotFound, variantID)
	}

	key := countsKey(testID, variantID)
	if err := s.client.HIncrBy(ctx, key, string(event), 1).Err(); err != nil {
		return fmt.Errorf("redis HINCRBY %s %s: %w", key, event, err)
	}
	return nil
}

// SaveAnalysis stores statistics for every variant and, when a winner is
// named, claims the winner key with SETNX so the first declaration wins and
// later analyses can never overwrite it.
func (s *Store) SaveAnalysis(ctx context.Context, testID string, results domain.ExperimentResults) error {
	defKey := experimentDefPrefix + testID
	exists, err := s.client.Exists(ctx, defKey).Result()
	if err != nil {
		return fmt.Errorf("redis EXISTS %s: %w", defKey, err)
	}
	if exists == 0 {
		return experiment.ErrNotFound
	}

	record := analysisRecord{
		Variants:            make(map[string]variantAnalysis, len(results.VariantResults)),
		SignificanceReached: results.SignificanceReached,
		AnalyzedAt:          results.AnalyzedAt,
	}
	for id, r := range results.VariantResults {
		record.Variants[id] = variantAnalysis{
			ZScore:      r.ZScore,
			PValue:      r.PValue,
			Improvement: r.Improvement,
			Significant: r.Significant,
		}
	}

	// significanceReached is sticky across analyses.
	prev, err := s.loadAnalysis(ctx, testID)
	if err != nil {
		return err
	}
	if prev != nil && prev.SignificanceReached {
		record.SignificanceReached = true
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal analysis %s: %w", testID, err)
	}
	analysisKey := analysisKeyPrefix + testID
	if err := s.client.Set(ctx, analysisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", analysisKey, err)
	}

	if results.Winner != "" {
		winnerKey := winnerKeyPrefix + testID
		if err := s.client.SetNX(ctx, winnerKey, results.Winner, 0).Err(); err != nil {
			return fmt.Errorf("redis SETNX %s: %w", winnerKey, err)
		}
	}
	return nil
}

func (s *Store) loadCounts(ctx context.Context, testID, variantID string) (*domain.VariantResult, error) {
	key := countsKey(testID, variantID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", key, err)
	}
	result := &domain.VariantResult{}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s.%s: %w", key, field, err)
		}
		switch domain.ExperimentEvent(field) {
		case domain.EventSent:
			result.Sent = n
		case domain.EventDelivered:
			result.Delivered = n
		case domain.EventOpened:
			result.Opened = n
		case domain.EventClicked:
			result.Clicked = n
		case domain.EventConverted:
			result.Converted = n
		case domain.EventUnsubscribed:
			result.Unsubscribed = n
		}
	}
	result.RecomputeRates()
	return result, nil
}

func (s *Store) loadAnalysis(ctx context.Context, testID string) (*analysisRecord, error) {
	key := analysisKeyPrefix + testID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var record analysisRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal analysis %s: %w", testID, err)
	}
	return &record, nil
}

func (s *Store) mergeAnalysis(ctx context.Context, testID string, results *domain.ExperimentResults) error {
	record, err := s.loadAnalysis(ctx, testID)
	if err != nil {
		return err
	}
	if record != nil {
		for id, a := range record.Variants {
			r, ok := results.VariantResults[id]
			if !ok {
				continue
			}
			r.ZScore = a.ZScore
			r.PValue = a.PValue
			r.Improvement = a.Improvement
			r.Significant = a.Significant
		}
		results.SignificanceReached = record.SignificanceReached
		results.AnalyzedAt = record.AnalyzedAt
	}

	winnerKey := winnerKeyPrefix + testID
	winner, err := s.client.Get(ctx, winnerKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis GET %s: %w", winnerKey, err)
	}
	results.Winner = winner
	return nil
}

func countsKey(testID, variantID string) string {
	return fmt.Sprintf("%s%s:%s", countsKeyPrefix, testID, variantID)
}
