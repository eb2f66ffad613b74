package performance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// MetricsFetcher is the collaborator the aggregator polls each cycle. It
// returns the counts accumulated since the previous fetch for the given
// provider campaign; fetches may fail transiently.
type MetricsFetcher interface {
	FetchChannelMetrics(ctx context.Context, channel domain.ChannelType, providerCampaignID string) (domain.ChannelMetrics, error)
}

// SessionStore persists tracking-session snapshots between cycles.
type SessionStore interface {
	SaveSession(ctx context.Context, session *domain.PerformanceSession) error
	GetSession(ctx context.Context, orchestrationID string) (*domain.PerformanceSession, error)
	DeleteSession(ctx context.Context, orchestrationID string) error
}

// Config holds the aggregator's tuning knobs.
type Config struct {
	// CollectionInterval is the recurring cycle interval.
	CollectionInterval time.Duration
	// HistoryLimit bounds the time-series ring buffer.
	HistoryLimit int
	// TrendWindow is how many recent snapshots the trend classifier reads.
	TrendWindow int
	// OverlapFraction is the assumed cross-channel audience overlap used by
	// the unique-reach estimate. An approximation, not contact-level
	// deduplication.
	OverlapFraction float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CollectionInterval: 5 * time.Minute,
		HistoryLimit:       100,
		TrendWindow:        10,
		OverlapFraction:    0.15,
	}
}

type trackingSession struct {
	mu      sync.Mutex
	session *domain.PerformanceSession
	ticker  clock.Ticker
	cancel  context.CancelFunc
	done    chan struct{}
}

// Aggregator runs tracking sessions. Safe for concurrent use.
type Aggregator struct {
	cfg     Config
	clk     clock.Clock
	fetcher MetricsFetcher
	store   SessionStore

	mu       sync.Mutex
	sessions map[string]*trackingSession // keyed by orchestration id
}

// NewAggregator creates an aggregator polling the given fetcher and
// persisting snapshots to the given store.
func NewAggregator(cfg Config, clk clock.Clock, fetcher MetricsFetcher, store SessionStore) *Aggregator {
	if cfg.CollectionInterval == 0 {
		cfg.CollectionInterval = 5 * time.Minute
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.TrendWindow == 0 {
		cfg.TrendWindow = 10
	}
	return &Aggregator{
		cfg:      cfg,
		clk:      clk,
		fetcher:  fetcher,
		store:    store,
		sessions: make(map[string]*trackingSession),
	}
}

// StartTracking creates a session for the orchestration, runs one immediate
// collection, then begins the recurring cycle. initial seeds per-channel
// running totals (e.g. counts already reported at send time).
func (a *Aggregator) StartTracking(ctx context.Context, orchestrationID string, channels []domain.TrackedChannel, initial map[domain.ChannelType]domain.ChannelMetrics) (string, error) {
	if orchestrationID == "" {
		return "", fmt.Errorf("%w: orchestration id is required", ErrInvalidSpec)
	}
	if len(channels) == 0 {
		return "", fmt.Errorf("%w: at least one channel is required", ErrInvalidSpec)
	}

	session := &domain.PerformanceSession{
		TrackingID:      uuid.NewString(),
		OrchestrationID: orchestrationID,
		Channels:        channels,
		ChannelMetrics:  make(map[domain.ChannelType]*domain.ChannelMetrics, len(channels)),
		Status:          domain.SessionActive,
		StartedAt:       a.clk.Now(),
	}
	for _, ch := range channels {
		m := &domain.ChannelMetrics{}
		if seed, ok := initial[ch.Type]; ok {
			m.Add(seed)
			m.RecomputeRates()
		}
		session.ChannelMetrics[ch.Type] = m
	}

	cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ts := &trackingSession{
		session: session,
		ticker:  a.clk.NewTicker(a.cfg.CollectionInterval),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	a.mu.Lock()
	if _, exists := a.sessions[orchestrationID]; exists {
		a.mu.Unlock()
		cancel()
		ts.ticker.Stop()
		return "", ErrAlreadyTracking
	}
	a.sessions[orchestrationID] = ts
	a.mu.Unlock()

	// Immediate first collection, then the recurring cycle. Cycles run on
	// one goroutine, so a cycle that outlasts the interval delays the next
	// tick instead of overlapping with it.
	a.collect(cycleCtx, ts)
	go a.run(cycleCtx, ts)

	log.Printf("[tracker] started session %s for orchestration %s (%d channels)",
		session.TrackingID, orchestrationID, len(channels))
	return session.TrackingID, nil
}

func (a *Aggregator) run(ctx context.Context, ts *trackingSession) {
	defer close(ts.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ts.ticker.Chan():
			a.collect(ctx, ts)
		}
	}
}

// collect runs one collection cycle: concurrent per-channel fetches, then a
// single aggregate update once every fetch has completed or failed. Partial
// results are never published mid-cycle.
func (a *Aggregator) collect(ctx context.Context, ts *trackingSession) {
	type fetchResult struct {
		channel domain.ChannelType
		metrics domain.ChannelMetrics
		err     error
	}

	ts.mu.Lock()
	channels := ts.session.Channels
	ts.mu.Unlock()

	results := make(chan fetchResult, len(channels))
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch domain.TrackedChannel) {
			defer wg.Done()
			m, err := a.fetcher.FetchChannelMetrics(ctx, ch.Type, ch.ProviderCampaignID)
			results <- fetchResult{channel: ch.Type, metrics: m, err: err}
		}(ch)
	}
	wg.Wait()
	close(results)

	ts.mu.Lock()
	session := ts.session
	for res := range results {
		if res.err != nil {
			// Isolated per-channel failure: totals simply do not advance
			// for this channel this cycle.
			log.Printf("[tracker] fetch failed for channel %s (orchestration %s): %v",
				res.channel, session.OrchestrationID, res.err)
			continue
		}
		m, ok := session.ChannelMetrics[res.channel]
		if !ok {
			continue
		}
		m.Add(res.metrics)
		m.RecomputeRates()
	}

	overall := domain.ChannelMetrics{}
	for _, m := range session.ChannelMetrics {
		overall.Add(*m)
	}
	overall.RecomputeRates()
	session.Overall = overall

	session.TimeSeries = append(session.TimeSeries, domain.MetricsSnapshot{
		Timestamp:      a.clk.Now(),
		TotalSent:      overall.Sent,
		TotalDelivered: overall.Delivered,
		DeliveryRate:   overall.DeliveryRate,
		OpenRate:       overall.OpenRate,
	})
	if len(session.TimeSeries) > a.cfg.HistoryLimit {
		session.TimeSeries = session.TimeSeries[len(session.TimeSeries)-a.cfg.HistoryLimit:]
	}
	snapshot := copySession(session)
	ts.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveSession(ctx, snapshot); err != nil {
			log.Printf("[tracker] save session %s: %v", snapshot.TrackingID, err)
		}
	}
}

// GetCurrentMetrics returns the session's current state with cross-channel
// summary and trend derived on demand.
func (a *Aggregator) GetCurrentMetrics(orchestrationID string) (*Report, error) {
	a.mu.Lock()
	ts, ok := a.sessions[orchestrationID]
	a.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	ts.mu.Lock()
	session := copySession(ts.session)
	ts.mu.Unlock()

	return &Report{
		Session: session,
		Summary: summarize(session, a.cfg.OverlapFraction),
		Trend:   classifyTrend(session.TimeSeries, a.cfg.TrendWindow),
	}, nil
}

// StopTracking halts the recurring cycle, marks the session stopped, and
// returns the final snapshot. Stopping an unknown or already-stopped
// session is a NotFound condition, not a fatal error.
func (a *Aggregator) StopTracking(ctx context.Context, orchestrationID string) (*domain.PerformanceSession, error) {
	a.mu.Lock()
	ts, ok := a.sessions[orchestrationID]
	if ok {
		delete(a.sessions, orchestrationID)
	}
	a.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	ts.cancel()
	ts.ticker.Stop()
	<-ts.done

	ts.mu.Lock()
	stoppedAt := a.clk.Now()
	ts.session.Status = domain.SessionStopped
	ts.session.StoppedAt = &stoppedAt
	final := copySession(ts.session)
	ts.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveSession(ctx, final); err != nil {
			log.Printf("[tracker] save final session %s: %v", final.TrackingID, err)
		}
	}
	log.Printf("[tracker] stopped session %s for orchestration %s", final.TrackingID, orchestrationID)
	return final, nil
}

// Shutdown stops every active session. Sessions are in-memory only; their
// live state is cleared on shutdown.
func (a *Aggregator) Shutdown(ctx context.Context) {
	a.mu.Lock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		if _, err := a.StopTracking(ctx, id); err != nil {
			log.Printf("[tracker] shutdown stop %s: %v", id, err)
		}
	}
}

// ActiveSessions returns the number of live tracking sessions.
func (a *Aggregator) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
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
