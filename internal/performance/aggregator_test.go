package performance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// fakeFetcher replays queued per-channel responses. Once a channel's queue
// is exhausted it returns zero counts.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[domain.ChannelType][]fetchReply
}

type fetchReply struct {
	metrics domain.ChannelMetrics
	err     error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: make(map[domain.ChannelType][]fetchReply)}
}

func (f *fakeFetcher) queue(ch domain.ChannelType, m domain.ChannelMetrics, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[ch] = append(f.responses[ch], fetchReply{metrics: m, err: err})
}

func (f *fakeFetcher) FetchChannelMetrics(_ context.Context, ch domain.ChannelType, _ string) (domain.ChannelMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.responses[ch]
	if len(queue) == 0 {
		return domain.ChannelMetrics{}, nil
	}
	reply := queue[0]
	f.responses[ch] = queue[1:]
	return reply.metrics, reply.err
}

func trackedChannels(types ...domain.ChannelType) []domain.TrackedChannel {
	out := make([]domain.TrackedChannel, len(types))
	for i, tp := range types {
		out[i] = domain.TrackedChannel{Type: tp, ProviderCampaignID: "prov-" + string(tp)}
	}
	return out
}

func newTestAggregator(fetcher MetricsFetcher) (*Aggregator, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.HistoryLimit = 5
	return NewAggregator(cfg, fake, fetcher, nil), fake
}

func snapshotCount(a *Aggregator, orchID string) int {
	report, err := a.GetCurrentMetrics(orchID)
	if err != nil {
		return -1
	}
	return len(report.Session.TimeSeries)
}

func TestStartTracking_Validation(t *testing.T) {
	a, _ := newTestAggregator(newFakeFetcher())

	_, err := a.StartTracking(context.Background(), "", trackedChannels(domain.ChannelSMS), nil)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = a.StartTracking(context.Background(), "orch-1", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestStartTracking_ImmediateCollection(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.queue(domain.ChannelSMS, domain.ChannelMetrics{Sent: 100, Delivered: 95, Opened: 40}, nil)
	a, _ := newTestAggregator(fetcher)
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)

	report, err := a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)
	sms := report.Session.ChannelMetrics[domain.ChannelSMS]
	require.NotNil(t, sms)
	assert.Equal(t, int64(100), sms.Sent)
	assert.Equal(t, int64(95), sms.Delivered)
	assert.InDelta(t, 0.95, sms.DeliveryRate, 1e-9)
	assert.Len(t, report.Session.TimeSeries, 1)
}

func TestStartTracking_SeedsInitialCounts(t *testing.T) {
	a, _ := newTestAggregator(newFakeFetcher())
	defer a.Shutdown(context.Background())

	initial := map[domain.ChannelType]domain.ChannelMetrics{
		domain.ChannelEmail: {Sent: 500, Delivered: 480},
	}
	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelEmail), initial)
	require.NoError(t, err)

	report, err := a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)
	email := report.Session.ChannelMetrics[domain.ChannelEmail]
	assert.Equal(t, int64(500), email.Sent)
	assert.Equal(t, int64(480), email.Delivered)
}

func TestStartTracking_Duplicate(t *testing.T) {
	a, _ := newTestAggregator(newFakeFetcher())
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)
	_, err = a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	assert.ErrorIs(t, err, ErrAlreadyTracking)
}

func TestGetCurrentMetrics_ZeroCountsYieldZeroRates(t *testing.T) {
	a, _ := newTestAggregator(newFakeFetcher())
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS, domain.ChannelEmail), nil)
	require.NoError(t, err)

	report, err := a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)

	assert.Zero(t, report.Summary.DeliveryRate)
	assert.Zero(t, report.Summary.EngagementRate)
	assert.Zero(t, report.Summary.BounceRate)
	for _, m := range report.Session.ChannelMetrics {
		assert.Zero(t, m.DeliveryRate)
		assert.Zero(t, m.OpenRate)
		assert.Zero(t, m.ClickRate)
		assert.Zero(t, m.BounceRate)
	}
}

func TestCollection_MergesAdditivelyAndMonotonically(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.queue(domain.ChannelSMS, domain.ChannelMetrics{Sent: 100, Delivered: 90}, nil)
	fetcher.queue(domain.ChannelSMS, domain.ChannelMetrics{Sent: 50, Delivered: 45}, nil)
	a, fake := newTestAggregator(fetcher)
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)

	report, err := a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)
	firstSent := report.Session.ChannelMetrics[domain.ChannelSMS].Sent
	assert.Equal(t, int64(100), firstSent)

	fake.Advance(5 * time.Minute)
	require.Eventually(t, func() bool {
		return snapshotCount(a, "orch-1") >= 2
	}, time.Second, 5*time.Millisecond)

	report, err = a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)
	sms := report.Session.ChannelMetrics[domain.ChannelSMS]
	assert.Equal(t, int64(150), sms.Sent)
	assert.Equal(t, int64(135), sms.Delivered)
	assert.GreaterOrEqual(t, sms.Sent, firstSent, "totals never reset")
}

func TestCollection_PartialFailureIsolation(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.queue(domain.ChannelSMS, domain.ChannelMetrics{}, errors.New("provider 503"))
	fetcher.queue(domain.ChannelEmail, domain.ChannelMetrics{Sent: 200, Delivered: 190}, nil)
	a, _ := newTestAggregator(fetcher)
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS, domain.ChannelEmail), nil)
	require.NoError(t, err)

	report, err := a.GetCurrentMetrics("orch-1")
	require.NoError(t, err)

	// The failed channel's totals do not advance; the sibling's do.
	assert.Zero(t, report.Session.ChannelMetrics[domain.ChannelSMS].Sent)
	assert.Equal(t, int64(200), report.Session.ChannelMetrics[domain.ChannelEmail].Sent)
}

func TestCollection_RingBufferBounded(t *testing.T) {
	a, fake := newTestAggregator(newFakeFetcher())
	defer a.Shutdown(context.Background())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		fake.Advance(5 * time.Minute)
		want := i + 2
		if want > 5 {
			want = 5
		}
		require.Eventually(t, func() bool {
			return snapshotCount(a, "orch-1") >= want
		}, time.Second, 5*time.Millisecond)
	}

	assert.Equal(t, 5, snapshotCount(a, "orch-1"), "history is bounded to the configured limit")
}

func TestStopTracking_ReturnsFinalSnapshotAndIsTerminal(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.queue(domain.ChannelSMS, domain.ChannelMetrics{Sent: 10, Delivered: 9}, nil)
	a, _ := newTestAggregator(fetcher)

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)

	final, err := a.StopTracking(context.Background(), "orch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStopped, final.Status)
	require.NotNil(t, final.StoppedAt)
	assert.Equal(t, int64(10), final.ChannelMetrics[domain.ChannelSMS].Sent)

	_, err = a.StopTracking(context.Background(), "orch-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = a.GetCurrentMetrics("orch-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShutdown_StopsAllSessions(t *testing.T) {
	a, _ := newTestAggregator(newFakeFetcher())

	_, err := a.StartTracking(context.Background(), "orch-1", trackedChannels(domain.ChannelSMS), nil)
	require.NoError(t, err)
	_, err = a.StartTracking(context.Background(), "orch-2", trackedChannels(domain.ChannelEmail), nil)
	require.NoError(t, err)
	require.Equal(t, 2, a.ActiveSessions())

	a.Shutdown(context.Background())
	assert.Equal(t, 0, a.ActiveSessions())
}
