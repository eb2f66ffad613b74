package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// Stub simulates a delivery provider. Sends are accepted immediately and
// activity ramps up deterministically over the ramp duration. Each fetch
// reports only the counts accrued since the previous fetch, matching the
// delta contract the tracker's merge expects. Engagement rates are seeded
// from the campaign id, which keeps separate campaigns distinguishable in
// demos without any randomness between polls.
type Stub struct {
	clk  clock.Clock
	ramp time.Duration

	mu        sync.Mutex
	campaigns map[string]*stubCampaign
}

type stubCampaign struct {
	channel    domain.ChannelType
	recipients int
	acceptedAt time.Time
	seed       uint64
	reported   domain.ChannelMetrics // cumulative counts already handed out
}

// NewStub creates a stub provider whose campaigns fully deliver over ramp.
// A zero ramp defaults to 10 minutes.
func NewStub(clk clock.Clock, ramp time.Duration) *Stub {
	if ramp <= 0 {
		ramp = 10 * time.Minute
	}
	return &Stub{clk: clk, ramp: ramp, campaigns: make(map[string]*stubCampaign)}
}

// SendViaChannel accepts the audience and registers a simulated campaign.
func (s *Stub) SendViaChannel(_ context.Context, channel domain.ChannelType, audience domain.AudienceSlice, _ map[string]string) (DeliveryHandle, error) {
	if audience.Size <= 0 {
		return DeliveryHandle{}, fmt.Errorf("empty audience for channel %s", channel)
	}

	id := uuid.NewString()
	h := fnv.New64a()
	h.Write([]byte(id))

	now := s.clk.Now()
	s.mu.Lock()
	s.campaigns[id] = &stubCampaign{
		channel:    channel,
		recipients: audience.Size,
		acceptedAt: now,
		seed:       h.Sum64(),
	}
	s.mu.Unlock()

	return DeliveryHandle{
		ProviderCampaignID: id,
		Channel:            channel,
		Recipients:         audience.Size,
		AcceptedAt:         now,
	}, nil
}

// FetchChannelMetrics returns the counts accrued since the previous fetch
// for this campaign. The underlying cumulative counters never decrease, so
// deltas are always nonnegative.
func (s *Stub) FetchChannelMetrics(_ context.Context, channel domain.ChannelType, providerCampaignID string) (domain.ChannelMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[providerCampaignID]
	if !ok {
		return domain.ChannelMetrics{}, fmt.Errorf("unknown provider campaign %s", providerCampaignID)
	}
	if c.channel != channel {
		return domain.ChannelMetrics{}, fmt.Errorf("campaign %s is a %s send, not %s", providerCampaignID, c.channel, channel)
	}

	total := s.cumulative(c)
	delta := domain.ChannelMetrics{
		Sent:         total.Sent - c.reported.Sent,
		Delivered:    total.Delivered - c.reported.Delivered,
		Bounced:      total.Bounced - c.reported.Bounced,
		Opened:       total.Opened - c.reported.Opened,
		Clicked:      total.Clicked - c.reported.Clicked,
		Replied:      total.Replied - c.reported.Replied,
		Unsubscribed: total.Unsubscribed - c.reported.Unsubscribed,
	}
	c.reported = total
	return delta, nil
}

// cumulative computes the campaign's counters as of the clock's now.
func (s *Stub) cumulative(c *stubCampaign) domain.ChannelMetrics {
	elapsed := s.clk.Now().Sub(c.acceptedAt)
	progress := float64(elapsed) / float64(s.ramp)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	sent := int64(float64(c.recipients) * progress)
	m := domain.ChannelMetrics{
		Sent:      sent,
		Delivered: scale(sent, 0.90+rateJitter(c.seed, 0, 0.08)),
	}
	m.Opened = scale(m.Delivered, 0.20+rateJitter(c.seed, 1, 0.25))
	m.Clicked = scale(m.Opened, 0.10+rateJitter(c.seed, 2, 0.20))
	m.Replied = scale(m.Delivered, rateJitter(c.seed, 3, 0.02))
	m.Bounced = sent - m.Delivered
	m.Unsubscribed = scale(m.Delivered, rateJitter(c.seed, 4, 0.005))
	return m
}

func scale(n int64, rate float64) int64 {
	return int64(float64(n) * rate)
}

// rateJitter derives a stable fraction of maxSpread from the campaign seed,
// so each campaign gets its own fixed rates.
func rateJitter(seed uint64, slot uint64, maxSpread float64) float64 {
	v := seed ^ (slot+1)*0x9e3779b97f4a7c15
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return float64(v%1000) / 1000 * maxSpread
}
