package domain

import "time"

// ChannelMetrics holds raw delivery/engagement counts for one channel plus
// the rates derived from them. Counts are monotonically non-decreasing for
// the lifetime of a tracking session; collection only adds, never resets.
type ChannelMetrics struct {
	Sent         int64 `json:"sent"`
	Delivered    int64 `json:"delivered"`
	Opened       int64 `json:"opened"`
	Clicked      int64 `json:"clicked"`
	Bounced      int64 `json:"bounced"`
	Unsubscribed int64 `json:"unsubscribed"`
	Replied      int64 `json:"replied"`

	DeliveryRate    float64 `json:"delivery_rate"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	ReplyRate       float64 `json:"reply_rate"`
	UnsubscribeRate float64 `json:"unsubscribe_rate"`
	BounceRate      float64 `json:"bounce_rate"`
}

// Add merges another set of counts additively. Rates are not touched; the
// caller recomputes them from the new totals.
func (m *ChannelMetrics) Add(delta ChannelMetrics) {
	m.Sent += delta.Sent
	m.Delivered += delta.Delivered
	m.Opened += delta.Opened
	m.Clicked += delta.Clicked
	m.Bounced += delta.Bounced
	m.Unsubscribed += delta.Unsubscribed
	m.Replied += delta.Replied
}

// RecomputeRates derives all rates from the current counts. Every rate is 0
// when its denominator is 0.
func (m *ChannelMetrics) RecomputeRates() {
	m.DeliveryRate = ratio(m.Delivered, m.Sent)
	m.BounceRate = ratio(m.Bounced, m.Sent)
	m.OpenRate = ratio(m.Opened, m.Delivered)
	m.ClickRate = ratio(m.Clicked, m.Delivered)
	m.ReplyRate = ratio(m.Replied, m.Delivered)
	m.UnsubscribeRate = ratio(m.Unsubscribed, m.Delivered)
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// SessionStatus enumerates tracking session lifecycle states.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
)

// TrackedChannel names one channel to poll during a tracking session.
type TrackedChannel struct {
	Type               ChannelType `json:"type"`
	ProviderCampaignID string      `json:"provider_campaign_id"`
}

// MetricsSnapshot is one point in a session's time series.
type MetricsSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalSent      int64     `json:"total_sent"`
	TotalDelivered int64     `json:"total_delivered"`
	DeliveryRate   float64   `json:"delivery_rate"`
	OpenRate       float64   `json:"open_rate"`
}

// PerformanceSession is the live record of one orchestration's delivery and
// engagement counts from startTracking until stopTracking.
type PerformanceSession struct {
	TrackingID      string                          `json:"tracking_id"`
	OrchestrationID string                          `json:"orchestration_id"`
	Channels        []TrackedChannel                `json:"channels"`
	ChannelMetrics  map[ChannelType]*ChannelMetrics `json:"channel_metrics"`
	Overall         ChannelMetrics                  `json:"overall_metrics"`
	// TimeSeries is ring-buffered to the most recent snapshots; see the
	// aggregator's history limit.
	TimeSeries []MetricsSnapshot `json:"time_series"`
	Status     SessionStatus     `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	StoppedAt  *time.Time        `json:"stopped_at,omitempty"`
}
