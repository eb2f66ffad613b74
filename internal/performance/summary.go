package performance

import (
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// TrendDirection classifies how delivery rate has moved across the recent
// snapshot window.
type TrendDirection string

const (
	TrendImproving        TrendDirection = "improving"
	TrendDeclining        TrendDirection = "declining"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// ChannelContribution is one channel's share of the aggregate counts.
type ChannelContribution struct {
	Channel          domain.ChannelType `json:"channel"`
	SentPercent      float64            `json:"sent_percent"`
	DeliveredPercent float64            `json:"delivered_percent"`
	OpenedPercent    float64            `json:"opened_percent"`
	ClickedPercent   float64            `json:"clicked_percent"`
}

// Summary holds cross-channel statistics derived from summed counts.
type Summary struct {
	DeliveryRate   float64 `json:"delivery_rate"`
	EngagementRate float64 `json:"engagement_rate"`
	BounceRate     float64 `json:"bounce_rate"`
	// BestChannel is the argmax of
	// 0.4*deliveryRate + 0.6*(openRate+clickRate+replyRate).
	BestChannel      domain.ChannelType    `json:"best_channel,omitempty"`
	BestChannelScore float64               `json:"best_channel_score"`
	Contributions    []ChannelContribution `json:"contributions"`
	// EstimatedUniqueReach discounts total delivered by an assumed
	// cross-channel overlap fraction. A rough approximation — not
	// contact-level deduplication.
	EstimatedUniqueReach int64 `json:"estimated_unique_reach"`
}

// TrendReport compares the first and last delivery-rate values of the most
// recent snapshots.
type TrendReport struct {
	Direction TrendDirection `json:"direction"`
	// Change is lastRate - firstRate over the window.
	Change     float64 `json:"change"`
	WindowSize int     `json:"window_size"`
}

// Report is the on-demand view returned by GetCurrentMetrics.
type Report struct {
	Session *domain.PerformanceSession `json:"session"`
	Summary Summary                    `json:"summary"`
	Trend   TrendReport                `json:"trend"`
}

// channelScore weights delivery at 0.4 and engagement (open+click+reply)
// at 0.6.
func channelScore(m domain.ChannelMetrics) float64 {
	return 0.4*m.DeliveryRate + 0.6*(m.OpenRate+m.ClickRate+m.ReplyRate)
}

func summarize(session *domain.PerformanceSession, overlapFraction float64) Summary {
	total := session.Overall
	engaged := total.Opened + total.Clicked + total.Replied

	summary := Summary{
		DeliveryRate:   total.DeliveryRate,
		BounceRate:     total.BounceRate,
		EngagementRate: safeRatio(engaged, total.Delivered),
	}

	best := domain.ChannelType("")
	bestScore := -1.0
	for _, ch := range session.Channels {
		m, ok := session.ChannelMetrics[ch.Type]
		if !ok {
			continue
		}
		if score := channelScore(*m); score > bestScore {
			bestScore = score
			best = ch.Type
		}
		summary.Contributions = append(summary.Contributions, ChannelContribution{
			Channel:          ch.Type,
			SentPercent:      percent(m.Sent, total.Sent),
			DeliveredPercent: percent(m.Delivered, total.Delivered),
			OpenedPercent:    percent(m.Opened, total.Opened),
			ClickedPercent:   percent(m.Clicked, total.Clicked),
		})
	}
	if bestScore >= 0 {
		summary.BestChannel = best
		summary.BestChannelScore = bestScore
	}

	reach := float64(total.Delivered)
	if len(session.Channels) > 1 {
		reach *= 1 - overlapFraction
	}
	summary.EstimatedUniqueReach = int64(reach)
	return summary
}

func classifyTrend(series []domain.MetricsSnapshot, window int) TrendReport {
	if len(series) < 2 {
		return TrendReport{Direction: TrendInsufficientData, WindowSize: len(series)}
	}
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}

	change := series[len(series)-1].DeliveryRate - series[0].DeliveryRate
	report := TrendReport{Change: change, WindowSize: len(series)}
	switch {
	case change > 0:
		report.Direction = TrendImproving
	case change < 0:
		report.Direction = TrendDeclining
	default:
		report.Direction = TrendStable
	}
	return report
}

func safeRatio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
