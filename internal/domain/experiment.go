package domain

import "time"

// ControlVariantID is the reserved variant id that marks the control.
// Control is distinguished by this id, not by a separate type; every
// experiment has exactly one.
const ControlVariantID = "control"

// ExperimentEvent enumerates the per-variant counters an experiment records.
type ExperimentEvent string

const (
	EventSent         ExperimentEvent = "sent"
	EventDelivered    ExperimentEvent = "delivered"
	EventOpened       ExperimentEvent = "opened"
	EventClicked      ExperimentEvent = "clicked"
	EventConverted    ExperimentEvent = "converted"
	EventUnsubscribed ExperimentEvent = "unsubscribed"
)

// ValidExperimentEvent reports whether s names a recordable event.
func ValidExperimentEvent(s string) bool {
	switch ExperimentEvent(s) {
	case EventSent, EventDelivered, EventOpened, EventClicked, EventConverted, EventUnsubscribed:
		return true
	}
	return false
}

// ExperimentMetric enumerates the rates an experiment can optimize for.
type ExperimentMetric string

const (
	MetricOpenRate       ExperimentMetric = "open_rate"
	MetricClickRate      ExperimentMetric = "click_rate"
	MetricConversionRate ExperimentMetric = "conversion_rate"
	MetricDeliveryRate   ExperimentMetric = "delivery_rate"
)

// Variant is one version of campaign content under test.
type Variant struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Content      map[string]string `json:"content,omitempty"`
	Audience     AudienceSlice     `json:"audience"`
	TrafficShare float64           `json:"traffic_share"`
}

// VariantResult holds one variant's recorded counts and derived statistics.
type VariantResult struct {
	Sent         int64 `json:"sent"`
	Delivered    int64 `json:"delivered"`
	Opened       int64 `json:"opened"`
	Clicked      int64 `json:"clicked"`
	Converted    int64 `json:"converted"`
	Unsubscribed int64 `json:"unsubscribed"`

	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	ConversionRate float64 `json:"conversion_rate"`
	DeliveryRate   float64 `json:"delivery_rate"`

	// Populated by analysis for non-control variants.
	ZScore      float64 `json:"z_score,omitempty"`
	PValue      float64 `json:"p_value,omitempty"`
	Improvement float64 `json:"improvement,omitempty"`
	Significant bool    `json:"significant"`
}

// Count returns the counter backing the given event.
func (r *VariantResult) Count(event ExperimentEvent) int64 {
	switch event {
	case EventSent:
		return r.Sent
	case EventDelivered:
		return r.Delivered
	case EventOpened:
		return r.Opened
	case EventClicked:
		return r.Clicked
	case EventConverted:
		return r.Converted
	case EventUnsubscribed:
		return r.Unsubscribed
	}
	return 0
}

// RecomputeRates derives rate metrics from the current counts. Experiment
// rates are per recorded send, so variants stay comparable even when
// delivery events are not reported. Rates are 0 when the denominator is 0.
func (r *VariantResult) RecomputeRates() {
	r.DeliveryRate = ratio(r.Delivered, r.Sent)
	r.OpenRate = ratio(r.Opened, r.Sent)
	r.ClickRate = ratio(r.Clicked, r.Sent)
	r.ConversionRate = ratio(r.Converted, r.Sent)
}

// Rate returns the variant's value for the experiment's primary metric as a
// success/trial proportion.
func (r *VariantResult) Rate(metric ExperimentMetric) (rate float64, successes, trials int64) {
	switch metric {
	case MetricOpenRate:
		return r.OpenRate, r.Opened, r.Sent
	case MetricClickRate:
		return r.ClickRate, r.Clicked, r.Sent
	case MetricConversionRate:
		return r.ConversionRate, r.Converted, r.Sent
	case MetricDeliveryRate:
		return r.DeliveryRate, r.Delivered, r.Sent
	}
	return 0, 0, 0
}

// StatisticalConfig holds the significance-test parameters for one
// experiment. The sample-size estimate comes from a simplified power
// analysis, not an exact one; treat results as triage-grade.
type StatisticalConfig struct {
	ConfidenceLevel       float64 `json:"confidence_level"`
	SignificanceThreshold float64 `json:"significance_threshold"`
	RequiredSampleSize    int     `json:"required_sample_size"`
}

// ExperimentResults aggregates per-variant outcomes and the winner decision.
// SignificanceReached only ever transitions false→true, and Winner is set at
// most once; both are terminal.
type ExperimentResults struct {
	VariantResults      map[string]*VariantResult `json:"variant_results"`
	SignificanceReached bool                      `json:"significance_reached"`
	Winner              string                    `json:"winner,omitempty"`
	AnalyzedAt          *time.Time                `json:"analyzed_at,omitempty"`
}

// Experiment is one A/B/n test over campaign content.
type Experiment struct {
	TestID        string            `json:"test_id"`
	Name          string            `json:"name"`
	PrimaryMetric ExperimentMetric  `json:"primary_metric"`
	Variants      []Variant         `json:"variants"`
	Statistics    StatisticalConfig `json:"statistics"`
	Results       ExperimentResults `json:"results"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ControlResult returns the control variant's result, or nil if missing.
func (e *Experiment) ControlResult() *VariantResult {
	return e.Results.VariantResults[ControlVariantID]
}

// TotalSent sums recorded sends across all variants.
func (e *Experiment) TotalSent() int64 {
	var total int64
	for _, r := range e.Results.VariantResults {
		total += r.Sent
	}
	return total
}
