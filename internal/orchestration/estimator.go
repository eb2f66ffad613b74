package orchestration

import (
	"time"

	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// ChannelCost is the per-channel execution cost model: a fixed base cost
// plus a per-recipient cost. The constants are tuning knobs, not hard
// science; they live in configuration.
type ChannelCost struct {
	Base         time.Duration `yaml:"base"`
	PerRecipient time.Duration `yaml:"per_recipient"`
}

// CostTable maps channel types to their cost model.
type CostTable map[domain.ChannelType]ChannelCost

// DefaultCostTable returns the built-in cost model. Bulk content channels
// (email) carry the largest base cost but the smallest per-recipient cost;
// media-bearing messages (mms) carry the heaviest per-recipient cost.
func DefaultCostTable() CostTable {
	return CostTable{
		domain.ChannelEmail:    {Base: 30 * time.Second, PerRecipient: 2 * time.Millisecond},
		domain.ChannelSMS:      {Base: 5 * time.Second, PerRecipient: 10 * time.Millisecond},
		domain.ChannelMMS:      {Base: 10 * time.Second, PerRecipient: 25 * time.Millisecond},
		domain.ChannelPush:     {Base: 3 * time.Second, PerRecipient: 1 * time.Millisecond},
		domain.ChannelWhatsApp: {Base: 8 * time.Second, PerRecipient: 15 * time.Millisecond},
	}
}

// fallbackCost covers channel types missing from the table.
var fallbackCost = ChannelCost{Base: 10 * time.Second, PerRecipient: 5 * time.Millisecond}

// EstimateDuration returns the estimated execution time for sending to
// audienceSize recipients over the given channel. Pure function of its
// inputs.
func EstimateDuration(table CostTable, channel domain.ChannelType, audienceSize int) time.Duration {
	cost, ok := table[channel]
	if !ok {
		cost = fallbackCost
	}
	if audienceSize < 0 {
		audienceSize = 0
	}
	return cost.Base + time.Duration(audienceSize)*cost.PerRecipient
}
