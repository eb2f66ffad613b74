package domain

import "time"

// ChannelType identifies a delivery medium.
type ChannelType string

const (
	ChannelEmail    ChannelType = "email"
	ChannelSMS      ChannelType = "sms"
	ChannelMMS      ChannelType = "mms"
	ChannelPush     ChannelType = "push"
	ChannelWhatsApp ChannelType = "whatsapp"
)

// IsInstant reports whether the channel delivers near-instant short-form
// content (sms/mms). The optimal planner orders these before slower
// long-form channels.
func (c ChannelType) IsInstant() bool {
	return c == ChannelSMS || c == ChannelMMS
}

// AudienceFilter narrows a channel's audience before planning. Both filters
// compose with AND semantics when both are set.
type AudienceFilter struct {
	// PreferredChannel keeps only contacts whose stored channel preference
	// matches the given type.
	PreferredChannel ChannelType `json:"preferred_channel,omitempty"`
	// ExclusionWindow drops contacts last touched via this channel within
	// the window.
	ExclusionWindow time.Duration `json:"exclusion_window,omitempty"`
}

// ChannelSpec describes one channel's participation in a campaign. It is an
// immutable input to the plan builder.
type ChannelSpec struct {
	Type ChannelType `json:"type"`
	// Stage assigns the channel to an explicit stage index for the staged
	// strategy. Nil means the channel is matched by type membership.
	Stage *int `json:"stage,omitempty"`
	// Delay overrides the strategy's default delay for this channel.
	Delay *time.Duration `json:"delay,omitempty"`
	// AudienceFilter, when set, narrows the campaign audience for this
	// channel only.
	AudienceFilter *AudienceFilter `json:"audience_filter,omitempty"`
	// ProviderCampaignID keys metric fetches against the channel provider.
	ProviderCampaignID string `json:"provider_campaign_id,omitempty"`
}
