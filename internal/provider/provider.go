// Package provider defines the outbound delivery surface. Real deployments
// plug ESP and SMS gateway clients in behind ChannelSender; the bundled Stub
// simulates delivery locally so orchestration, tracking, and experiments can
// run end to end without provider credentials.
package provider

import (
	"context"
	"time"

	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// DeliveryHandle identifies a dispatched channel send at the provider. The
// ProviderCampaignID is what metrics polling keys on.
type DeliveryHandle struct {
	ProviderCampaignID string             `json:"provider_campaign_id"`
	Channel            domain.ChannelType `json:"channel"`
	Recipients         int                `json:"recipients"`
	AcceptedAt         time.Time          `json:"accepted_at"`
}

// ChannelSender dispatches one channel execution to its provider.
type ChannelSender interface {
	SendViaChannel(ctx context.Context, channel domain.ChannelType, audience domain.AudienceSlice, content map[string]string) (DeliveryHandle, error)
}
