package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-orchestrator/internal/clock"
	"github.com/ignite/campaign-orchestrator/internal/domain"
)

func stubAudience(n int) domain.AudienceSlice {
	contacts := make([]domain.Contact, n)
	for i := range contacts {
		contacts[i] = domain.Contact{ID: string(rune('a' + i%26))}
	}
	return domain.NewAudienceSlice(contacts, nil, nil)
}

func TestStub_SendViaChannel(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewStub(fake, 10*time.Minute)

	handle, err := s.SendViaChannel(context.Background(), domain.ChannelEmail, stubAudience(100), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ProviderCampaignID)
	assert.Equal(t, domain.ChannelEmail, handle.Channel)
	assert.Equal(t, 100, handle.Recipients)
	assert.True(t, handle.AcceptedAt.Equal(fake.Now()))

	_, err = s.SendViaChannel(context.Background(), domain.ChannelSMS, domain.AudienceSlice{}, nil)
	assert.Error(t, err, "empty audience must be rejected")
}

func TestStub_FetchChannelMetrics_DeltasSumToCumulative(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewStub(fake, 10*time.Minute)
	ctx := context.Background()

	handle, err := s.SendViaChannel(ctx, domain.ChannelEmail, stubAudience(1000), nil)
	require.NoError(t, err)

	var total domain.ChannelMetrics
	for i := 0; i < 4; i++ {
		fake.Advance(5 * time.Minute)
		delta, err := s.FetchChannelMetrics(ctx, domain.ChannelEmail, handle.ProviderCampaignID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, delta.Sent, int64(0))
		assert.GreaterOrEqual(t, delta.Delivered, int64(0))
		total.Add(delta)
	}

	// Past the ramp the campaign is fully sent and later polls go quiet.
	assert.Equal(t, int64(1000), total.Sent)
	assert.Equal(t, total.Sent, total.Delivered+total.Bounced)
	assert.LessOrEqual(t, total.Opened, total.Delivered)
	assert.LessOrEqual(t, total.Clicked, total.Opened)

	delta, err := s.FetchChannelMetrics(ctx, domain.ChannelEmail, handle.ProviderCampaignID)
	require.NoError(t, err)
	assert.Zero(t, delta.Sent)
	assert.Zero(t, delta.Opened)
}

func TestStub_FetchChannelMetrics_Validation(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewStub(fake, 10*time.Minute)
	ctx := context.Background()

	_, err := s.FetchChannelMetrics(ctx, domain.ChannelEmail, "missing")
	assert.Error(t, err)

	handle, err := s.SendViaChannel(ctx, domain.ChannelEmail, stubAudience(10), nil)
	require.NoError(t, err)

	_, err = s.FetchChannelMetrics(ctx, domain.ChannelSMS, handle.ProviderCampaignID)
	assert.Error(t, err, "channel mismatch must be rejected")
}
