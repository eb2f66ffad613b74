package audience

import (
	"time"

	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// PrepareChannelAudience narrows an audience for one channel according to
// the channel's filter. Preference and recency exclusion compose with AND
// semantics when both are present. A nil filter returns the input unchanged.
//
// now supplies the reference time for the exclusion window so callers can
// inject a clock.
func PrepareChannelAudience(slice domain.AudienceSlice, spec domain.ChannelSpec, now time.Time) domain.AudienceSlice {
	filter := spec.AudienceFilter
	if filter == nil {
		return slice
	}

	kept := make([]domain.Contact, 0, len(slice.Contacts))
	for _, c := range slice.Contacts {
		if filter.PreferredChannel != "" && c.PreferredChannel != filter.PreferredChannel {
			continue
		}
		if filter.ExclusionWindow > 0 && touchedWithin(c, spec.Type, filter.ExclusionWindow, now) {
			continue
		}
		kept = append(kept, c)
	}

	return domain.AudienceSlice{
		Size:     len(kept),
		Contacts: kept,
		Lists:    slice.Lists,
		Segments: slice.Segments,
	}
}

func touchedWithin(c domain.Contact, channel domain.ChannelType, window time.Duration, now time.Time) bool {
	last, ok := c.LastTouched[channel]
	if !ok {
		return false
	}
	return now.Sub(last) < window
}
