package domain

import "time"

// Contact is one reachable recipient. LastTouched records the most recent
// send per channel and drives recency exclusion filters.
type Contact struct {
	ID               string                    `json:"id"`
	Email            string                    `json:"email,omitempty"`
	Phone            string                    `json:"phone,omitempty"`
	PreferredChannel ChannelType               `json:"preferred_channel,omitempty"`
	LastTouched      map[ChannelType]time.Time `json:"last_touched,omitempty"`
}

// AudienceSlice is a read-only view over a set of contacts. Filtering and
// partitioning always produce new slices; an existing slice is never mutated.
type AudienceSlice struct {
	Size     int       `json:"size"`
	Contacts []Contact `json:"contacts,omitempty"`
	Lists    []string  `json:"lists,omitempty"`
	Segments []string  `json:"segments,omitempty"`
}

// NewAudienceSlice builds a slice whose Size matches its contact count.
func NewAudienceSlice(contacts []Contact, lists, segments []string) AudienceSlice {
	return AudienceSlice{
		Size:     len(contacts),
		Contacts: contacts,
		Lists:    lists,
		Segments: segments,
	}
}
