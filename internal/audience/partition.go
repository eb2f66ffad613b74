// Package audience splits and filters campaign audiences. Partitioning is
// randomized but balanced; filtering is pure set membership with no
// randomization.
package audience

import (
	"math/rand"

	"github.com/ignite/campaign-orchestrator/internal/domain"
)

// Partition splits an audience into k balanced, randomized groups. Contacts
// are shuffled (Fisher–Yates) and sliced contiguously; any remainder goes to
// the earliest groups, so group sizes differ by at most 1. The input slice
// is never mutated.
//
// A nil rng uses the global math/rand source. k <= 0 returns nil.
func Partition(slice domain.AudienceSlice, k int, rng *rand.Rand) []domain.AudienceSlice {
	if k <= 0 {
		return nil
	}

	shuffled := make([]domain.Contact, len(slice.Contacts))
	copy(shuffled, slice.Contacts)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if rng != nil {
		rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}

	base := len(shuffled) / k
	remainder := len(shuffled) % k

	groups := make([]domain.AudienceSlice, k)
	offset := 0
	for i := 0; i < k; i++ {
		size := base
		if i < remainder {
			size++
		}
		group := shuffled[offset : offset+size]
		offset += size
		groups[i] = domain.AudienceSlice{
			Size:     len(group),
			Contacts: group,
			Lists:    slice.Lists,
			Segments: slice.Segments,
		}
	}
	return groups
}
