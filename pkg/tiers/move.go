package tiers

import (
	"fmt"
	"slices"
)

// Position addresses one item slot inside a tier partition.
type Position struct {
	Tier  int `json:"tier"`
	Index int `json:"index"`
}

// Move relocates one item, within a tier or across tiers, the way a drag and
// drop on the results view does. The destination index is clamped to the
// target tier's length. A manual move is an intentional edit: tier sizes no
// longer follow the weights afterwards.
func Move(groups []TierGroup, from, to Position) ([]TierGroup, error) {
	if from.Tier < 0 || from.Tier >= len(groups) {
		return nil, fmt.Errorf("%w: source tier %d", ErrTierOutOfRange, from.Tier)
	}
	if to.Tier < 0 || to.Tier >= len(groups) {
		return nil, fmt.Errorf("%w: target tier %d", ErrTierOutOfRange, to.Tier)
	}
	if from.Index < 0 || from.Index >= len(groups[from.Tier].Items) {
		return nil, fmt.Errorf("%w: %d in tier %q", ErrItemOutOfRange, from.Index, groups[from.Tier].Tier)
	}

	out := make([]TierGroup, len(groups))
	for i, g := range groups {
		out[i] = TierGroup{Tier: g.Tier, Items: append([]string{}, g.Items...)}
	}

	item := out[from.Tier].Items[from.Index]
	out[from.Tier].Items = slices.Delete(out[from.Tier].Items, from.Index, from.Index+1)

	idx := min(max(to.Index, 0), len(out[to.Tier].Items))
	out[to.Tier].Items = slices.Insert(out[to.Tier].Items, idx, item)

	return out, nil
}
