// Package tiers splits a ranked list into labelled, contiguous tier groups
// sized by percentage weights.
package tiers

import (
	"math"
	"sort"
)

// TierGroup is one labelled slice of a ranked list.
type TierGroup struct {
	Tier  string   `json:"tier" yaml:"tier"`
	Items []string `json:"items" yaml:"items"`
}

// Partition slices sorted into len(labels) contiguous groups using
// largest-remainder allocation over weights.
//
// A weight is a share of the positive-weight total, which is the plain
// percentage when weights sum to 100. Missing, negative, NaN and infinite
// weights count as zero. Zero-size tiers are returned as empty groups so tier
// indices stay stable. An empty input yields nil; if no weight is positive
// every group is empty.
func Partition(sorted []string, weights []float64, labels []string) []TierGroup {
	if len(sorted) == 0 {
		return nil
	}

	sizes := Sizes(len(sorted), normalizeWeights(weights, len(labels)))

	groups := make([]TierGroup, len(labels))
	start := 0
	for i, label := range labels {
		end := min(start+sizes[i], len(sorted))
		groups[i] = TierGroup{
			Tier:  label,
			Items: append([]string{}, sorted[start:end]...),
		}
		start = end
	}
	return groups
}

// Sizes returns how many items each tier receives. The sizes sum to
// itemCount whenever at least one weight is positive.
func Sizes(itemCount int, weights []float64) []int {
	sizes := make([]int, len(weights))
	if itemCount <= 0 {
		return sizes
	}

	total := 0.0
	for _, w := range weights {
		if valid(w) {
			total += w
		}
	}
	if total <= 0 {
		return sizes
	}

	type share struct {
		tier     int
		fraction float64
	}
	var shares []share
	allocated := 0

	for i, w := range weights {
		if !valid(w) {
			continue
		}
		exact := float64(itemCount) * w / total
		// absorb float noise such as 2.9999999999999996
		base := int(math.Floor(exact + 1e-9))
		frac := exact - float64(base)
		if frac < 0 {
			frac = 0
		}
		sizes[i] = base
		allocated += base
		shares = append(shares, share{tier: i, fraction: frac})
	}

	remainder := itemCount - allocated
	if remainder <= 0 {
		return sizes
	}

	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].fraction > shares[b].fraction
	})
	for i := 0; i < remainder && i < len(shares); i++ {
		sizes[shares[i].tier]++
	}

	return sizes
}

// Flatten concatenates the groups in tier order.
func Flatten(groups []TierGroup) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

func valid(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// normalizeWeights pads or truncates weights to n tiers.
func normalizeWeights(weights []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, weights)
	return out
}
