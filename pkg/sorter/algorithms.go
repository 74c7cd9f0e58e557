package sorter

import (
	"math"
	"slices"
)

// compareFunc returns <0 when a goes first, >0 when b goes first and 0 for a
// tie. It fails only when the run is cancelled.
type compareFunc func(a, b string) (int, error)

// mergeSort is a top-down stable merge sort driven by cmp.
func mergeSort(items []string, cmp compareFunc) ([]string, error) {
	if len(items) <= 1 {
		return items, nil
	}

	mid := len(items) / 2
	left, err := mergeSort(items[:mid], cmp)
	if err != nil {
		return nil, err
	}
	right, err := mergeSort(items[mid:], cmp)
	if err != nil {
		return nil, err
	}

	return merge(left, right, cmp)
}

// merge takes the left head on ties, which keeps the sort stable.
func merge(left, right []string, cmp compareFunc) ([]string, error) {
	result := make([]string, 0, len(left)+len(right))
	i, j := 0, 0

	for i < len(left) && j < len(right) {
		c, err := cmp(left[i], right[j])
		if err != nil {
			return nil, err
		}
		if c <= 0 {
			result = append(result, left[i])
			i++
		} else {
			result = append(result, right[j])
			j++
		}
	}

	result = append(result, left[i:]...)
	return append(result, right[j:]...), nil
}

// binaryInsert inserts each new item into a copy of sorted at its
// partition point. Each item costs O(log n) comparisons.
func binaryInsert(sorted, newItems []string, cmp compareFunc) ([]string, error) {
	result := slices.Clone(sorted)

	for _, item := range newItems {
		left, right := 0, len(result)
		for left < right {
			mid := int(uint(left+right) >> 1)
			c, err := cmp(item, result[mid])
			if err != nil {
				return nil, err
			}
			if c <= 0 {
				right = mid
			} else {
				left = mid + 1
			}
		}
		result = slices.Insert(result, left, item)
	}

	return result, nil
}

// difference returns items not present in sorted, in items order.
func difference(items, sorted []string) []string {
	seen := make(map[string]struct{}, len(sorted))
	for _, s := range sorted {
		seen[s] = struct{}{}
	}

	var out []string
	for _, item := range items {
		if _, ok := seen[item]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// estimateFull is the n*log2(n) heuristic used for the progress bar.
func estimateFull(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Ceil(float64(n) * math.Log2(float64(n))))
}

// estimateIncremental charges ceil(log2(m+1)) comparisons per new item.
func estimateIncremental(newCount, sortedCount int) int {
	if newCount == 0 {
		return 0
	}
	return newCount * int(math.Ceil(math.Log2(float64(sortedCount+1))))
}

func progressOf(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
