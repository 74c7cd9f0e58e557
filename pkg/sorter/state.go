package sorter

import (
	"fmt"
	"strings"
)

// Decision is a human answer to a single comparison.
type Decision string

const (
	DecisionA     Decision = "A"     // itemA goes first
	DecisionB     Decision = "B"     // itemB goes first
	DecisionEqual Decision = "equal" // no preference
)

// ParseDecision accepts the spellings used by the prompts and the CLI.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "1", "left":
		return DecisionA, nil
	case "b", "2", "right":
		return DecisionB, nil
	case "equal", "=", "e", "tie":
		return DecisionEqual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
	}
}

// ordering maps a decision to the comparator value for (itemA, itemB).
func (d Decision) ordering() (int, bool) {
	switch d {
	case DecisionA:
		return -1, true
	case DecisionB:
		return 1, true
	case DecisionEqual:
		return 0, true
	default:
		return 0, false
	}
}

// Ordering returns -1, +1 or 0. Unknown decisions count as equal.
func (d Decision) Ordering() int {
	v, _ := d.ordering()
	return v
}

// ComparisonPair is the comparison currently waiting for an answer.
type ComparisonPair struct {
	ItemA string `json:"item_a"`
	ItemB string `json:"item_b"`
}

// SortState is the observable snapshot of a sort run.
//
// TotalComparisons is an estimate, so Progress may pass 100 or stop short of
// it before the final answer. A finished run always reports 100.
type SortState struct {
	IsActive             bool            `json:"is_active"`
	CurrentPair          *ComparisonPair `json:"current_pair,omitempty"`
	Progress             int             `json:"progress"`
	TotalComparisons     int             `json:"total_comparisons"`
	CompletedComparisons int             `json:"completed_comparisons"`
}

func (s SortState) clone() SortState {
	if s.CurrentPair != nil {
		p := *s.CurrentPair
		s.CurrentPair = &p
	}
	return s
}

// Mode selects the sorting algorithm of a run.
type Mode int

const (
	ModeFull Mode = iota
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeIncremental:
		return "incremental"
	default:
		return "full"
	}
}

// Request describes one sort run.
type Request struct {
	Items []string
	// AlreadySorted is a previously ranked subset of Items. New items are
	// binary-inserted into it instead of re-sorting everything.
	AlreadySorted []string
	// ForceFull ignores AlreadySorted.
	ForceFull bool
}

// Mode reports which algorithm the request will run.
func (r Request) Mode() Mode {
	if r.ForceFull || len(r.AlreadySorted) == 0 {
		return ModeFull
	}
	return ModeIncremental
}
