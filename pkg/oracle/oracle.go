// Package oracle answers the comparisons a sorter.Engine suspends on. The
// oracle stands in for the person (or model) deciding which of two items
// ranks higher.
package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

// ErrAborted is returned by an oracle whose user gave up on the sort.
var ErrAborted = errors.New("oracle: aborted by user")

type Oracle interface {
	Decide(ctx context.Context, pair sorter.ComparisonPair, state sorter.SortState) (sorter.Decision, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, pair sorter.ComparisonPair, state sorter.SortState) (sorter.Decision, error)

func (f Func) Decide(ctx context.Context, pair sorter.ComparisonPair, state sorter.SortState) (sorter.Decision, error) {
	return f(ctx, pair, state)
}

// DryRun answers every comparison by plain string order, so a whole run can
// be exercised without anyone at the keyboard.
type DryRun struct{}

func (DryRun) Decide(ctx context.Context, pair sorter.ComparisonPair, _ sorter.SortState) (sorter.Decision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch c := strings.Compare(pair.ItemA, pair.ItemB); {
	case c < 0:
		return sorter.DecisionA, nil
	case c > 0:
		return sorter.DecisionB, nil
	default:
		return sorter.DecisionEqual, nil
	}
}
