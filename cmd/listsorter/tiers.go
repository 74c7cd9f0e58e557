package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GenericOctopus/ListSorter/pkg/lists"
	"github.com/GenericOctopus/ListSorter/pkg/tiers"
)

type tiersOptions struct {
	file    string
	weights []float64
	labels  []string
	save    bool
}

func tiersCmd(a *app) *cobra.Command {
	var opts tiersOptions

	cmd := &cobra.Command{
		Use:   "tiers <list-id>",
		Short: "Split a sorted list into tiers",
		Long: `Split a sorted list into tiers.

The scheme comes from LISTSORTER_TIERS_FILE (S to F by default) and can be
replaced with --file or adjusted with --weights and --labels. Weights are
clamped to 0..100 and need not add up to 100.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTiers(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "YAML tier scheme")
	cmd.Flags().Float64SliceVar(&opts.weights, "weights", nil, "Percentage weight per tier, e.g. 10,20,30,25,10,5")
	cmd.Flags().StringSliceVar(&opts.labels, "labels", nil, "Tier labels, e.g. S,A,B,C,D,F")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the new tiers with the list")

	return cmd
}

func (a *app) runTiers(ctx context.Context, cmd *cobra.Command, id string, opts tiersOptions) error {
	scheme, err := a.scheme(opts)
	if err != nil {
		return err
	}

	list, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(list.SortedItems) == 0 {
		return fmt.Errorf("%w: list %s has not been sorted yet", lists.ErrNotSortable, id)
	}

	list.Tiers = scheme.Partition(list.SortedItems)
	a.logger.Debug("tiers computed", "list", id, "weights", scheme.Weights, "total", scheme.Total())

	if opts.save {
		if err := a.store.Update(ctx, list); err != nil {
			return fmt.Errorf("failed to save list: %w", err)
		}
		a.logger.Info("tiers saved", "list", id)
	}
	return printJSON(cmd.OutOrStdout(), list.Tiers)
}

func (a *app) scheme(opts tiersOptions) (tiers.Scheme, error) {
	scheme := tiers.Scheme{
		Labels:  slices.Clone(a.settings.Tiers.Labels),
		Weights: slices.Clone(a.settings.Tiers.Weights),
	}
	if opts.file != "" {
		var err error
		if scheme, err = tiers.LoadScheme(opts.file); err != nil {
			return tiers.Scheme{}, err
		}
	}

	if opts.labels != nil {
		scheme.Labels = opts.labels
		if opts.weights == nil && len(scheme.Weights) != len(scheme.Labels) {
			return tiers.Scheme{}, fmt.Errorf("%w: %d labels need --weights", tiers.ErrInvalidScheme, len(opts.labels))
		}
	}
	if opts.weights != nil {
		if opts.labels == nil && len(opts.weights) != len(scheme.Labels) {
			return tiers.Scheme{}, fmt.Errorf("%w: %d weights for %d tiers", tiers.ErrInvalidScheme, len(opts.weights), len(scheme.Labels))
		}
		scheme.Weights = make([]float64, len(opts.weights))
		for i, w := range opts.weights {
			if err := scheme.SetWeight(i, w); err != nil {
				return tiers.Scheme{}, err
			}
		}
	}

	if err := scheme.Validate(); err != nil {
		return tiers.Scheme{}, err
	}
	if total := scheme.Total(); total != 100 {
		a.logger.Warn("tier weights do not add up to 100, sizes are scaled", "total", total)
	}
	return scheme, nil
}

func moveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <list-id> <from> <to>",
		Short: "Move one item between tiers of a saved list",
		Long: `Move one item between tiers of a saved list.

Positions are written tier:index, where tier is a label or a number counted
from 0, e.g. "move 7f3c... B:2 A:0". The index of the destination is clamped
to the tier's length, so A:99 appends.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMove(cmd.Context(), cmd, args[0], args[1], args[2])
		},
	}
}

func (a *app) runMove(ctx context.Context, cmd *cobra.Command, id, fromArg, toArg string) error {
	list, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(list.Tiers) == 0 {
		return fmt.Errorf("%w: list %s has no tiers yet", lists.ErrNotSortable, id)
	}

	from, err := parsePosition(fromArg, list.Tiers)
	if err != nil {
		return err
	}
	to, err := parsePosition(toArg, list.Tiers)
	if err != nil {
		return err
	}

	groups, err := tiers.Move(list.Tiers, from, to)
	if err != nil {
		return err
	}
	list.Tiers = groups
	if err := a.store.Update(ctx, list); err != nil {
		return fmt.Errorf("failed to save list: %w", err)
	}
	a.logger.Info("item moved", "list", id, "from", fromArg, "to", toArg)

	return printJSON(cmd.OutOrStdout(), list.Tiers)
}

func parsePosition(s string, groups []tiers.TierGroup) (tiers.Position, error) {
	tier, index, ok := strings.Cut(s, ":")
	if !ok {
		return tiers.Position{}, fmt.Errorf("invalid position %q: want tier:index", s)
	}

	idx, err := strconv.Atoi(index)
	if err != nil {
		return tiers.Position{}, fmt.Errorf("invalid index in %q: %w", s, err)
	}

	t := slices.IndexFunc(groups, func(g tiers.TierGroup) bool { return g.Tier == tier })
	if t < 0 {
		if t, err = strconv.Atoi(tier); err != nil {
			return tiers.Position{}, fmt.Errorf("%w: unknown tier %q", tiers.ErrTierOutOfRange, tier)
		}
	}
	return tiers.Position{Tier: t, Index: idx}, nil
}
