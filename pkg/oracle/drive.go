package oracle

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

// Drive answers every comparison of run with o until the run resolves.
//
// An oracle error cancels the run; ErrAborted is returned as is so callers
// can tell a deliberate quit from a failure. Cancelling ctx cancels the run
// too. A run cancelled elsewhere resolves to an empty slice and a nil error.
func Drive(ctx context.Context, eng *sorter.Engine, run *sorter.Run, o Oracle) ([]string, error) {
	sub := eng.Subscribe()
	defer sub.Close()

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(loopCtx)

	g.Go(func() error {
		select {
		case <-run.Done():
			stop()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		for {
			st, err := sub.Next(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			if st.CurrentPair == nil {
				continue
			}
			pair := *st.CurrentPair
			// the queue may still hold a pair that was answered or cancelled
			if p, ok := eng.Pending(); !ok || p != pair {
				continue
			}

			d, err := o.Decide(gctx, pair, st)
			if err != nil {
				if gctx.Err() != nil && !errors.Is(err, ErrAborted) {
					return nil
				}
				eng.Cancel()
				if errors.Is(err, ErrAborted) {
					return ErrAborted
				}
				return fmt.Errorf("failed to decide %q vs %q: %w", pair.ItemA, pair.ItemB, err)
			}

			if err := eng.Submit(pair.ItemA, pair.ItemB, d); err != nil {
				if errors.Is(err, sorter.ErrNoPendingComparison) || errors.Is(err, sorter.ErrPairMismatch) {
					continue
				}
				eng.Cancel()
				return fmt.Errorf("failed to submit decision: %w", err)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	select {
	case <-run.Done():
		return run.Wait(context.Background())
	default:
	}

	eng.Cancel()
	return nil, ctx.Err()
}
