// Package sorter ranks a list of labels by merge sort, asking a human (or any
// other oracle) to decide each comparison it cannot answer from its cache.
//
// A run executes on its own goroutine. Whenever the algorithm needs an
// unknown ordering it publishes the pair in SortState and blocks on a
// single-slot channel until Submit delivers the answer. Only one comparison
// is ever pending, and an Engine drives at most one run at a time.
package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	ErrSortActive          = errors.New("sorter: a sort is already active")
	ErrNoPendingComparison = errors.New("sorter: no comparison is pending")
	ErrPairMismatch        = errors.New("sorter: decision does not match the pending comparison")
	ErrInvalidDecision     = errors.New("sorter: invalid decision")
	ErrSubscriptionClosed  = errors.New("sorter: subscription closed")

	// errCancelled unwinds the algorithm when its run is abandoned.
	errCancelled = errors.New("sorter: run cancelled")
)

type Config struct {
	Logger   *slog.Logger
	LogLevel slog.Level // used only when Logger is nil
}

// Engine owns the decision cache, the pending comparison and the published
// state of one sort session. The zero value is not usable; call New.
type Engine struct {
	logger *slog.Logger

	mu      sync.Mutex
	state   SortState
	cache   decisionCache
	pending *pendingComparison
	run     *Run
	subs    map[*Subscription]struct{}
}

type pendingComparison struct {
	pair  ComparisonPair
	reply chan int // capacity 1, written once by Submit
}

// Run is the future of one sort. Wait returns the ordered labels, or an
// empty slice when the run was cancelled.
type Run struct {
	mode   Mode
	done   chan struct{}
	cancel context.CancelFunc

	// set under Engine.mu before done is closed
	resolved  bool
	result    []string
	cancelled bool

	comparisons atomic.Int64
}

func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
	}

	return &Engine{
		logger: logger.With("component", "sorter"),
		cache:  make(decisionCache),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Start begins a run and returns immediately. Cancelling ctx has the same
// effect as Cancel. A second Start while a run is active fails with
// ErrSortActive; the active run is left untouched.
func (e *Engine) Start(ctx context.Context, req Request) (*Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run != nil {
		return nil, ErrSortActive
	}

	items := append([]string{}, req.Items...)
	mode := req.Mode()

	var (
		base     []string
		newItems []string
		total    int
	)
	switch mode {
	case ModeIncremental:
		base = slices.Clone(req.AlreadySorted)
		newItems = difference(items, base)
		total = estimateIncremental(len(newItems), len(base))
	default:
		total = estimateFull(len(items))
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		mode:   mode,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	e.run = r
	e.cache = make(decisionCache)
	e.pending = nil
	e.setState(SortState{
		IsActive:         true,
		TotalComparisons: total,
	})

	e.logger.Info("sort started", "mode", mode, "items", len(items),
		"already_sorted", len(base), "new_items", len(newItems), "estimated_comparisons", total)

	go e.execute(runCtx, r, items, base, newItems)

	return r, nil
}

func (e *Engine) execute(ctx context.Context, r *Run, items, base, newItems []string) {
	defer r.cancel()

	cmp := func(a, b string) (int, error) {
		return e.compare(ctx, r, a, b)
	}

	var (
		sorted []string
		err    error
	)
	switch r.mode {
	case ModeIncremental:
		if len(newItems) == 0 {
			sorted = base
		} else {
			sorted, err = binaryInsert(base, newItems, cmp)
		}
	default:
		sorted, err = mergeSort(items, cmp)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.resolved {
		return
	}
	if err != nil {
		e.logger.Info("sort cancelled", "reason", context.Cause(ctx))
		e.abortLocked(r)
		return
	}

	st := e.state
	st.IsActive = false
	st.CurrentPair = nil
	st.Progress = 100
	st.CompletedComparisons = st.TotalComparisons
	e.run = nil
	e.pending = nil
	e.setState(st)

	e.logger.Info("sort completed", "mode", r.mode, "items", len(sorted),
		"comparisons", r.comparisons.Load())
	r.resolve(sorted, false)
}

// compare answers from the cache or suspends until Submit or cancellation.
func (e *Engine) compare(ctx context.Context, r *Run, a, b string) (int, error) {
	if ctx.Err() != nil {
		return 0, errCancelled
	}

	e.mu.Lock()
	if e.run != r {
		e.mu.Unlock()
		return 0, errCancelled
	}
	if v, ok := e.cache.lookup(a, b); ok {
		e.mu.Unlock()
		e.logger.Debug("comparison answered from cache", "item_a", a, "item_b", b, "ordering", v)
		return v, nil
	}

	p := &pendingComparison{
		pair:  ComparisonPair{ItemA: a, ItemB: b},
		reply: make(chan int, 1),
	}
	e.pending = p
	st := e.state
	st.CurrentPair = &ComparisonPair{ItemA: a, ItemB: b}
	e.setState(st)
	e.mu.Unlock()

	e.logger.Debug("comparison requested", "item_a", a, "item_b", b)

	select {
	case v := <-p.reply:
		return v, nil
	case <-ctx.Done():
		return 0, errCancelled
	}
}

// Submit answers the pending comparison. The pair may be given in either
// order; the decision is read relative to the order given here.
func (e *Engine) Submit(itemA, itemB string, d Decision) error {
	v, ok := d.ordering()
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.pending
	if p == nil {
		return ErrNoPendingComparison
	}
	got, _ := keyFor(itemA, itemB)
	want, _ := keyFor(p.pair.ItemA, p.pair.ItemB)
	if got != want {
		return fmt.Errorf("%w: got (%q, %q), pending (%q, %q)",
			ErrPairMismatch, itemA, itemB, p.pair.ItemA, p.pair.ItemB)
	}

	e.cache.store(itemA, itemB, v)
	e.run.comparisons.Add(1)

	st := e.state
	st.CompletedComparisons++
	st.Progress = progressOf(st.CompletedComparisons, st.TotalComparisons)
	st.CurrentPair = nil
	e.pending = nil
	e.setState(st)

	e.logger.Debug("comparison decided", "item_a", itemA, "item_b", itemB, "decision", d,
		"completed", st.CompletedComparisons, "progress", st.Progress)

	// resume with the value oriented to the pair as it was asked
	resolved, _ := e.cache.lookup(p.pair.ItemA, p.pair.ItemB)
	p.reply <- resolved
	return nil
}

// Cancel abandons the active run: the state returns to the inactive
// snapshot and the run resolves to an empty slice at once. The suspended
// comparison is released so the run's goroutine exits.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.run
	if r == nil {
		e.setState(SortState{})
		return
	}
	e.logger.Info("sort cancelled", "completed", r.comparisons.Load())
	e.abortLocked(r)
}

func (e *Engine) abortLocked(r *Run) {
	e.run = nil
	e.pending = nil
	e.setState(SortState{})
	r.resolve([]string{}, true)
	r.cancel()
}

// State returns the latest published snapshot.
func (e *Engine) State() SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Pending returns the comparison waiting for an answer, if any.
func (e *Engine) Pending() (ComparisonPair, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return ComparisonPair{}, false
	}
	return e.pending.pair, true
}

// setState publishes st to every subscriber. Callers hold e.mu.
func (e *Engine) setState(st SortState) {
	e.state = st.clone()
	for s := range e.subs {
		s.push(st.clone())
	}
}

func (r *Run) resolve(result []string, cancelled bool) {
	if r.resolved {
		return
	}
	r.resolved = true
	r.result = result
	r.cancelled = cancelled
	close(r.done)
}

// Done is closed once the run has completed or been cancelled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run resolves or ctx ends.
func (r *Run) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancelled reports whether the run ended by cancellation. It is only
// meaningful after Done is closed.
func (r *Run) Cancelled() bool {
	select {
	case <-r.done:
		return r.cancelled
	default:
		return false
	}
}

// Mode reports the algorithm the run uses.
func (r *Run) Mode() Mode {
	return r.mode
}

// Comparisons is the number of answers actually submitted, which may
// differ from the estimate in SortState.
func (r *Run) Comparisons() int {
	return int(r.comparisons.Load())
}
