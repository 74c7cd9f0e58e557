package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine() *sorter.Engine {
	return sorter.New(&sorter.Config{Logger: discardLogger()})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDriveFullSort(t *testing.T) {
	ctx := testContext(t)
	eng := newEngine()

	run, err := eng.Start(ctx, sorter.Request{Items: []string{"pear", "fig", "apple", "kiwi", "date"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	asked := 0
	got, err := Drive(ctx, eng, run, Func(func(ctx context.Context, p sorter.ComparisonPair, st sorter.SortState) (sorter.Decision, error) {
		asked++
		if !st.IsActive {
			t.Errorf("asked while inactive: %+v", st)
		}
		return DryRun{}.Decide(ctx, p, st)
	}))
	if err != nil {
		t.Fatalf("Drive failed: %v", err)
	}

	if want := []string{"apple", "date", "fig", "kiwi", "pear"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if asked != run.Comparisons() {
		t.Errorf("oracle asked %d times, run counted %d", asked, run.Comparisons())
	}
	if st := eng.State(); st.IsActive || st.Progress != 100 {
		t.Errorf("final state = %+v", st)
	}
}

func TestDriveIncremental(t *testing.T) {
	ctx := testContext(t)
	eng := newEngine()

	run, err := eng.Start(ctx, sorter.Request{
		Items:         []string{"b", "d", "f", "c", "e"},
		AlreadySorted: []string{"b", "d", "f"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got, err := Drive(ctx, eng, run, DryRun{})
	if err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	if want := []string{"b", "c", "d", "e", "f"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDriveNothingToAsk(t *testing.T) {
	ctx := testContext(t)
	eng := newEngine()

	run, err := eng.Start(ctx, sorter.Request{Items: []string{"only"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	got, err := Drive(ctx, eng, run, Func(func(context.Context, sorter.ComparisonPair, sorter.SortState) (sorter.Decision, error) {
		t.Error("oracle should not be asked")
		return sorter.DecisionEqual, nil
	}))
	if err != nil {
		t.Fatalf("Drive failed: %v", err)
	}
	if !slices.Equal(got, []string{"only"}) {
		t.Errorf("got %v", got)
	}
}

func TestDriveAbort(t *testing.T) {
	ctx := testContext(t)
	eng := newEngine()

	run, err := eng.Start(ctx, sorter.Request{Items: []string{"a", "b", "c", "d"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	answers := 0
	_, err = Drive(ctx, eng, run, Func(func(ctx context.Context, p sorter.ComparisonPair, st sorter.SortState) (sorter.Decision, error) {
		answers++
		if answers == 3 {
			return "", ErrAborted
		}
		return sorter.DecisionA, nil
	}))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Drive error = %v, want ErrAborted", err)
	}

	if !run.Cancelled() {
		t.Error("run not cancelled")
	}
	if st := eng.State(); st.IsActive || st.CurrentPair != nil || st.TotalComparisons != 0 {
		t.Errorf("state not reset: %+v", st)
	}

	// the engine is usable again
	run, err = eng.Start(ctx, sorter.Request{Items: []string{"y", "x"}})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	got, err := Drive(ctx, eng, run, DryRun{})
	if err != nil || !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("restart got %v, %v", got, err)
	}
}

func TestDriveOracleFailure(t *testing.T) {
	ctx := testContext(t)
	eng := newEngine()

	run, err := eng.Start(ctx, sorter.Request{Items: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	boom := errors.New("model unavailable")
	_, err = Drive(ctx, eng, run, Func(func(context.Context, sorter.ComparisonPair, sorter.SortState) (sorter.Decision, error) {
		return "", boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("Drive error = %v", err)
	}
	if eng.State().IsActive {
		t.Error("run still active after oracle failure")
	}
}

func TestDriveContextCancel(t *testing.T) {
	eng := newEngine()

	run, err := eng.Start(context.Background(), sorter.Request{Items: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	asked := make(chan struct{})
	go func() {
		<-asked
		cancel()
	}()

	_, err = Drive(ctx, eng, run, Func(func(ctx context.Context, _ sorter.ComparisonPair, _ sorter.SortState) (sorter.Decision, error) {
		close(asked)
		<-ctx.Done()
		return "", ctx.Err()
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Drive error = %v, want context.Canceled", err)
	}

	select {
	case <-run.Done():
	default:
		t.Fatal("run still pending after Drive returned")
	}
	if !run.Cancelled() {
		t.Error("run not marked cancelled")
	}
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		a, b string
		want sorter.Decision
	}{
		{"apple", "banana", sorter.DecisionA},
		{"banana", "apple", sorter.DecisionB},
		{"same", "same", sorter.DecisionEqual},
	}
	for _, tt := range tests {
		got, err := DryRun{}.Decide(ctx, sorter.ComparisonPair{ItemA: tt.a, ItemB: tt.b}, sorter.SortState{})
		if err != nil || got != tt.want {
			t.Errorf("DryRun(%q, %q) = %v, %v; want %v", tt.a, tt.b, got, err, tt.want)
		}
	}
}

func TestPrompt(t *testing.T) {
	ctx := context.Background()
	pair := sorter.ComparisonPair{ItemA: "tea", ItemB: "coffee"}
	st := sorter.SortState{IsActive: true, TotalComparisons: 8, CompletedComparisons: 2, Progress: 25}

	var out strings.Builder
	p := NewPrompt(strings.NewReader("maybe\nB\n=\n  a  \nq\n"), &out)

	for _, want := range []sorter.Decision{sorter.DecisionB, sorter.DecisionEqual, sorter.DecisionA} {
		got, err := p.Decide(ctx, pair, st)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	if _, err := p.Decide(ctx, pair, st); !errors.Is(err, ErrAborted) {
		t.Errorf("q gave %v, want ErrAborted", err)
	}
	if _, err := p.Decide(ctx, pair, st); !errors.Is(err, ErrAborted) {
		t.Errorf("EOF gave %v, want ErrAborted", err)
	}

	text := out.String()
	for _, want := range []string{"Comparison 3 of ~8 (25%)", "[a] tea", "[b] coffee", `Unrecognised answer "maybe"`} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt output missing %q:\n%s", want, text)
		}
	}
}

func TestPromptLastLineWithoutNewline(t *testing.T) {
	p := NewPrompt(strings.NewReader("b"), io.Discard)
	got, err := p.Decide(context.Background(), sorter.ComparisonPair{ItemA: "x", ItemB: "y"}, sorter.SortState{})
	if err != nil || got != sorter.DecisionB {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestPromptReturnsOnCancelWhileReading(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	p := NewPrompt(pr, io.Discard)
	pair := sorter.ComparisonPair{ItemA: "x", ItemB: "y"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Decide(ctx, pair, sorter.SortState{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Decide still blocked on the reader after cancel")
	}

	// the outstanding read carries over to the next question
	go pw.Write([]byte("a\n"))
	got, err := p.Decide(testContext(t), pair, sorter.SortState{})
	if err != nil || got != sorter.DecisionA {
		t.Errorf("got %v, %v, want A", got, err)
	}
}
