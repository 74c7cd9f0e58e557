package oracle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

// Prompt asks on a line-oriented terminal, for pipes and dumb terminals
// where the full-screen view cannot run.
//
// Lines are read on a separate goroutine so Decide returns as soon as ctx
// ends. A read left outstanding by a cancelled Decide is picked up by the
// next one.
type Prompt struct {
	in      *bufio.Reader
	out     io.Writer
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) Decide(ctx context.Context, pair sorter.ComparisonPair, st sorter.SortState) (sorter.Decision, error) {
	fmt.Fprintf(p.out, "\nComparison %d of ~%d (%d%%)\n", st.CompletedComparisons+1, st.TotalComparisons, st.Progress)
	fmt.Fprintf(p.out, "  [a] %s\n  [b] %s\n", pair.ItemA, pair.ItemB)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(p.out, "Which goes first? (a, b, = for equal, q to quit): ")

		line, err := p.readLine(ctx)
		if cerr := ctx.Err(); cerr != nil {
			return "", cerr
		}
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return "", ErrAborted
			}
			return "", fmt.Errorf("failed to read answer: %w", err)
		}

		answer := strings.TrimSpace(line)
		if strings.EqualFold(answer, "q") || strings.EqualFold(answer, "quit") {
			return "", ErrAborted
		}
		d, perr := sorter.ParseDecision(answer)
		if perr == nil {
			return d, nil
		}
		fmt.Fprintf(p.out, "Unrecognised answer %q.\n", answer)
		if err != nil {
			// last line of input was not an answer
			return "", ErrAborted
		}
	}
}

func (p *Prompt) readLine(ctx context.Context) (string, error) {
	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case r := <-p.pending:
		p.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
