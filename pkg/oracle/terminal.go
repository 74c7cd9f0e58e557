package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

// Terminal is the full-screen comparison view: both items side by side, a
// progress bar and the key legend.
//
//	a, 1, left   first item goes first
//	b, 2, right  second item goes first
//	=, e, space  no preference
//	q, Esc, ^C   abort the sort
type Terminal struct {
	screen tcell.Screen
	logger *slog.Logger

	events chan tcell.Event
	quit   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTerminal takes over screen, or the process terminal when screen is nil.
// Close must be called to restore the terminal.
func NewTerminal(screen tcell.Screen, logger *slog.Logger) (*Terminal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if screen == nil {
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return nil, fmt.Errorf("failed to create screen: %w", err)
		}
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}
	screen.HideCursor()
	screen.Clear()

	t := &Terminal{
		screen: screen,
		logger: logger.With("component", "terminal"),
		events: make(chan tcell.Event),
		quit:   make(chan struct{}),
	}

	t.wg.Add(1)
	go t.pollEvents()

	return t, nil
}

func (t *Terminal) pollEvents() {
	defer t.wg.Done()
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case t.events <- ev:
		case <-t.quit:
			return
		}
	}
}

// Close restores the terminal and stops the event reader.
func (t *Terminal) Close() {
	t.once.Do(func() {
		close(t.quit)
		t.screen.Fini()
		t.wg.Wait()
	})
}

func (t *Terminal) Decide(ctx context.Context, pair sorter.ComparisonPair, st sorter.SortState) (sorter.Decision, error) {
	t.render(pair, st)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev := <-t.events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				t.screen.Sync()
				t.render(pair, st)
			case *tcell.EventKey:
				d, ok, err := keyDecision(ev)
				if !ok {
					continue
				}
				if err != nil {
					t.logger.Info("sort aborted from keyboard")
					return "", err
				}
				return d, nil
			}
		}
	}
}

func keyDecision(ev *tcell.EventKey) (sorter.Decision, bool, error) {
	switch ev.Key() {
	case tcell.KeyLeft:
		return sorter.DecisionA, true, nil
	case tcell.KeyRight:
		return sorter.DecisionB, true, nil
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return "", true, ErrAborted
	case tcell.KeyRune:
	default:
		return "", false, nil
	}

	switch unicode.ToLower(ev.Rune()) {
	case 'a', '1':
		return sorter.DecisionA, true, nil
	case 'b', '2':
		return sorter.DecisionB, true, nil
	case '=', 'e', ' ':
		return sorter.DecisionEqual, true, nil
	case 'q':
		return "", true, ErrAborted
	default:
		return "", false, nil
	}
}

var (
	titleStyle  = tcell.StyleDefault.Bold(true)
	itemStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	keyStyle    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	barStyle    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	hintStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
)

func (t *Terminal) render(pair sorter.ComparisonPair, st sorter.SortState) {
	t.screen.Clear()
	width, height := t.screen.Size()
	if width < 20 || height < 8 {
		t.writeString(0, 0, "window too small", hintStyle)
		t.screen.Show()
		return
	}

	t.writeString(2, 1, "Which should rank higher?", titleStyle)

	half := width / 2
	t.drawCard(1, 3, half-2, "[a] ←", pair.ItemA)
	t.drawCard(half+1, 3, width-half-2, "[b] →", pair.ItemB)

	barRow := height - 4
	counter := fmt.Sprintf("Comparison %d of ~%d", st.CompletedComparisons+1, st.TotalComparisons)
	t.writeString(2, barRow-1, counter, hintStyle)
	t.drawProgress(2, barRow, width-4, st.Progress)

	t.writeString(2, height-2, "[=] equal   [q] quit", keyStyle)

	t.screen.Show()
}

func (t *Terminal) drawCard(x, y, w int, key, text string) {
	t.writeString(x, y, strings.Repeat("─", w), borderStyle)
	t.writeString(x+1, y+1, key, keyStyle)
	for i, line := range wrap(text, w-2, 4) {
		t.writeString(x+1, y+3+i, line, itemStyle)
	}
	t.writeString(x, y+8, strings.Repeat("─", w), borderStyle)
}

func (t *Terminal) drawProgress(x, y, w, progress int) {
	label := fmt.Sprintf(" %3d%%", min(progress, 100))
	barWidth := w - len(label)
	if barWidth < 1 {
		return
	}
	filled := barWidth * min(max(progress, 0), 100) / 100
	t.writeString(x, y, strings.Repeat("█", filled), barStyle)
	t.writeString(x+filled, y, strings.Repeat("░", barWidth-filled), hintStyle)
	t.writeString(x+barWidth, y, label, hintStyle)
}

func (t *Terminal) writeString(x, y int, s string, style tcell.Style) {
	col := x
	for _, ch := range s {
		t.screen.SetContent(col, y, ch, nil, style)
		col += max(runewidth.RuneWidth(ch), 1)
	}
}

// wrap breaks s into at most maxLines lines of at most width columns.
func wrap(s string, width, maxLines int) []string {
	if width < 1 {
		return nil
	}
	var (
		lines []string
		line  strings.Builder
		cols  int
	)
	for _, word := range strings.Fields(s) {
		ww := runewidth.StringWidth(word)
		if cols > 0 && cols+1+ww > width {
			lines = append(lines, line.String())
			line.Reset()
			cols = 0
		}
		if cols > 0 {
			line.WriteByte(' ')
			cols++
		}
		if ww > width {
			word = runewidth.Truncate(word, width-cols, "…")
			ww = runewidth.StringWidth(word)
		}
		line.WriteString(word)
		cols += ww
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] = runewidth.Truncate(lines[maxLines-1]+" …", width, "…")
	}
	return lines
}
