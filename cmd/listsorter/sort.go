package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GenericOctopus/ListSorter/internal/logging"
	"github.com/GenericOctopus/ListSorter/pkg/lists"
	"github.com/GenericOctopus/ListSorter/pkg/oracle"
	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

type sortOptions struct {
	file      string
	template  string
	forceJSON bool
	name      string
	listID    string
	full      bool
	save      bool
	oracle    string
	criterion string
	output    string
}

func sortCmd(a *app) *cobra.Command {
	var opts sortOptions

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Rank a list by answering pairwise comparisons",
		Long: `Rank a list by answering pairwise comparisons.

Items come from a file (-f, one per line or a JSON array) or from a saved
list (--list). Giving both adds the file's new items to the saved list, and
only those are placed into the existing ranking unless --full is set.

Oracles:
  tui      full-screen view (default on a terminal)
  stdin    line prompts on stderr, answers on stdin (default otherwise)
  llm      an OpenAI-compatible model decides, see --criterion
  dry-run  plain string order`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSort(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Input file (- for stdin)")
	cmd.Flags().StringVar(&opts.template, "template", "", "Template for each item in the input file (prefix with @ to use a file)")
	cmd.Flags().BoolVar(&opts.forceJSON, "json", false, "Force JSON parsing regardless of file extension")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "List name (defaults to the file name)")
	cmd.Flags().StringVar(&opts.listID, "list", "", "Saved list to sort or extend")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Re-sort everything instead of inserting new items")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the list and its ranking")
	cmd.Flags().StringVar(&opts.oracle, "oracle", "auto", "Who answers comparisons: auto, tui, stdin, llm, dry-run")
	cmd.Flags().StringVarP(&opts.criterion, "criterion", "p", "", "What ranks higher, for the llm oracle (prefix with @ to use a file)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "JSON output file")

	return cmd
}

func (a *app) runSort(ctx context.Context, cmd *cobra.Command, opts sortOptions) error {
	if opts.file == "" && opts.listID == "" {
		return fmt.Errorf("nothing to sort: give --file or --list")
	}

	var items []string
	if opts.file != "" {
		var err error
		if items, err = lists.LoadItems(a.logger, opts.file, opts.template, opts.forceJSON); err != nil {
			return err
		}
	}

	var (
		list   *lists.SavedList
		stored bool
	)
	if opts.listID != "" {
		var err error
		if list, err = a.store.Get(ctx, opts.listID); err != nil {
			return err
		}
		stored = true
		if added := list.AddItems(items...); added > 0 {
			a.logger.Info("items added to list", "list", list.ID, "added", added)
		}
		if opts.name != "" {
			list.Name = opts.name
		}
	} else {
		name := opts.name
		if name == "" && opts.file != "-" {
			name = baseName(opts.file)
		}
		list = lists.NewSavedList(a.settings.Owner, name, items)
	}

	if err := lists.ValidateForSort(list.Name, list.Items); err != nil {
		return err
	}

	o, sortLogger, closeOracle, err := a.newOracle(cmd, opts)
	if err != nil {
		return err
	}

	eng := sorter.New(&sorter.Config{Logger: sortLogger})
	run, err := eng.Start(ctx, sorter.Request{
		Items:         list.Items,
		AlreadySorted: list.SortedItems,
		ForceFull:     opts.full,
	})
	if err != nil {
		closeOracle()
		return err
	}

	sorted, err := oracle.Drive(ctx, eng, run, o)
	closeOracle()
	if errors.Is(err, oracle.ErrAborted) {
		a.logger.Info("sort aborted, nothing saved")
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Info("sort finished", "mode", run.Mode(), "items", len(sorted), "comparisons", run.Comparisons())

	list.Complete(sorted, a.settings.Tiers.Partition(sorted))

	if opts.save {
		if stored {
			err = a.store.Update(ctx, list)
		} else {
			err = a.store.Create(ctx, list)
		}
		if err != nil {
			return fmt.Errorf("failed to save list: %w", err)
		}
		a.logger.Info("list saved", "list", list.ID)
	}

	return a.writeResult(cmd, opts.output, list)
}

func (a *app) writeResult(cmd *cobra.Command, output string, v any) error {
	if output == "" {
		return printJSON(cmd.OutOrStdout(), v)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("results written to file", "file", output)
	return nil
}

// newOracle builds the answering side of a sort and the logger the sort
// should use while it runs. The returned func releases both and must be
// called before anything is printed.
func (a *app) newOracle(cmd *cobra.Command, opts sortOptions) (oracle.Oracle, *slog.Logger, func(), error) {
	noop := func() {}

	kind := opts.oracle
	if kind == "auto" {
		kind = "stdin"
		if isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) && opts.file != "-" {
			kind = "tui"
		}
	}

	switch kind {
	case "dry-run":
		return oracle.DryRun{}, a.logger, noop, nil
	case "stdin":
		if opts.file == "-" {
			return nil, nil, nil, fmt.Errorf("the stdin oracle cannot read answers when items come from stdin")
		}
		return oracle.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr()), a.logger, noop, nil
	case "tui":
		logger, closeLog, err := a.screenLogger()
		if err != nil {
			return nil, nil, nil, err
		}
		t, err := oracle.NewTerminal(nil, logger)
		if err != nil {
			closeLog()
			return nil, nil, nil, err
		}
		return t, logger, func() {
			t.Close()
			closeLog()
		}, nil
	case "llm":
		criterion, err := readPromptArg(opts.criterion)
		if err != nil {
			return nil, nil, nil, err
		}
		l, err := oracle.NewLLM(&oracle.LLMConfig{
			Criterion:   criterion,
			Model:       openai.ChatModel(a.settings.LLM.Model),
			APIKey:      a.settings.LLM.APIKey,
			BaseURL:     a.settings.LLM.BaseURL,
			Encoding:    a.settings.LLM.Encoding,
			TokenLimit:  a.settings.LLM.TokenLimit,
			MaxAttempts: a.settings.LLM.MaxAttempts,
			Logger:      a.logger,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create llm oracle: %w", err)
		}
		return l, a.logger, noop, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown oracle %q", opts.oracle)
	}
}

// screenLogger routes logs to the screen log file while the full-screen
// view owns the terminal.
func (a *app) screenLogger() (*slog.Logger, func(), error) {
	path := a.settings.ScreenLog
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open screen log: %w", err)
	}
	a.logger.Info("full-screen view active, logging to file", "file", path)

	logger := logging.New(f, a.settings.Log).With("component", "listsorter-cli")
	return logger, func() { f.Close() }, nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func readPromptArg(s string) (string, error) {
	if len(s) > 0 && s[0] == '@' {
		content, err := os.ReadFile(s[1:])
		if err != nil {
			return "", fmt.Errorf("could not read criterion file: %w", err)
		}
		return string(content), nil
	}
	return s, nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
