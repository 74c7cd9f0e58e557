// Command listsorter ranks a list through pairwise comparisons and splits the
// ranking into tiers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GenericOctopus/ListSorter/internal/config"
	"github.com/GenericOctopus/ListSorter/internal/logging"
	"github.com/GenericOctopus/ListSorter/pkg/lists"
)

// app carries what every subcommand needs once the root has loaded settings.
type app struct {
	settings config.Settings
	store    lists.Store
	logger   *slog.Logger

	debug    bool
	envFiles []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// restore default handling so a second ^C exits at once
		stop()
	}()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "listsorter",
		Short: "Rank a list by pairwise comparisons and split it into tiers",
		Long: `Rank a list by answering "which goes first?" for pairs of items.

Answers are cached for the run, a merge sort keeps the number of questions
near n log n, and adding items to a ranked list only asks where the new
items belong. The ranking is then split into tiers (S to F by default) by
percentage weights.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringArrayVar(&a.envFiles, "env-file", nil, "Environment file to load (repeatable, default .env)")

	rootCmd.AddCommand(sortCmd(a))
	rootCmd.AddCommand(tiersCmd(a))
	rootCmd.AddCommand(moveCmd(a))
	rootCmd.AddCommand(listsCmd(a))

	return rootCmd
}

func (a *app) open(ctx context.Context, logOut io.Writer) error {
	settings, err := config.Load(a.envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.debug {
		settings.Log.Level = "debug"
	}
	a.settings = settings
	logging.SetupWriter(logOut, settings.Log)
	a.logger = logging.Component("listsorter-cli")

	store, err := lists.NewStore(ctx, settings.Store)
	if err != nil {
		return fmt.Errorf("failed to open list store: %w", err)
	}
	a.store = store
	a.logger.Debug("store opened", "backend", settings.Store.Backend, "owner", settings.Owner)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal results to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
