package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type listSummary struct {
	ID        string `json:"id"`
	Name      string `json:"listName"`
	Items     int    `json:"items"`
	Completed bool   `json:"completed"`
	CreatedAt string `json:"createdAt"`
}

func listsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Manage saved lists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Show your saved lists, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := a.store.ListByOwner(cmd.Context(), a.settings.Owner)
			if err != nil {
				return err
			}
			out := make([]listSummary, 0, len(saved))
			for _, l := range saved {
				out = append(out, listSummary{
					ID:        l.ID,
					Name:      l.Name,
					Items:     len(l.Items),
					Completed: l.Completed,
					CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <list-id>",
		Short: "Print a saved list with its ranking and tiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), l)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <list-id>",
		Short: "Delete a saved list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete list: %w", err)
			}
			a.logger.Info("list deleted", "list", args[0])
			return nil
		},
	})

	return cmd
}
