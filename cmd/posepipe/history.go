package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/posepipe/internal/display"
	"github.com/backmassage/posepipe/internal/history"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs recorded in history_db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			if cfg.HistoryDB == "" {
				return errors.WithHint(errors.New("history_db is not set"),
					"pass --history-db or set POSEPIPE_HISTORY_DB")
			}

			store, err := history.Open(cmd.Context(), cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			var table string
			if runID != "" {
				items, err := store.Items(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return errors.Newf("no items recorded for run %s", runID)
				}
				table, err = display.ItemsTable(items)
				if err != nil {
					return err
				}
			} else {
				runs, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
					return nil
				}
				table, err = display.RunsTable(runs)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the items of one run")
	return cmd
}
