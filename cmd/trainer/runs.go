package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakenews-detector/backend/internal/storage/sqlite"
)

func (c *CLI) newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1, got %d", limit)
			}

			db, err := sqlite.NewClient(c.cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(); err != nil {
				return err
			}

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tWINNER\tACCURACY\tDETAIL")
			for _, run := range runs {
				detail := run.Params
				if run.Error != "" {
					detail = run.Stage + ": " + run.Error
				}
				accuracy := "-"
				if run.Winner != "" {
					accuracy = fmt.Sprintf("%.4f", run.Accuracy)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.StartedAt.Format(time.RFC3339), run.Status, run.Winner, accuracy, detail)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
