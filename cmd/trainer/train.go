package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fakenews-detector/backend/internal/artifact"
	"github.com/fakenews-detector/backend/internal/metrics"
	"github.com/fakenews-detector/backend/internal/pipeline"
	"github.com/fakenews-detector/backend/internal/storage/sqlite"
	"github.com/fakenews-detector/backend/pkg/logger"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the training pipeline and persist the selected model",
		Args:  cobra.NoArgs,
		Example: `  trainer train
  trainer train --config config/config.yaml --no-history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics.Init()

			var opts []pipeline.Option
			if !noHistory {
				db, err := sqlite.NewClient(c.cfg.SQLite.Path)
				if err != nil {
					logger.Warn("Run history unavailable", zap.Error(err))
				} else {
					defer db.Close()
					if err := db.InitSchema(); err != nil {
						logger.Warn("Run history unavailable", zap.Error(err))
					} else {
						opts = append(opts, pipeline.WithRecorder(db))
					}
				}
			}

			p := pipeline.New(c.cfg, pipeline.NewFileLoader(c.cfg), artifact.NewFileStore(), opts...)
			summary, err := p.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", summary.RunID)
			for _, r := range summary.Candidates {
				if r.Err != nil {
					fmt.Fprintf(out, "  %-20s failed: %v\n", r.Name, r.Err)
					continue
				}
				fmt.Fprintf(out, "  %-20s cv=%.4f accuracy=%.4f (%s)\n", r.Name, r.CVScore, r.Accuracy, r.Params.Format())
			}
			fmt.Fprintf(out, "selected %s\n", summary.Describe())
			if summary.Report != nil {
				fmt.Fprintln(out, summary.Report)
			}
			fmt.Fprintf(out, "saved %s and %s in %s\n", summary.ExtractorPath, summary.ModelPath, summary.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the run in the SQLite history")
	return cmd
}
