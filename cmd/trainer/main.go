// Command trainer trains the fake news classifier and inspects its results.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakenews-detector/backend/internal/errs"
	"github.com/fakenews-detector/backend/internal/pipeline"
	"github.com/fakenews-detector/backend/internal/storage/sqlite"
	"github.com/fakenews-detector/backend/pkg/config"
	"github.com/fakenews-detector/backend/pkg/logger"
)

var _ pipeline.Recorder = (*sqlite.Client)(nil)

type CLI struct {
	configPath string
	cfg        *config.Config
}

func main() {
	if err := newRootCommand(&CLI{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func newRootCommand(c *CLI) *cobra.Command {
	root := &cobra.Command{
		Use:           "trainer",
		Short:         "Train and inspect the fake news classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(c.configPath)
			if err != nil {
				return errs.New(errs.StageConfig, errs.KindConfig, "failed to load config", err)
			}
			if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to a config file (default: search ., ./config, /etc/fakenews)")

	root.AddCommand(
		c.newTrainCommand(),
		c.newPredictCommand(),
		c.newRunsCommand(),
	)
	return root
}

// describe renders err for the terminal, leading with the failed stage.
func describe(err error) string {
	var tagged *errs.Error
	if errors.As(err, &tagged) {
		return fmt.Sprintf("error: stage %s failed (%s): %v", tagged.Stage, tagged.Kind, err)
	}
	return "error: " + err.Error()
}
