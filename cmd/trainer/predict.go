package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakenews-detector/backend/internal/artifact"
	"github.com/fakenews-detector/backend/internal/inference"
)

func (c *CLI) newPredictCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "predict <text>...",
		Short:   "Classify headlines with the persisted model",
		Args:    cobra.MinimumNArgs(1),
		Example: `  trainer predict "Senate passes budget bill" "You won't believe this video"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := inference.Load(artifact.NewFileStore(), c.cfg.Artifacts.ExtractorPath, c.cfg.Artifacts.ModelPath)
			if err != nil {
				return err
			}

			preds, err := model.Predict(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range preds {
				fmt.Fprintf(out, "%d\t%s\t%s\n", p.Label, p.Category, p.Text)
			}
			return nil
		},
	}
}
