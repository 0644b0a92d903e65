// Package commands defines the trainer command line.
package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aiplatform-samples/digit-trainer/pkg/logging"
	"github.com/aiplatform-samples/digit-trainer/pkg/training"
)

// Version of the trainer binary.
const Version = "0.1.0"

// NewRootCmd creates the root trainer command.
func NewRootCmd() *cobra.Command {
	var cfg training.Config

	c := &cobra.Command{
		Use:     "trainer",
		Short:   "Train and evaluate a handwritten digit classifier",
		Long: "Train and evaluate a handwritten digit classifier on MNIST,\n" +
			"then export the model or report a hypertuning metric.",
		Version:      Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Both validations happen before any work begins.
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logging.NewComponentLogger("trainer")
			if err := training.TrainAndEvaluate(cmd.Context(), cfg, log); err != nil {
				return fmt.Errorf("training failed: %w", err)
			}
			if !cfg.Hypertune {
				cmd.Println(color.GreenString("Model written to %s/%s",
					cfg.OutputPath, training.ModelVersion))
			}
			return nil
		},
	}

	flags := c.Flags()
	flags.BoolVar(&cfg.Hypertune, "hypertune", false, "Report a scalar metric for hyperparameter search instead of exporting the model")
	flags.IntVar(&cfg.BatchSize, "batch-size", 128, "Batch size for the training")
	flags.IntVar(&cfg.Epochs, "epochs", 5, "Number of epochs for the training")
	flags.StringVar(&cfg.JobDir, "job-dir", "", "Directory for scalar logs and hypertuning metrics")
	flags.StringVar(&cfg.OutputPath, "model-output-path", "", "Directory to export the trained model to (required unless hypertuning)")
	flags.StringVar(&cfg.ModelType, "model-type", "dense", `Model architecture, "dense" or "cnn"`)
	flags.StringVar(&cfg.DataDir, "data-dir", "", "Directory to cache downloaded dataset files (defaults to the user cache)")

	return c
}
