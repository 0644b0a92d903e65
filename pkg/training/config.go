package training

import (
	"errors"
	"fmt"

	"github.com/aiplatform-samples/digit-trainer/pkg/models"
)

// ErrMissingOutputPath indicates no model destination was configured for a
// run that would export a model.
var ErrMissingOutputPath = errors.New("a model output path is required unless hypertuning")

// Config holds everything a training run needs. It is populated from the
// command line.
type Config struct {
	// BatchSize is the number of examples per training step.
	BatchSize int
	// Epochs is the number of passes over the training split.
	Epochs int
	// JobDir is where scalar logs and hypertuning metrics are written.
	// Empty disables both.
	JobDir string
	// OutputPath is the directory the trained model is exported under.
	// Required unless Hypertune is set.
	OutputPath string
	// ModelType selects the architecture, "dense" or "cnn".
	ModelType string
	// Hypertune reports a single scalar metric instead of exporting the
	// model.
	Hypertune bool
	// DataDir is where dataset files are cached. Empty selects a per-user
	// cache directory.
	DataDir string
}

// Validate checks the configuration before any work begins.
func (c *Config) Validate() error {
	if _, err := models.ByName(c.ModelType); err != nil {
		return err
	}
	if !c.Hypertune && c.OutputPath == "" {
		return ErrMissingOutputPath
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", c.Epochs)
	}
	return nil
}
