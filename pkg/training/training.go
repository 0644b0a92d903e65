// Package training orchestrates a full train/evaluate run on top of the
// gomlx framework: datasets in, scalar logs and either a hypertuning metric
// or an exported model out.
package training

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"

	. "github.com/gomlx/gomlx/graph"
	mlctx "github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/commandline"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/exceptions"
	"github.com/gomlx/gomlx/types/tensor"

	"github.com/aiplatform-samples/digit-trainer/pkg/logging"
	"github.com/aiplatform-samples/digit-trainer/pkg/mnist"
	"github.com/aiplatform-samples/digit-trainer/pkg/models"
	"github.com/aiplatform-samples/digit-trainer/pkg/tfevents"
)

const (
	// ModelVersion is the subdirectory the exported model is written to,
	// the versioned layout model servers expect.
	ModelVersion = "1"
	// hypertuneMetricTag is the summary tag hyperparameter search reads.
	hypertuneMetricTag = "accuracy_live_class"

	learningRate      = 0.001
	scalarLogInterval = 100
)

// TrainAndEvaluate fetches the dataset and runs the configured training job.
// The context only governs the dataset download; the framework owns
// execution once training starts.
func TrainAndEvaluate(ctx context.Context, cfg Config, log logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ds, err := mnist.Fetch(ctx, log, cfg.DataDir)
	if err != nil {
		return err
	}
	return Run(cfg, ds, log)
}

// Run trains and evaluates on an already-loaded dataset. The framework
// signals graph and execution errors by panicking; they surface here as
// returned errors.
func Run(cfg Config, ds *mnist.Dataset, log logging.Logger) error {
	arch, err := models.ByName(cfg.ModelType)
	if err != nil {
		return err
	}
	var runErr error
	if caught := exceptions.TryCatch[error](func() {
		runErr = run(cfg, arch, ds, log)
	}); caught != nil {
		return fmt.Errorf("%s model run failed: %w", arch.Name, caught)
	}
	return runErr
}

func run(cfg Config, arch models.Architecture, ds *mnist.Dataset, log logging.Logger) error {
	manager := BuildManager().Done()
	ctx := mlctx.NewContext(manager)
	ctx.SetParam(optimizers.LearningRateKey, learningRate)

	trainDS, err := newDataset(manager, "train", ds.Train, arch)
	if err != nil {
		return fmt.Errorf("build train dataset: %w", err)
	}
	trainDS.BatchSize(cfg.BatchSize, true).Shuffle()

	trainer := train.NewTrainer(manager, ctx, arch.Graph,
		losses.CategoricalCrossEntropyLogits,
		optimizers.MustOptimizerByName("adam"),
		nil, nil)
	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	if cfg.JobDir != "" {
		dir := filepath.Join(cfg.JobDir, "logs", "scalars", time.Now().Format("20060102-150405"))
		scalars, err := tfevents.NewWriter(dir)
		if err != nil {
			return err
		}
		defer scalars.Close()
		train.EveryNSteps(loop, scalarLogInterval, "scalar-logs", 100,
			func(loop *train.Loop, metrics []tensor.Tensor) error {
				return scalars.WriteScalar("batch_loss", int64(loop.LoopStep),
					float32(scalarValue(metrics[0])))
			})
		log.Infof("writing scalar logs under %s", dir)
	}

	log.Infof("training %s model: %d epochs, batch size %d", arch.Name, cfg.Epochs, cfg.BatchSize)
	if _, err := loop.RunEpochs(trainDS, cfg.Epochs); err != nil {
		return fmt.Errorf("training loop: %w", err)
	}

	eval := newEvaluator(manager, ctx, arch)
	trainLoss, trainAcc := eval.measure(ds.Train, cfg.BatchSize)
	testLoss, testAcc := eval.measure(ds.Test, cfg.BatchSize)
	printResults(trainLoss, trainAcc, testLoss, testAcc)

	if cfg.Hypertune {
		return reportHypertuneMetric(cfg, loop.LoopStep, testAcc, log)
	}
	return exportModel(ctx, cfg.OutputPath, log)
}

// newDataset wraps one split as an in-memory framework dataset, rescaled and
// one-hot encoded, shaped per the architecture's input contract.
func newDataset(manager *Manager, name string, split mnist.Split, arch models.Architecture) (*data.InMemoryDataset, error) {
	dims := append([]int{split.Count()}, arch.InputDimensions()...)
	images := tensor.FromFlatDataAndDimensions(mnist.Normalize(split.Images), dims...)
	labels := tensor.FromFlatDataAndDimensions(mnist.OneHot(split.Labels), split.Count(), mnist.NumClasses)
	return data.InMemoryFromData(manager, name, []any{images}, []any{labels})
}

// evaluator runs the model in inference mode and accumulates loss and
// accuracy over a split.
type evaluator struct {
	exec *mlctx.Exec
	arch models.Architecture
}

func newEvaluator(manager *Manager, ctx *mlctx.Context, arch models.Architecture) *evaluator {
	exec := mlctx.NewExec(manager, ctx.Reuse(),
		func(ctx *mlctx.Context, images, labels *Node) []*Node {
			logits := arch.Graph(ctx, nil, []*Node{images})[0]
			lossPerExample := losses.CategoricalCrossEntropyLogits([]*Node{labels}, []*Node{logits})
			correct := ConvertType(Equal(ArgMax(logits, -1), ArgMax(labels, -1)), models.DType)
			return []*Node{ReduceAllSum(lossPerExample), ReduceAllSum(correct)}
		})
	return &evaluator{exec: exec, arch: arch}
}

// measure returns mean loss and accuracy over the split, evaluated in
// batches so that activations stay bounded.
func (e *evaluator) measure(split mnist.Split, batchSize int) (loss, accuracy float64) {
	total := split.Count()
	var lossSum, correctSum float64
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		n := end - start
		dims := append([]int{n}, e.arch.InputDimensions()...)
		images := tensor.FromFlatDataAndDimensions(
			mnist.Normalize(split.Images[start*mnist.ImagePixels:end*mnist.ImagePixels]), dims...)
		labels := tensor.FromFlatDataAndDimensions(
			mnist.OneHot(split.Labels[start:end]), n, mnist.NumClasses)
		results := e.exec.Call(images, labels)
		lossSum += scalarValue(results[0])
		correctSum += scalarValue(results[1])
	}
	return lossSum / float64(total), correctSum / float64(total)
}

func scalarValue(t tensor.Tensor) float64 {
	switch v := t.Local().Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return math.NaN()
	}
}

func printResults(trainLoss, trainAcc, testLoss, testAcc float64) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Split", "Loss", "Accuracy"})
	table.Append([]string{"train", fmt.Sprintf("%.4f", trainLoss), fmt.Sprintf("%.2f%%", trainAcc*100)})
	table.Append([]string{"test", fmt.Sprintf("%.4f", testLoss), fmt.Sprintf("%.2f%%", testAcc*100)})
	table.Render()
}

// reportHypertuneMetric emits the final test accuracy as the single scalar
// the hyperparameter search reads.
func reportHypertuneMetric(cfg Config, step int, accuracy float64, log logging.Logger) error {
	if cfg.JobDir == "" {
		log.Warnf("hypertuning without a job dir, %s metric not reported", hypertuneMetricTag)
		return nil
	}
	w, err := tfevents.NewWriter(filepath.Join(cfg.JobDir, hypertuneMetricTag))
	if err != nil {
		return err
	}
	if err := w.WriteScalar(hypertuneMetricTag, int64(step), float32(accuracy)); err != nil {
		w.Close()
		return err
	}
	log.Infof("reported %s=%.4f", hypertuneMetricTag, accuracy)
	return w.Close()
}

// exportModel saves the trained variables as a framework checkpoint under a
// versioned subdirectory.
func exportModel(ctx *mlctx.Context, outputPath string, log logging.Logger) error {
	dir := filepath.Join(outputPath, ModelVersion)
	checkpoint, err := checkpoints.Build(ctx).DirFromBase(dir, ".").Keep(1).Done()
	if err != nil {
		return fmt.Errorf("prepare model export: %w", err)
	}
	if err := checkpoint.Save(); err != nil {
		return fmt.Errorf("export model: %w", err)
	}
	log.Infof("model exported to %s", dir)
	return nil
}
