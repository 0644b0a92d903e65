// Package models defines the predefined classifier architectures as
// declarative layer stacks and builds their computation graphs.
package models

import (
	"errors"
	"fmt"

	"github.com/aiplatform-samples/digit-trainer/pkg/mnist"
)

// ErrUnknownModelType indicates a model type outside the predefined set.
var ErrUnknownModelType = errors.New(`unknown model type (valid types are "dense" and "cnn")`)

// LayerKind identifies a layer primitive in an architecture's stack.
type LayerKind string

const (
	LayerDense   LayerKind = "dense"
	LayerConv    LayerKind = "conv"
	LayerPool    LayerKind = "pool"
	LayerFlatten LayerKind = "flatten"
	LayerDropout LayerKind = "dropout"
)

// Layer describes one layer of an architecture. Only the fields relevant to
// the layer's kind are set.
type Layer struct {
	Kind LayerKind
	// Units is the output width of a dense layer.
	Units int
	// Filters and Kernel configure a convolution.
	Filters int
	Kernel  int
	// Window is the pooling window (and stride).
	Window int
	// Rate is the dropout rate.
	Rate float64
	// Relu marks layers followed by a relu activation. The final dense
	// layer never sets it: the model outputs logits.
	Relu bool
}

// Architecture is a predefined model: an ordered stack of layers plus the
// input contract.
type Architecture struct {
	// Name is the model type selected on the command line.
	Name string
	// NeedsReshape is true when the model consumes NHWC image planes
	// rather than flattened pixel vectors.
	NeedsReshape bool
	// Layers is the stack, applied in order.
	Layers []Layer
}

// Dense returns the fully-connected architecture: one hidden layer of 128
// relu units with dropout, over flattened input.
func Dense() Architecture {
	return Architecture{
		Name:         "dense",
		NeedsReshape: false,
		Layers: []Layer{
			{Kind: LayerDense, Units: 128, Relu: true},
			{Kind: LayerDropout, Rate: 0.2},
			{Kind: LayerDense, Units: mnist.NumClasses},
		},
	}
}

// CNN returns the convolutional architecture: two conv/pool blocks followed
// by a dense head, over NHWC input.
func CNN() Architecture {
	return Architecture{
		Name:         "cnn",
		NeedsReshape: true,
		Layers: []Layer{
			{Kind: LayerConv, Filters: 32, Kernel: 3, Relu: true},
			{Kind: LayerPool, Window: 2},
			{Kind: LayerConv, Filters: 64, Kernel: 3, Relu: true},
			{Kind: LayerPool, Window: 2},
			{Kind: LayerFlatten},
			{Kind: LayerDense, Units: 128, Relu: true},
			{Kind: LayerDropout, Rate: 0.5},
			{Kind: LayerDense, Units: mnist.NumClasses},
		},
	}
}

// ByName returns the architecture for a model type.
func ByName(name string) (Architecture, error) {
	switch name {
	case "dense":
		return Dense(), nil
	case "cnn":
		return CNN(), nil
	default:
		return Architecture{}, fmt.Errorf("%w: %q", ErrUnknownModelType, name)
	}
}

// InputDimensions returns the per-example input dimensions the architecture
// expects.
func (a Architecture) InputDimensions() []int {
	return mnist.InputDimensions(a.NeedsReshape)
}

// OutputClasses returns the width of the final dense layer.
func (a Architecture) OutputClasses() int {
	for i := len(a.Layers) - 1; i >= 0; i-- {
		if a.Layers[i].Kind == LayerDense {
			return a.Layers[i].Units
		}
	}
	return 0
}
