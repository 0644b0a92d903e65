package models

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/types/shapes"
)

// DType is the data type used for model inputs and weights.
const DType = shapes.Float32

// Graph builds the computation graph for the architecture. It matches the
// model function signature the framework's trainer expects, and returns the
// logits: softmax is left to the loss.
func (a Architecture) Graph(ctx *context.Context, spec any, inputs []*Node) []*Node {
	_ = spec // Not used.
	x := inputs[0]
	g := x.Graph()
	for i, layer := range a.Layers {
		scope := ctx.In(fmt.Sprintf("%03d_%s", i, layer.Kind))
		switch layer.Kind {
		case LayerDense:
			x = layers.DenseWithBias(scope, x, layer.Units)
		case LayerConv:
			x = layers.Convolution(scope, x).
				KernelSize(layer.Kernel).Filters(layer.Filters).Strides(1).Done()
		case LayerPool:
			x = MaxPool(x).Window(layer.Window).Done()
		case LayerFlatten:
			dims := x.Shape().Dimensions
			flat := 1
			for _, d := range dims[1:] {
				flat *= d
			}
			x = Reshape(x, dims[0], flat)
		case LayerDropout:
			x = layers.Dropout(scope, x, ConstAsDType(g, DType, layer.Rate))
		}
		if layer.Relu {
			x = layers.Relu(x)
		}
	}
	return []*Node{x}
}
