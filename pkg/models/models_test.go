package models

import (
	"errors"
	"testing"

	"github.com/aiplatform-samples/digit-trainer/pkg/mnist"
)

func TestByName(t *testing.T) {
	tests := []struct {
		name         string
		wantErr      bool
		needsReshape bool
		layers       int
	}{
		{name: "dense", needsReshape: false, layers: 3},
		{name: "cnn", needsReshape: true, layers: 8},
		{name: "resnet", wantErr: true},
		{name: "", wantErr: true},
		{name: "DENSE", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			arch, err := ByName(tc.name)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownModelType) {
					t.Fatalf("err = %v, want ErrUnknownModelType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ByName(%q): %v", tc.name, err)
			}
			if arch.Name != tc.name {
				t.Errorf("Name = %q, want %q", arch.Name, tc.name)
			}
			if arch.NeedsReshape != tc.needsReshape {
				t.Errorf("NeedsReshape = %v, want %v", arch.NeedsReshape, tc.needsReshape)
			}
			if len(arch.Layers) != tc.layers {
				t.Errorf("layer count = %d, want %d", len(arch.Layers), tc.layers)
			}
			if got := arch.OutputClasses(); got != mnist.NumClasses {
				t.Errorf("OutputClasses = %d, want %d", got, mnist.NumClasses)
			}
		})
	}
}

func TestInputDimensions(t *testing.T) {
	dense := Dense()
	if got := dense.InputDimensions(); len(got) != 1 || got[0] != mnist.ImagePixels {
		t.Errorf("dense input dimensions = %v, want [%d]", got, mnist.ImagePixels)
	}
	cnn := CNN()
	got := cnn.InputDimensions()
	if len(got) != 3 || got[0] != mnist.ImageSize || got[1] != mnist.ImageSize || got[2] != 1 {
		t.Errorf("cnn input dimensions = %v, want [%d %d 1]", got, mnist.ImageSize, mnist.ImageSize)
	}
}

func TestStacksEndInLogits(t *testing.T) {
	for _, arch := range []Architecture{Dense(), CNN()} {
		last := arch.Layers[len(arch.Layers)-1]
		if last.Kind != LayerDense {
			t.Errorf("%s: last layer is %s, want dense", arch.Name, last.Kind)
		}
		if last.Relu {
			t.Errorf("%s: final layer must output logits, found relu", arch.Name)
		}
		if last.Units != mnist.NumClasses {
			t.Errorf("%s: final width = %d, want %d", arch.Name, last.Units, mnist.NumClasses)
		}
	}
}
