package mnist

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]byte{0, 51, 255})
	want := []float32{0, 0.2, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %v, want %v", i, got[i], want[i])
		}
	}
	for i, v := range got {
		if v < 0 || v > 1 {
			t.Errorf("pixel %d = %v outside [0, 1]", i, v)
		}
	}
}

func TestOneHot(t *testing.T) {
	labels := []byte{0, 3, 9}
	got := OneHot(labels)
	if len(got) != len(labels)*NumClasses {
		t.Fatalf("len = %d, want %d", len(got), len(labels)*NumClasses)
	}
	for i, label := range labels {
		for class := 0; class < NumClasses; class++ {
			want := float32(0)
			if class == int(label) {
				want = 1
			}
			if got[i*NumClasses+class] != want {
				t.Errorf("row %d class %d = %v, want %v", i, class, got[i*NumClasses+class], want)
			}
		}
	}
}

func TestInputDimensions(t *testing.T) {
	if got := InputDimensions(false); len(got) != 1 || got[0] != ImagePixels {
		t.Errorf("flat dimensions = %v, want [%d]", got, ImagePixels)
	}
	got := InputDimensions(true)
	if len(got) != 3 || got[0] != ImageSize || got[1] != ImageSize || got[2] != 1 {
		t.Errorf("reshaped dimensions = %v, want [%d %d 1]", got, ImageSize, ImageSize)
	}
}
