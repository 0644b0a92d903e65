package mnist

// Normalize rescales pixel bytes into float32 values in [0, 1].
func Normalize(images []byte) []float32 {
	out := make([]float32, len(images))
	for i, p := range images {
		out[i] = float32(p) / 255.0
	}
	return out
}

// OneHot encodes integer class labels as flat one-hot float32 vectors of
// width NumClasses. Labels must already be validated to be in range.
func OneHot(labels []byte) []float32 {
	out := make([]float32, len(labels)*NumClasses)
	for i, label := range labels {
		out[i*NumClasses+int(label)] = 1
	}
	return out
}

// InputDimensions returns the per-example image dimensions to use when
// feeding the model: flat vectors for models that consume flattened input,
// NHWC planes for models that need the spatial structure preserved.
func InputDimensions(needsReshape bool) []int {
	if needsReshape {
		return []int{ImageSize, ImageSize, 1}
	}
	return []int{ImagePixels}
}
