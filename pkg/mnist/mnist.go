// Package mnist acquires, verifies and decodes the MNIST handwritten digit
// dataset, and prepares it for training.
package mnist

import (
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aiplatform-samples/digit-trainer/pkg/logging"
	"github.com/pkg/errors"
)

const (
	// ImageSize is the width and height of every MNIST image, in pixels.
	ImageSize = 28
	// ImagePixels is the number of pixels per image.
	ImagePixels = ImageSize * ImageSize
	// NumClasses is the number of digit classes.
	NumClasses = 10

	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// Split holds one partition of the dataset. Images are stored row-major, one
// byte per pixel, ImagePixels bytes per image.
type Split struct {
	Images []byte
	Labels []byte
}

// Count returns the number of examples in the split.
func (s *Split) Count() int {
	return len(s.Labels)
}

// Dataset is the full dataset, partitioned the way the upstream files are.
type Dataset struct {
	Train Split
	Test  Split
}

// Fetch ensures the four dataset files exist (verified) under dir, downloading
// any that are missing, and decodes them. An empty dir selects a per-user
// cache directory.
func Fetch(ctx context.Context, log logging.Logger, dir string) (*Dataset, error) {
	dir, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	if err := Download(ctx, log, dir); err != nil {
		return nil, errors.Wrap(err, "download dataset")
	}
	return Load(dir)
}

// Load decodes the four dataset files found under dir.
func Load(dir string) (*Dataset, error) {
	var ds Dataset
	for _, part := range []struct {
		split  *Split
		images string
		labels string
	}{
		{&ds.Train, trainImagesFile, trainLabelsFile},
		{&ds.Test, testImagesFile, testLabelsFile},
	} {
		images, err := decodeFile(filepath.Join(dir, part.images), decodeImages)
		if err != nil {
			return nil, err
		}
		labels, err := decodeFile(filepath.Join(dir, part.labels), decodeLabels)
		if err != nil {
			return nil, err
		}
		if len(images)/ImagePixels != len(labels) {
			return nil, fmt.Errorf("split %q has %d images but %d labels",
				part.images, len(images)/ImagePixels, len(labels))
		}
		part.split.Images = images
		part.split.Labels = labels
	}
	return &ds, nil
}

func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(cache, "digit-trainer", "mnist"), nil
}

func decodeFile(path string, decode func(io.Reader) ([]byte, error)) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filepath.Base(path))
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress %s", filepath.Base(path))
	}
	defer gz.Close()
	data, err := decode(gz)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return data, nil
}

// decodeImages parses an IDX3 image file: a 16-byte header (magic, count,
// rows, cols) followed by count*rows*cols pixel bytes.
func decodeImages(r io.Reader) ([]byte, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, fmt.Errorf("bad image file magic 0x%08x", header[0])
	}
	if header[2] != ImageSize || header[3] != ImageSize {
		return nil, fmt.Errorf("unexpected image dimensions %dx%d", header[2], header[3])
	}
	data := make([]byte, int(header[1])*ImagePixels)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read %d images: %w", header[1], err)
	}
	return data, nil
}

// decodeLabels parses an IDX1 label file: an 8-byte header (magic, count)
// followed by count label bytes, each in [0, 9].
func decodeLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("bad label file magic 0x%08x", header[0])
	}
	data := make([]byte, header[1])
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read %d labels: %w", header[1], err)
	}
	for i, label := range data {
		if label >= NumClasses {
			return nil, fmt.Errorf("label %d at index %d out of range", label, i)
		}
	}
	return data, nil
}
