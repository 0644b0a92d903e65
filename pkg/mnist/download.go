package mnist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aiplatform-samples/digit-trainer/pkg/logging"
	"github.com/docker/go-units"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the mirror the dataset files are fetched from.
const DefaultBaseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

const (
	trainImagesFile = "train-images-idx3-ubyte.gz"
	trainLabelsFile = "train-labels-idx1-ubyte.gz"
	testImagesFile  = "t10k-images-idx3-ubyte.gz"
	testLabelsFile  = "t10k-labels-idx1-ubyte.gz"
)

// datasetFiles maps each file to the digest of its compressed contents. The
// digests are of the canonical distribution; the mirror serves identical bytes.
var datasetFiles = map[string]digest.Digest{
	trainImagesFile: "sha256:440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainLabelsFile: "sha256:3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	testImagesFile:  "sha256:8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	testLabelsFile:  "sha256:f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Download fetches any dataset files missing from dir, verifying every file
// (cached or fresh) against its known digest. Files are downloaded in
// parallel and written through a temporary file, so dir never holds a
// partially written dataset file.
func Download(ctx context.Context, log logging.Logger, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for name, want := range datasetFiles {
		name, want := name, want
		g.Go(func() error {
			path := filepath.Join(dir, name)
			if ok, err := verifyFile(path, want); err != nil {
				return err
			} else if ok {
				log.Debugf("%s already cached", name)
				return nil
			}
			return fetchFile(ctx, log, http.DefaultClient, DefaultBaseURL, dir, name, want)
		})
	}
	return g.Wait()
}

// verifyFile reports whether path exists with the wanted digest. A present
// file with the wrong digest is an error rather than a re-download trigger.
func verifyFile(path string, want digest.Digest) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "open cached %s", filepath.Base(path))
	}
	defer f.Close()
	got, err := digest.FromReader(f)
	if err != nil {
		return false, errors.Wrapf(err, "digest cached %s", filepath.Base(path))
	}
	if got != want {
		return false, fmt.Errorf("cached %s has digest %s, want %s; remove it and retry",
			filepath.Base(path), got, want)
	}
	return true, nil
}

// fetchFile downloads a single file into dir, verifying its digest before the
// final rename.
func fetchFile(ctx context.Context, log logging.Logger, client *http.Client, baseURL, dir, name string, want digest.Digest) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+name, nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", name)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetch %s", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %s", name, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, name+".download-*")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	digester := digest.SHA256.Digester()
	n, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), resp.Body)
	if err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	if got := digester.Digest(); got != want {
		return fmt.Errorf("downloaded %s has digest %s, want %s", name, got, want)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return errors.Wrapf(err, "store %s", name)
	}
	log.Infof("downloaded %s (%s)", name, units.HumanSize(float64(n)))
	return nil
}
