package mnist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"

	"github.com/aiplatform-samples/digit-trainer/pkg/logging"
)

func TestFetchFile(t *testing.T) {
	payload := []byte("not really a dataset file, but bytes are bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	want := digest.FromBytes(payload)
	err := fetchFile(context.Background(), logging.Discard(), server.Client(),
		server.URL+"/", dir, "data.gz", want)
	if err != nil {
		t.Fatalf("fetchFile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "data.gz"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("downloaded contents differ from served payload")
	}
	// No stray temporary files after a successful download.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1", len(entries))
	}
}

func TestFetchFileDigestMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	dir := t.TempDir()
	err := fetchFile(context.Background(), logging.Discard(), server.Client(),
		server.URL+"/", dir, "data.gz", digest.FromBytes([]byte("expected")))
	if err == nil {
		t.Fatal("fetchFile succeeded, want digest mismatch")
	}
	if !strings.Contains(err.Error(), "digest") {
		t.Errorf("error %q does not mention the digest", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "data.gz")); !os.IsNotExist(statErr) {
		t.Error("mismatching file was kept")
	}
}

func TestFetchFileHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	err := fetchFile(context.Background(), logging.Discard(), server.Client(),
		server.URL+"/", t.TempDir(), "data.gz", digest.FromBytes(nil))
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Errorf("err = %v, want unexpected status", err)
	}
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("cached bytes")
	path := filepath.Join(dir, "cached.gz")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	ok, err := verifyFile(path, digest.FromBytes(payload))
	if err != nil || !ok {
		t.Errorf("verifyFile(valid) = %v, %v; want true, nil", ok, err)
	}

	ok, err = verifyFile(filepath.Join(dir, "absent.gz"), digest.FromBytes(payload))
	if err != nil || ok {
		t.Errorf("verifyFile(absent) = %v, %v; want false, nil", ok, err)
	}

	_, err = verifyFile(path, digest.FromBytes([]byte("other")))
	if err == nil || !strings.Contains(err.Error(), "remove it and retry") {
		t.Errorf("verifyFile(corrupt) = %v, want corruption error", err)
	}
}
