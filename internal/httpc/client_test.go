package httpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model.onnx" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "model.onnx")

	n, err := Download(context.Background(), srv.Client(), srv.URL+"/model.onnx", dst)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("weights")) {
		t.Errorf("bytes: got %d", n)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "weights" {
		t.Errorf("file: %q, %v", data, err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "nested", "*.part"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestDownload_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "model.onnx")
	_, err := Download(context.Background(), srv.Client(), srv.URL+"/missing", dst)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination should not exist after a failed download")
	}
}

func TestDownload_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Download(ctx, nil, srv.URL, filepath.Join(t.TempDir(), "m")); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
