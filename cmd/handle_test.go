package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/wab2b/wab2b-helper/internal/attachment"
)

func handleTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFileServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunHandlePrintedFileOutlivesCommand(t *testing.T) {
	payload := []byte("attachment payload")
	ts := newFileServer(t, payload)

	var buf bytes.Buffer
	if err := runHandle(context.Background(), ts.URL+"/report.bin", "", &buf, handleTestLogger()); err != nil {
		t.Fatalf("runHandle failed: %v", err)
	}

	var info attachment.FileInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(filepath.Dir(info.FilePath)) })

	// The printed path must still be readable after the command returns
	data, err := os.ReadFile(info.FilePath)
	if err != nil {
		t.Fatalf("Printed file_path is not readable: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("File content = %q, want %q", data, payload)
	}
	if info.FileName != "report.bin" {
		t.Errorf("FileName = %q, want %q", info.FileName, "report.bin")
	}
}

func TestRunHandleSchemePrefixAccepted(t *testing.T) {
	ts := newFileServer(t, []byte("deep link"))

	var buf bytes.Buffer
	if err := runHandle(context.Background(), "wab2b-helper:"+ts.URL+"/file.bin", "", &buf, handleTestLogger()); err != nil {
		t.Fatalf("runHandle failed: %v", err)
	}

	var info attachment.FileInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(filepath.Dir(info.FilePath)) })

	if info.OriginalURL != ts.URL+"/file.bin" {
		t.Errorf("OriginalURL = %q, want %q", info.OriginalURL, ts.URL+"/file.bin")
	}
	if _, err := os.Stat(info.FilePath); err != nil {
		t.Errorf("Printed file_path is not readable: %v", err)
	}
}

func TestRunHandleSaveToCleansUpTempStore(t *testing.T) {
	payload := []byte("saved payload")
	ts := newFileServer(t, payload)

	dest := filepath.Join(t.TempDir(), "saved.bin")
	var buf bytes.Buffer
	if err := runHandle(context.Background(), ts.URL+"/file.bin", dest, &buf, handleTestLogger()); err != nil {
		t.Fatalf("runHandle failed: %v", err)
	}

	var info attachment.FileInfo
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}

	if info.FilePath != dest {
		t.Errorf("FilePath = %q, want save destination %q", info.FilePath, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Saved file is not readable: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Saved content = %q, want %q", data, payload)
	}
}
