package update

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	downloadBufferSize = 64 * 1024
	// Progress callbacks are throttled to this interval; the first and the
	// final callback always fire.
	progressInterval = 250 * time.Millisecond
)

// HTTPDownloader streams release artifacts to disk and verifies SHA-256
// content hashes. Safe for concurrent use; each Download call owns its
// destination path exclusively.
type HTTPDownloader struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPDownloader creates a downloader with a pooled client.
func NewHTTPDownloader(logger *slog.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: cleanhttp.DefaultPooledClient(),
		logger: logger,
	}
}

// Download fetches url into destination, creating parent directories as
// needed. Progress callbacks are monotonic and bounded in frequency; the
// final callback reports downloaded == total. Cancelling ctx aborts the
// transfer.
func (d *HTTPDownloader) Download(ctx context.Context, url, destination string, progress ProgressFunc) (string, error) {
	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", NewError(ErrCodeIO, "failed to create download directory", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", NewError(ErrCodeNetwork, "invalid download URL", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", NewError(ErrCodeNetwork, "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewError(ErrCodeNetwork,
			fmt.Sprintf("download request returned status %d", resp.StatusCode), nil)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	file, err := os.Create(destination)
	if err != nil {
		return "", NewError(ErrCodeIO, "failed to create destination file", err)
	}
	defer file.Close()

	var downloaded int64
	lastEmit := time.Time{}
	buf := make([]byte, downloadBufferSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return "", NewError(ErrCodeIO, "failed to write destination file", writeErr)
			}
			downloaded += int64(n)

			if progress != nil && time.Since(lastEmit) >= progressInterval {
				progress(downloaded, total)
				lastEmit = time.Now()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return "", NewError(ErrCodeNetwork, "download cancelled", ctx.Err())
			}
			return "", NewError(ErrCodeNetwork, "error while downloading", readErr)
		}
	}

	if total > 0 && downloaded != total {
		return "", NewError(ErrCodeIncomplete,
			fmt.Sprintf("transfer ended after %d of %d bytes", downloaded, total), nil)
	}

	// Final progress event always reports completion
	if progress != nil {
		if total == 0 {
			total = downloaded
		}
		progress(downloaded, total)
	}

	d.logger.Debug("Download complete", "url", url, "path", destination, "bytes", downloaded)
	return destination, nil
}

// Verify recomputes the SHA-256 of the file and compares it against the
// expected hex-encoded hash. Comparison is case-insensitive and constant
// time over the decoded digests. A mismatch (or undecodable expected hash)
// is a normal negative result, never an error; only an unreadable file
// produces one.
func (d *HTTPDownloader) Verify(path, expectedHash string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, NewError(ErrCodeIO, "failed to open file for verification", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return false, NewError(ErrCodeIO, "failed to read file for verification", err)
	}

	expected, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(expectedHash)))
	if err != nil || len(expected) != sha256.Size {
		return false, nil
	}

	return subtle.ConstantTimeCompare(hasher.Sum(nil), expected) == 1, nil
}
