// Package attachment downloads deep-linked files into a per-session
// temporary store so the UI can preview, save or copy them.
package attachment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/metrics"
)

// schemePrefix is the custom URL scheme the OS hands us on deep links:
// wab2b-helper:<http(s) url>.
const schemePrefix = "wab2b-helper:"

// FileInfo describes one downloaded attachment.
type FileInfo struct {
	ID          string    `json:"id" doc:"Attachment identifier"`
	OriginalURL string    `json:"original_url" doc:"Source URL"`
	FilePath    string    `json:"file_path" doc:"Local path inside the attachment store"`
	FileName    string    `json:"file_name" example:"invoice.pdf" doc:"File name derived from the URL"`
	MimeType    string    `json:"mime_type" example:"application/pdf" doc:"Detected MIME type"`
	Size        int64     `json:"size" doc:"File size in bytes"`
	CreatedAt   time.Time `json:"created_at" doc:"Download timestamp"`
}

// Store holds downloaded attachments in a temporary directory that lives for
// the process lifetime. The most recent download is tracked as "current".
type Store struct {
	mu      sync.RWMutex
	tempDir string
	current *FileInfo
	files   map[string]*FileInfo

	client *http.Client
	bus    *events.Bus
	logger *slog.Logger
}

// NewStore creates the attachment store with a fresh temporary directory.
func NewStore(bus *events.Bus, logger *slog.Logger) (*Store, error) {
	tempDir, err := os.MkdirTemp("", "wab2b-helper-")
	if err != nil {
		return nil, newError(ErrCodeIO, "failed to create attachment directory", err)
	}

	return &Store{
		tempDir: tempDir,
		files:   make(map[string]*FileInfo),
		client:  cleanhttp.DefaultPooledClient(),
		bus:     bus,
		logger:  logger,
	}, nil
}

// ParseSchemeURL extracts the target URL from a wab2b-helper: deep link.
// Accepts both "wab2b-helper:https://…" and "wab2b-helper://https://…".
func ParseSchemeURL(raw string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(raw), schemePrefix) {
		return "", newError(ErrCodeInvalidURL,
			fmt.Sprintf("not a %s link: %s", schemePrefix, raw), nil)
	}

	target := raw[len(schemePrefix):]
	target = strings.TrimPrefix(target, "//")

	u, err := url.Parse(target)
	if err != nil {
		return "", newError(ErrCodeInvalidURL, "malformed target URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", newError(ErrCodeInvalidURL,
			fmt.Sprintf("unsupported target scheme %q", u.Scheme), nil)
	}
	return target, nil
}

// Fetch downloads rawURL into the store and registers it as the current
// attachment. Outcome events are published on the bus either way.
func (s *Store) Fetch(ctx context.Context, rawURL string) (*FileInfo, error) {
	info, err := s.fetch(ctx, rawURL)
	if err != nil {
		metrics.RecordAttachmentFetch("error")
		s.bus.Publish(events.AttachmentErrorEvent{
			URL:       rawURL,
			Error:     err.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return nil, err
	}

	metrics.RecordAttachmentFetch("success")
	s.bus.Publish(events.AttachmentReadyEvent{
		ID:        info.ID,
		FileName:  info.FileName,
		MimeType:  info.MimeType,
		Size:      info.Size,
		Timestamp: info.CreatedAt.UTC().Format(time.RFC3339),
	})
	return info, nil
}

func (s *Store) fetch(ctx context.Context, rawURL string) (*FileInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, newError(ErrCodeInvalidURL, fmt.Sprintf("invalid URL %q", rawURL), err)
	}

	fileName := path.Base(u.Path)
	if fileName == "." || fileName == "/" || fileName == "" {
		fileName = "downloaded_file"
	}

	id := uuid.NewString()
	filePath := filepath.Join(s.tempDir, id+"_"+fileName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(ErrCodeNetwork, "failed to build request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, newError(ErrCodeNetwork, "download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(ErrCodeNetwork,
			fmt.Sprintf("download returned status %d", resp.StatusCode), nil)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, newError(ErrCodeIO, "failed to create attachment file", err)
	}
	defer file.Close()

	size, err := io.Copy(file, resp.Body)
	if err != nil {
		return nil, newError(ErrCodeNetwork, "error while downloading", err)
	}

	info := &FileInfo{
		ID:          id,
		OriginalURL: rawURL,
		FilePath:    filePath,
		FileName:    fileName,
		MimeType:    detectMimeType(resp.Header.Get("Content-Type"), fileName),
		Size:        size,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.current = info
	s.files[id] = info
	s.mu.Unlock()

	s.logger.Info("Attachment downloaded",
		"id", id, "name", fileName, "size", size, "mime", info.MimeType)
	return info, nil
}

// detectMimeType prefers the server's Content-Type header, then the file
// extension, then the octet-stream fallback.
func detectMimeType(contentType, fileName string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	if mt := mime.TypeByExtension(filepath.Ext(fileName)); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}

// Current returns the most recently downloaded attachment, or nil.
func (s *Store) Current() *FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get returns the attachment with the given ID.
func (s *Store) Get(id string) (*FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, newError(ErrCodeNotFound, fmt.Sprintf("no attachment with id %s", id), nil)
	}
	return info, nil
}

// List returns all downloaded attachments, newest first.
func (s *Store) List() []*FileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*FileInfo, 0, len(s.files))
	for _, info := range s.files {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// SaveTo copies the attachment to destination.
func (s *Store) SaveTo(id, destination string) (string, error) {
	info, err := s.Get(id)
	if err != nil {
		return "", err
	}

	src, err := os.Open(info.FilePath)
	if err != nil {
		return "", newError(ErrCodeIO, "failed to open attachment", err)
	}
	defer src.Close()

	dst, err := os.Create(destination)
	if err != nil {
		return "", newError(ErrCodeIO, "failed to create destination file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", newError(ErrCodeIO, "failed to copy attachment", err)
	}
	return destination, nil
}

// Close removes the temporary directory and every downloaded attachment.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.files = make(map[string]*FileInfo)
	return os.RemoveAll(s.tempDir)
}
