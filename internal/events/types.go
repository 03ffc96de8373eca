package events

// Event type constants for kelindar/event.
const (
	TypeUpdateState uint32 = iota + 1
	TypeDownloadProgress
	TypeAttachmentReady
	TypeAttachmentError
	TypeSettingsChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// UpdateStateEvent carries a full update-state snapshot. One event is
// published per state machine transition; subscribers treat it as read-only.
type UpdateStateEvent struct {
	State          string `json:"state" example:"downloading" doc:"Current update state"`
	CurrentVersion string `json:"current_version" example:"1.0.0" doc:"Running application version"`
	LatestVersion  string `json:"latest_version,omitempty" example:"1.1.0" doc:"Latest available version"`
	ReleaseNotes   string `json:"release_notes,omitempty" doc:"Markdown release notes"`
	Progress       int    `json:"progress,omitempty" example:"45" doc:"Download progress percentage (0-100)"`
	Error          string `json:"error,omitempty" doc:"Error message when in the error state"`
	FilePath       string `json:"file_path,omitempty" doc:"Path to the downloaded artifact"`
	Timestamp      string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for UpdateStateEvent.
func (e UpdateStateEvent) Type() uint32 { return TypeUpdateState }

// DownloadProgressEvent reports byte-level progress of an in-flight download.
// Downloaded is monotonically non-decreasing for a single transfer.
type DownloadProgressEvent struct {
	Downloaded int64  `json:"downloaded" example:"1048576" doc:"Bytes downloaded so far"`
	Total      int64  `json:"total" example:"5242880" doc:"Total bytes, 0 when unknown"`
	Percent    int    `json:"percent" example:"20" doc:"Progress percentage (0-100)"`
	FilePath   string `json:"file_path" doc:"Destination file path"`
}

// Type returns the event type identifier for DownloadProgressEvent.
func (e DownloadProgressEvent) Type() uint32 { return TypeDownloadProgress }

// AttachmentReadyEvent is published when a deep-link attachment finished
// downloading and is available in the local store.
type AttachmentReadyEvent struct {
	ID        string `json:"id" doc:"Attachment identifier"`
	FileName  string `json:"file_name" example:"invoice.pdf" doc:"Original file name"`
	MimeType  string `json:"mime_type" example:"application/pdf" doc:"Detected MIME type"`
	Size      int64  `json:"size" example:"12345" doc:"File size in bytes"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AttachmentReadyEvent.
func (e AttachmentReadyEvent) Type() uint32 { return TypeAttachmentReady }

// AttachmentErrorEvent is published when a deep-link attachment fetch failed.
type AttachmentErrorEvent struct {
	URL       string `json:"url" doc:"Source URL"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AttachmentErrorEvent.
func (e AttachmentErrorEvent) Type() uint32 { return TypeAttachmentError }

// SettingsChangedEvent is published when update settings are mutated, either
// through the API or by an external edit of the settings file.
type SettingsChangedEvent struct {
	AutoCheck bool   `json:"auto_check" doc:"Whether automatic update checks are enabled"`
	Owner     string `json:"owner" example:"wab2b" doc:"Release source owner"`
	Repo      string `json:"repo" example:"wab2b-helper" doc:"Release source repository"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
