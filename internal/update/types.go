package update

import (
	"context"
	"time"
)

// State represents the current state of the update process.
type State string

// Update states. Error is terminal for a check cycle; a fresh check leaves
// it. Installing is terminal because a successful handoff ends the process.
const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateReady       State = "ready"
	StateInstalling  State = "installing"
	StateError       State = "error"
)

// ReleaseInfo is an immutable snapshot of release metadata fetched from the
// release source. It is re-fetched on every check, never cached.
type ReleaseInfo struct {
	Version      string    `json:"version"`
	ReleaseNotes string    `json:"release_notes"`
	PublishedAt  time.Time `json:"published_at"`
	Assets       []Asset   `json:"assets"`
}

// Asset is a single downloadable artifact attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256,omitempty"`
}

// Snapshot is the externally observable update state. The manager replaces
// fields incrementally so observers see each transition; observers must
// treat snapshots as read-only.
type Snapshot struct {
	State          State      `json:"state"`
	CurrentVersion string     `json:"current_version"`
	LatestVersion  string     `json:"latest_version,omitempty"`
	ReleaseNotes   string     `json:"release_notes,omitempty"`
	Progress       int        `json:"progress,omitempty"`
	Error          string     `json:"error,omitempty"`
	FilePath       string     `json:"file_path,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`

	BackupAvailable bool   `json:"backup_available"`
	BackupVersion   string `json:"backup_version,omitempty"`
}

// CheckResult is returned by CheckForUpdates.
type CheckResult struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	PublishedAt     time.Time `json:"published_at"`
	UpdateAvailable bool      `json:"update_available"`
}

// Resolver queries the release source for the newest qualifying release.
// Implementations return *Error with code NETWORK, NOT_FOUND or PARSE.
type Resolver interface {
	FetchLatest(ctx context.Context, owner, repo string, includePrerelease bool) (*ReleaseInfo, error)
}

// ProgressFunc receives download progress. Calls are bounded in frequency
// and monotonically non-decreasing in downloaded bytes; the final call
// reports downloaded == total.
type ProgressFunc func(downloaded, total int64)

// Downloader streams a remote artifact to disk and verifies its content hash.
type Downloader interface {
	// Download fetches url into destination, reporting progress. Returns the
	// local file path.
	Download(ctx context.Context, url, destination string, progress ProgressFunc) (string, error)

	// Verify recomputes the SHA-256 of the file and compares it against the
	// expected hex hash (case-insensitive). A mismatch returns (false, nil);
	// only an unreadable file returns an error.
	Verify(path, expectedHash string) (bool, error)
}

// Installer hands a verified artifact to the OS-native install mechanism.
// A true result means the handoff was accepted and the process should
// terminate; the installer is not observed beyond that point. The backup
// methods expose the executable backup taken before in-place replacement.
type Installer interface {
	Install(ctx context.Context, path string) (bool, error)

	// HasBackup reports whether a previous executable backup exists.
	HasBackup() bool

	// BackupVersion returns the version recorded with the backup, or an
	// empty string when no backup exists.
	BackupVersion() string

	// Rollback restores the backed-up executable. Returns *Error with code
	// NO_BACKUP or ROLLBACK_FAILED.
	Rollback() error
}
