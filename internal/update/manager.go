// Package update implements the self-update engine: release resolution,
// platform asset selection, verified download and OS install handoff,
// coordinated by a guarded state machine.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/logging"
	"github.com/wab2b/wab2b-helper/internal/metrics"
	"github.com/wab2b/wab2b-helper/internal/settings"
)

// restartDelay lets the API response flush before the process is told to exit.
const restartDelay = 500 * time.Millisecond

// Options configures a Manager. Resolver, Downloader, Installer, Settings
// and Bus are required; RestartFn defaults to a SIGTERM self-signal.
type Options struct {
	Resolver       Resolver
	Downloader     Downloader
	Installer      Installer
	Settings       settings.Store
	Bus            *events.Bus
	DataDir        string
	Platform       Platform
	CurrentVersion string
	RestartFn      func()
	Logger         *slog.Logger
}

// Manager is the update state machine. It owns the single Snapshot instance
// for the process and is the only component that mutates it; observers get
// read-only snapshots through the event bus. One check/download/install
// sequence is in flight at a time; guarded transitions reject everything else.
type Manager struct {
	resolver   Resolver
	downloader Downloader
	installer  Installer
	store      settings.Store
	bus        *events.Bus
	dataDir    string
	platform   Platform
	restartFn  func()
	logger     *slog.Logger

	mu            sync.RWMutex
	state         State
	currentVer    string
	latestVer     string
	releaseNotes  string
	progress      int
	lastErr       string
	filePath      string
	lastChecked   *time.Time
	latestRelease *ReleaseInfo
}

// NewManager creates the update state machine in the idle state.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("update")
	}

	restartFn := opts.RestartFn
	if restartFn == nil {
		restartFn = triggerRestart(logger)
	}

	return &Manager{
		resolver:   opts.Resolver,
		downloader: opts.Downloader,
		installer:  opts.Installer,
		store:      opts.Settings,
		bus:        opts.Bus,
		dataDir:    opts.DataDir,
		platform:   opts.Platform,
		restartFn:  restartFn,
		logger:     logger,
		state:      StateIdle,
		currentVer: opts.CurrentVersion,
	}
}

// Status returns the current snapshot.
func (m *Manager) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// CurrentVersion returns the running application version.
func (m *Manager) CurrentVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentVer
}

// CheckForUpdates queries the release source configured in settings and
// compares the newest qualifying release against the running version.
// Valid from idle, available and error; a concurrent check is rejected
// with an INVALID_STATE error. A release source with no qualifying release
// is a normal "no update" outcome, not a failure.
func (m *Manager) CheckForUpdates(ctx context.Context, includePrerelease bool) (*CheckResult, error) {
	if !m.transitionTo(StateChecking, StateIdle, StateAvailable, StateError) {
		return nil, NewError(ErrCodeInvalidState,
			fmt.Sprintf("cannot check for updates in state %s", m.getState()), nil)
	}

	cfg, err := m.store.Load()
	if err != nil {
		m.setError("failed to load update settings: " + err.Error())
		metrics.RecordUpdateCheck("error")
		return nil, NewError(ErrCodeIO, "failed to load update settings", err)
	}

	release, err := m.resolver.FetchLatest(ctx, cfg.Owner, cfg.Repo, includePrerelease)

	now := time.Now()
	m.mu.Lock()
	m.lastChecked = &now
	m.mu.Unlock()

	if err != nil {
		var updateErr *Error
		if errors.As(err, &updateErr) && updateErr.Code == ErrCodeNotFound {
			// No qualifying release is not a failure
			m.logger.Info("No qualifying release found",
				"owner", cfg.Owner, "repo", cfg.Repo, "prerelease", includePrerelease)
			m.transitionTo(StateIdle)
			metrics.RecordUpdateCheck("not_found")
			return &CheckResult{CurrentVersion: m.CurrentVersion()}, nil
		}

		m.setError(err.Error())
		metrics.RecordUpdateCheck("error")
		return nil, err
	}

	current := m.CurrentVersion()
	result := &CheckResult{
		CurrentVersion: current,
		LatestVersion:  release.Version,
		ReleaseNotes:   release.ReleaseNotes,
		PublishedAt:    release.PublishedAt,
	}

	if Compare(release.Version, current) != Greater {
		m.logger.Info("Already up to date", "current", current, "latest", release.Version)
		m.transitionTo(StateIdle)
		metrics.RecordUpdateCheck("up_to_date")
		return result, nil
	}

	m.mu.Lock()
	m.latestRelease = release
	m.latestVer = release.Version
	m.releaseNotes = release.ReleaseNotes
	m.mu.Unlock()

	m.transitionTo(StateAvailable)
	metrics.RecordUpdateCheck("available")
	m.logger.Info("Update available", "current", current, "latest", release.Version)

	result.UpdateAvailable = true
	return result, nil
}

// Download selects the platform artifact from the resolved release, streams
// it to the staging directory and verifies its content hash. Valid only
// from available; anything else is rejected with an INVALID_STATE error.
func (m *Manager) Download(ctx context.Context) (string, error) {
	if !m.transitionTo(StateDownloading, StateAvailable) {
		return "", NewError(ErrCodeInvalidState,
			fmt.Sprintf("cannot download in state %s", m.getState()), nil)
	}

	m.mu.RLock()
	release := m.latestRelease
	m.mu.RUnlock()

	asset := SelectAsset(release.Assets, m.platform)
	if asset == nil {
		m.setError("no compatible update found for your platform")
		return "", NewError(ErrCodeNoAsset, "no compatible update found for your platform", nil)
	}

	destination := filepath.Join(m.dataDir, "updates", asset.Name)

	var lastDownloaded int64
	path, err := m.downloader.Download(ctx, asset.DownloadURL, destination, func(downloaded, total int64) {
		metrics.AddDownloadBytes(downloaded - lastDownloaded)
		lastDownloaded = downloaded

		percent := 0
		if total > 0 {
			percent = int(downloaded * 100 / total)
			// A server streaming past its Content-Length still fails the
			// transfer afterwards; observers never see progress above 100.
			if percent > 100 {
				percent = 100
			}
		}

		m.mu.Lock()
		m.progress = percent
		m.mu.Unlock()

		m.bus.Publish(events.DownloadProgressEvent{
			Downloaded: downloaded,
			Total:      total,
			Percent:    percent,
			FilePath:   destination,
		})
		m.publishState()
	})
	if err != nil {
		m.setError(err.Error())
		return "", err
	}

	if asset.SHA256 == "" {
		m.logger.Warn("Release publishes no content hash, skipping verification",
			"asset", asset.Name)
	} else {
		ok, verifyErr := m.downloader.Verify(path, asset.SHA256)
		if verifyErr != nil {
			m.setError(verifyErr.Error())
			return "", verifyErr
		}
		if !ok {
			// File stays on disk for diagnostics but is never installed
			m.setError("downloaded file failed verification, possible corruption")
			return "", NewError(ErrCodeVerifyFailed,
				"downloaded file failed verification, possible corruption", nil)
		}
	}

	m.mu.Lock()
	m.filePath = path
	m.progress = 100
	m.mu.Unlock()

	m.transitionTo(StateReady)
	m.logger.Info("Update downloaded and verified", "path", path)
	return path, nil
}

// Install hands the verified artifact to the OS installer and, when the
// handoff is accepted, schedules a process restart. Valid only from ready.
// Installing is terminal: a successful handoff ends with the process exiting.
func (m *Manager) Install(ctx context.Context) error {
	if !m.transitionTo(StateInstalling, StateReady) {
		return NewError(ErrCodeInvalidState,
			fmt.Sprintf("cannot install in state %s", m.getState()), nil)
	}

	m.mu.RLock()
	path := m.filePath
	m.mu.RUnlock()

	restart, err := m.installer.Install(ctx, path)
	if err != nil {
		m.setError(err.Error())
		metrics.RecordInstall("error")
		return err
	}

	metrics.RecordInstall("success")
	m.logger.Info("Install handoff accepted", "path", path, "restart", restart)

	if restart {
		go func() {
			time.Sleep(restartDelay)
			m.restartFn()
		}()
	}
	return nil
}

// Rollback restores the previously backed-up executable and schedules a
// restart so the restored binary takes over. Rejected while a check,
// download or install is in flight.
func (m *Manager) Rollback(_ context.Context) error {
	switch state := m.getState(); state {
	case StateChecking, StateDownloading, StateInstalling:
		return NewError(ErrCodeInvalidState,
			fmt.Sprintf("cannot roll back in state %s", state), nil)
	}

	if !m.installer.HasBackup() {
		return NewError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}

	if err := m.installer.Rollback(); err != nil {
		m.setError(err.Error())
		return err
	}

	m.transitionTo(StateIdle)
	m.logger.Info("Rollback completed, triggering restart")

	go func() {
		time.Sleep(restartDelay)
		m.restartFn()
	}()
	return nil
}

// transitionTo commits a state change when the current state is in
// validFromStates (or unconditionally when none are given) and publishes
// the new snapshot. Error text is cleared on every successful transition.
func (m *Manager) transitionTo(newState State, validFromStates ...State) bool {
	m.mu.Lock()
	if len(validFromStates) > 0 && !slices.Contains(validFromStates, m.state) {
		m.mu.Unlock()
		return false
	}

	m.logger.Debug("State transition", "from", m.state, "to", newState)
	m.state = newState
	m.lastErr = ""
	if newState == StateChecking {
		m.progress = 0
		m.filePath = ""
	}
	m.mu.Unlock()

	m.publishState()
	return true
}

func (m *Manager) getState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.state = StateError
	m.lastErr = msg
	m.mu.Unlock()

	m.logger.Error("Update failed", "error", msg)
	m.publishState()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		CurrentVersion:  m.currentVer,
		LatestVersion:   m.latestVer,
		ReleaseNotes:    m.releaseNotes,
		Progress:        m.progress,
		Error:           m.lastErr,
		FilePath:        m.filePath,
		LastChecked:     m.lastChecked,
		BackupAvailable: m.installer.HasBackup(),
		BackupVersion:   m.installer.BackupVersion(),
	}
}

func (m *Manager) publishState() {
	m.mu.RLock()
	snap := m.snapshotLocked()
	m.mu.RUnlock()

	m.bus.Publish(events.UpdateStateEvent{
		State:          string(snap.State),
		CurrentVersion: snap.CurrentVersion,
		LatestVersion:  snap.LatestVersion,
		ReleaseNotes:   snap.ReleaseNotes,
		Progress:       snap.Progress,
		Error:          snap.Error,
		FilePath:       snap.FilePath,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

// triggerRestart returns the default restart: SIGTERM to our own process so
// the service supervisor (or the OS installer) takes over.
func triggerRestart(logger *slog.Logger) func() {
	return func() {
		proc, err := os.FindProcess(os.Getpid())
		if err != nil {
			logger.Error("Failed to find own process", "error", err)
			return
		}

		logger.Info("Sending SIGTERM to trigger restart")
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			logger.Error("Failed to send SIGTERM", "error", err)
		}
	}
}
