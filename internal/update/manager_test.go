package update

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/settings"
)

type fakeResolver struct {
	fn func(ctx context.Context, owner, repo string, includePrerelease bool) (*ReleaseInfo, error)
}

func (r *fakeResolver) FetchLatest(ctx context.Context, owner, repo string, includePrerelease bool) (*ReleaseInfo, error) {
	return r.fn(ctx, owner, repo, includePrerelease)
}

type fakeDownloader struct {
	downloadFn func(ctx context.Context, url, destination string, progress ProgressFunc) (string, error)
	verifyFn   func(path, expectedHash string) (bool, error)
}

func (d *fakeDownloader) Download(ctx context.Context, url, destination string, progress ProgressFunc) (string, error) {
	if d.downloadFn != nil {
		return d.downloadFn(ctx, url, destination, progress)
	}
	if progress != nil {
		progress(100, 100)
	}
	return destination, nil
}

func (d *fakeDownloader) Verify(path, expectedHash string) (bool, error) {
	if d.verifyFn != nil {
		return d.verifyFn(path, expectedHash)
	}
	return true, nil
}

type fakeInstaller struct {
	fn         func(ctx context.Context, path string) (bool, error)
	backup     bool
	backupVer  string
	rollbackFn func() error
}

func (i *fakeInstaller) Install(ctx context.Context, path string) (bool, error) {
	if i.fn != nil {
		return i.fn(ctx, path)
	}
	return true, nil
}

func (i *fakeInstaller) HasBackup() bool { return i.backup }

func (i *fakeInstaller) BackupVersion() string { return i.backupVer }

func (i *fakeInstaller) Rollback() error {
	if i.rollbackFn != nil {
		return i.rollbackFn()
	}
	return nil
}

type memStore struct {
	s settings.Settings
}

func (m *memStore) Load() (settings.Settings, error) { return m.s, nil }
func (m *memStore) Save(s settings.Settings) error   { m.s = s; return nil }

func release(version string, assets ...Asset) *ReleaseInfo {
	if assets == nil {
		assets = []Asset{{Name: "helper_linux.AppImage", DownloadURL: "https://example.com/a", SHA256: ""}}
	}
	return &ReleaseInfo{
		Version:      version,
		ReleaseNotes: "notes",
		PublishedAt:  time.Now(),
		Assets:       assets,
	}
}

type managerConfig struct {
	resolver   Resolver
	downloader Downloader
	installer  Installer
	restartFn  func()
}

func newTestManager(t *testing.T, cfg managerConfig) *Manager {
	t.Helper()

	if cfg.resolver == nil {
		cfg.resolver = &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("9.9.9"), nil
		}}
	}
	if cfg.downloader == nil {
		cfg.downloader = &fakeDownloader{}
	}
	if cfg.installer == nil {
		cfg.installer = &fakeInstaller{}
	}
	if cfg.restartFn == nil {
		cfg.restartFn = func() {}
	}

	return NewManager(Options{
		Resolver:       cfg.resolver,
		Downloader:     cfg.downloader,
		Installer:      cfg.installer,
		Settings:       &memStore{s: settings.Defaults()},
		Bus:            events.New(),
		DataDir:        t.TempDir(),
		Platform:       PlatformLinux,
		CurrentVersion: "0.2.0",
		RestartFn:      cfg.restartFn,
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
}

func TestCheckSameVersionStaysIdle(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.2.0"), nil
		}},
	})

	result, err := m.CheckForUpdates(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if result.UpdateAvailable {
		t.Error("UpdateAvailable = true for equal versions")
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State = %s, want %s", got, StateIdle)
	}
}

func TestCheckNewerVersionBecomesAvailable(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.3.0"), nil
		}},
	})

	result, err := m.CheckForUpdates(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if !result.UpdateAvailable {
		t.Error("UpdateAvailable = false for newer version")
	}

	snap := m.Status()
	if snap.State != StateAvailable {
		t.Errorf("State = %s, want %s", snap.State, StateAvailable)
	}
	if snap.LatestVersion != "0.3.0" {
		t.Errorf("LatestVersion = %q, want %q", snap.LatestVersion, "0.3.0")
	}
	if snap.LastChecked == nil {
		t.Error("LastChecked not set after check")
	}
}

func TestCheckOlderVersionStaysIdle(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.1.0"), nil
		}},
	})

	result, err := m.CheckForUpdates(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if result.UpdateAvailable {
		t.Error("UpdateAvailable = true for older version")
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State = %s, want %s", got, StateIdle)
	}
}

func TestCheckNoQualifyingReleaseIsNotAnError(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return nil, NewError(ErrCodeNotFound, "no qualifying release", nil)
		}},
	})

	result, err := m.CheckForUpdates(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if result.UpdateAvailable {
		t.Error("UpdateAvailable = true with no qualifying release")
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State = %s, want %s", got, StateIdle)
	}
}

func TestCheckNetworkFailureEntersErrorState(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return nil, NewError(ErrCodeNetwork, "release source unreachable", nil)
		}},
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err == nil {
		t.Fatal("CheckForUpdates should fail on network error")
	}

	snap := m.Status()
	if snap.State != StateError {
		t.Errorf("State = %s, want %s", snap.State, StateError)
	}
	if snap.Error == "" {
		t.Error("Error message missing in error state")
	}

	// A fresh check leaves the error state
	m2resolver := &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
		return release("0.2.0"), nil
	}}
	m.resolver = m2resolver
	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatalf("CheckForUpdates from error state failed: %v", err)
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State after recovery = %s, want %s", got, StateIdle)
	}
}

func TestDownloadRejectedWhenIdle(t *testing.T) {
	m := newTestManager(t, managerConfig{})

	_, err := m.Download(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeInvalidState {
		t.Errorf("Expected INVALID_STATE error, got %v", err)
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State changed to %s by rejected download", got)
	}
}

func TestInstallRejectedUnlessReady(t *testing.T) {
	m := newTestManager(t, managerConfig{})

	err := m.Install(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeInvalidState {
		t.Errorf("Expected INVALID_STATE error, got %v", err)
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State changed to %s by rejected install", got)
	}
}

func TestDownloadNoCompatibleAsset(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.3.0", Asset{Name: "helper_windows.msi", DownloadURL: "https://example.com/w"}), nil
		}},
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	_, err := m.Download(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeNoAsset {
		t.Errorf("Expected NO_ASSET error, got %v", err)
	}

	snap := m.Status()
	if snap.State != StateError {
		t.Errorf("State = %s, want %s", snap.State, StateError)
	}
	if snap.Error != "no compatible update found for your platform" {
		t.Errorf("Error = %q", snap.Error)
	}
}

func TestDownloadVerifyMismatchEntersErrorNeverReady(t *testing.T) {
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.3.0", Asset{
				Name:        "helper_linux.AppImage",
				DownloadURL: "https://example.com/a",
				SHA256:      "deadbeef",
			}), nil
		}},
		downloader: &fakeDownloader{
			verifyFn: func(string, string) (bool, error) { return false, nil },
		},
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	_, err := m.Download(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeVerifyFailed {
		t.Errorf("Expected VERIFY_FAILED error, got %v", err)
	}
	if got := m.Status().State; got != StateError {
		t.Errorf("State = %s, want %s (never ready)", got, StateError)
	}
}

func TestDownloadSuccessBecomesReady(t *testing.T) {
	var reported [][2]int64
	m := newTestManager(t, managerConfig{
		downloader: &fakeDownloader{
			downloadFn: func(_ context.Context, _, destination string, progress ProgressFunc) (string, error) {
				for _, p := range [][2]int64{{25, 100}, {50, 100}, {100, 100}} {
					progress(p[0], p[1])
					reported = append(reported, p)
				}
				return destination, nil
			},
		},
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	path, err := m.Download(context.Background())
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	snap := m.Status()
	if snap.State != StateReady {
		t.Errorf("State = %s, want %s", snap.State, StateReady)
	}
	if snap.FilePath != path {
		t.Errorf("FilePath = %q, want %q", snap.FilePath, path)
	}
	if snap.Progress != 100 {
		t.Errorf("Progress = %d, want 100", snap.Progress)
	}
	if len(reported) != 3 {
		t.Errorf("progress calls = %d, want 3", len(reported))
	}
}

func TestInstallHandoffSchedulesRestart(t *testing.T) {
	restarted := make(chan struct{}, 1)
	m := newTestManager(t, managerConfig{
		restartFn: func() { restarted <- struct{}{} },
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Download(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if got := m.Status().State; got != StateInstalling {
		t.Errorf("State = %s, want %s", got, StateInstalling)
	}

	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Error("Restart was not triggered after install handoff")
	}
}

func TestInstallFailureBeforeHandoff(t *testing.T) {
	m := newTestManager(t, managerConfig{
		installer: &fakeInstaller{fn: func(context.Context, string) (bool, error) {
			return false, NewError(ErrCodePermission, "elevation denied", nil)
		}},
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Download(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := m.Install(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodePermission {
		t.Errorf("Expected PERMISSION error, got %v", err)
	}
	if got := m.Status().State; got != StateError {
		t.Errorf("State = %s, want %s", got, StateError)
	}
}

func TestConcurrentCheckRejected(t *testing.T) {
	release1 := make(chan struct{})
	m := newTestManager(t, managerConfig{
		resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			<-release1
			return release("0.2.0"), nil
		}},
	})

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.CheckForUpdates(context.Background(), false)
		firstDone <- err
	}()

	// Wait until the first check holds the checking state
	deadline := time.After(2 * time.Second)
	for m.Status().State != StateChecking {
		select {
		case <-deadline:
			t.Fatal("First check never reached checking state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := m.CheckForUpdates(context.Background(), false)
	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeInvalidState {
		t.Errorf("Expected INVALID_STATE for concurrent check, got %v", err)
	}

	close(release1)
	if err := <-firstDone; err != nil {
		t.Fatalf("First check failed: %v", err)
	}
}

func TestPrereleaseOnlyVisibleWhenIncluded(t *testing.T) {
	resolver := &fakeResolver{fn: func(_ context.Context, _, _ string, includePrerelease bool) (*ReleaseInfo, error) {
		if !includePrerelease {
			return nil, NewError(ErrCodeNotFound, "no qualifying release", nil)
		}
		return release("0.3.0-beta.1"), nil
	}}
	m := newTestManager(t, managerConfig{resolver: resolver})

	// Stable-only check finds nothing and returns to idle
	result, err := m.CheckForUpdates(context.Background(), false)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if result.UpdateAvailable {
		t.Error("UpdateAvailable = true when prereleases are excluded")
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State = %s, want %s", got, StateIdle)
	}

	// Including prereleases surfaces the beta
	result, err = m.CheckForUpdates(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckForUpdates failed: %v", err)
	}
	if !result.UpdateAvailable {
		t.Error("UpdateAvailable = false with prereleases included")
	}

	snap := m.Status()
	if snap.State != StateAvailable {
		t.Errorf("State = %s, want %s", snap.State, StateAvailable)
	}
	if snap.LatestVersion != "0.3.0-beta.1" {
		t.Errorf("LatestVersion = %q, want %q", snap.LatestVersion, "0.3.0-beta.1")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	m := newTestManager(t, managerConfig{
		installer: &fakeInstaller{backup: false},
	})

	err := m.Rollback(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeNoBackup {
		t.Errorf("Expected NO_BACKUP error, got %v", err)
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State changed to %s by rejected rollback", got)
	}
}

func TestRollbackRestoresAndSchedulesRestart(t *testing.T) {
	restarted := make(chan struct{}, 1)
	restored := false
	m := newTestManager(t, managerConfig{
		installer: &fakeInstaller{
			backup:     true,
			backupVer:  "0.1.0",
			rollbackFn: func() error { restored = true; return nil },
		},
		restartFn: func() { restarted <- struct{}{} },
	})

	snap := m.Status()
	if !snap.BackupAvailable {
		t.Error("BackupAvailable = false with a backup present")
	}
	if snap.BackupVersion != "0.1.0" {
		t.Errorf("BackupVersion = %q, want %q", snap.BackupVersion, "0.1.0")
	}

	if err := m.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if !restored {
		t.Error("Installer rollback was not invoked")
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("State = %s, want %s", got, StateIdle)
	}

	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Error("Restart was not triggered after rollback")
	}
}

func TestRollbackFailureEntersErrorState(t *testing.T) {
	m := newTestManager(t, managerConfig{
		installer: &fakeInstaller{
			backup:     true,
			rollbackFn: func() error { return NewError(ErrCodeRollbackFailed, "failed to restore backup", nil) },
		},
	})

	err := m.Rollback(context.Background())

	var updateErr *Error
	if !errors.As(err, &updateErr) || updateErr.Code != ErrCodeRollbackFailed {
		t.Errorf("Expected ROLLBACK_FAILED error, got %v", err)
	}
	if got := m.Status().State; got != StateError {
		t.Errorf("State = %s, want %s", got, StateError)
	}
}

func TestDownloadProgressNeverExceedsRange(t *testing.T) {
	bus := events.New()
	received := make(chan events.DownloadProgressEvent, 16)
	unsub := bus.Subscribe(func(e events.DownloadProgressEvent) { received <- e })
	defer unsub()

	m := NewManager(Options{
		Resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.3.0"), nil
		}},
		Downloader: &fakeDownloader{
			// A misbehaving server streams past its Content-Length before the
			// transfer fails
			downloadFn: func(_ context.Context, _, _ string, progress ProgressFunc) (string, error) {
				progress(150, 100)
				return "", NewError(ErrCodeIncomplete, "transfer incomplete", nil)
			},
		},
		Installer:      &fakeInstaller{},
		Settings:       &memStore{s: settings.Defaults()},
		Bus:            bus,
		DataDir:        t.TempDir(),
		Platform:       PlatformLinux,
		CurrentVersion: "0.2.0",
		RestartFn:      func() {},
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Download(context.Background()); err == nil {
		t.Fatal("Download should fail on incomplete transfer")
	}

	select {
	case e := <-received:
		if e.Percent > 100 {
			t.Errorf("Percent = %d, must stay within [0,100]", e.Percent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No progress event published")
	}

	if got := m.Status().Progress; got > 100 {
		t.Errorf("Snapshot progress = %d, must stay within [0,100]", got)
	}
}

func TestStateEventsPublishedOnTransitions(t *testing.T) {
	bus := events.New()
	received := make(chan events.UpdateStateEvent, 16)
	unsub := bus.Subscribe(func(e events.UpdateStateEvent) { received <- e })
	defer unsub()

	m := NewManager(Options{
		Resolver: &fakeResolver{fn: func(context.Context, string, string, bool) (*ReleaseInfo, error) {
			return release("0.3.0"), nil
		}},
		Downloader:     &fakeDownloader{},
		Installer:      &fakeInstaller{},
		Settings:       &memStore{s: settings.Defaults()},
		Bus:            bus,
		DataDir:        t.TempDir(),
		Platform:       PlatformLinux,
		CurrentVersion: "0.2.0",
		RestartFn:      func() {},
		Logger:         slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})

	if _, err := m.CheckForUpdates(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	var states []string
	deadline := time.After(2 * time.Second)
	for len(states) < 2 {
		select {
		case e := <-received:
			states = append(states, e.State)
		case <-deadline:
			t.Fatalf("Timed out waiting for state events, got %v", states)
		}
	}

	if states[0] != string(StateChecking) || states[1] != string(StateAvailable) {
		t.Errorf("States = %v, want [checking available]", states)
	}
}
