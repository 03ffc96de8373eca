package update

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

// PlatformInstaller hands a downloaded artifact to the operating system's
// native install mechanism. Installer packages (.msi, .exe, .dmg, .pkg,
// .deb, .rpm) are launched through the OS; bare binaries and AppImages are
// swapped in place with a backup of the running executable.
type PlatformInstaller struct {
	platform       Platform
	backup         *backupManager
	currentVersion string
	logger         *slog.Logger
}

// NewPlatformInstaller creates an installer for the given platform.
// dataDir hosts the executable backup taken before in-place replacement.
func NewPlatformInstaller(platform Platform, dataDir, currentVersion string, logger *slog.Logger) (*PlatformInstaller, error) {
	backup, err := newBackupManager(dataDir, logger)
	if err != nil {
		return nil, NewError(ErrCodeIO, "failed to prepare backup directory", err)
	}

	return &PlatformInstaller{
		platform:       platform,
		backup:         backup,
		currentVersion: currentVersion,
		logger:         logger,
	}, nil
}

// Install launches the artifact at path. The returned bool reports whether
// the application must exit so the installer (or the replaced binary) can
// take over.
func (i *PlatformInstaller) Install(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsPermission(err) {
			return false, NewError(ErrCodePermission, "no permission to read update file", err)
		}
		return false, NewError(ErrCodeIO, "update file is not accessible", err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch i.platform {
	case PlatformWindows:
		return i.installWindows(ctx, path, ext)
	case PlatformMacOS:
		return i.installMacOS(ctx, path, ext)
	case PlatformLinux:
		return i.installLinux(ctx, path, ext)
	default:
		return false, NewError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("no install strategy for platform %q", i.platform), nil)
	}
}

func (i *PlatformInstaller) installWindows(_ context.Context, path, ext string) (bool, error) {
	switch ext {
	case ".msi":
		if err := i.launch("msiexec", "/i", path); err != nil {
			return false, err
		}
	case ".exe":
		if err := i.launch(path); err != nil {
			return false, err
		}
	default:
		return false, NewError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported windows installer format %q", ext), nil)
	}
	return true, nil
}

func (i *PlatformInstaller) installMacOS(_ context.Context, path, ext string) (bool, error) {
	switch ext {
	case ".dmg", ".pkg":
		if err := i.launch("open", path); err != nil {
			return false, err
		}
	default:
		return false, NewError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported macos installer format %q", ext), nil)
	}
	return true, nil
}

func (i *PlatformInstaller) installLinux(_ context.Context, path, ext string) (bool, error) {
	switch ext {
	case ".deb", ".rpm":
		if err := i.launch("xdg-open", path); err != nil {
			return false, err
		}
		return true, nil
	case ".appimage", "":
		if err := i.replaceExecutable(path); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, NewError(ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported linux installer format %q", ext), nil)
	}
}

// launch starts the command detached; the installer outlives this process.
func (i *PlatformInstaller) launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			return NewError(ErrCodePermission, "no permission to launch installer", err)
		}
		return NewError(ErrCodeInstallFailed,
			fmt.Sprintf("failed to launch %s", name), err)
	}
	i.logger.Info("Installer launched", "command", name, "pid", cmd.Process.Pid)
	// Reap the child when it exits
	go func() { _ = cmd.Wait() }()
	return nil
}

// replaceExecutable backs up the running binary, then copies the new one
// over it with executable permissions. A failed copy restores the backup.
func (i *PlatformInstaller) replaceExecutable(path string) error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return NewError(ErrCodeInstallFailed, "failed to resolve executable path", err)
	}

	if err := i.backup.createBackup(i.currentVersion); err != nil {
		return NewError(ErrCodeInstallFailed, "failed to back up current executable", err)
	}

	if err := copyExecutable(path, execPath); err != nil {
		i.logger.Error("In-place replace failed, restoring backup", "error", err)
		if restoreErr := i.backup.restore(); restoreErr != nil {
			i.logger.Error("Backup restore failed", "error", restoreErr)
		}
		if os.IsPermission(err) {
			return NewError(ErrCodePermission, "no permission to replace executable", err)
		}
		return NewError(ErrCodeInstallFailed, "failed to replace executable", err)
	}

	i.logger.Info("Executable replaced in place", "path", execPath)
	return nil
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Chmod(0o755)
}

// HasBackup reports whether a previous executable backup exists.
func (i *PlatformInstaller) HasBackup() bool {
	return i.backup.hasBackup()
}

// BackupVersion returns the version recorded with the executable backup,
// or an empty string when no backup exists.
func (i *PlatformInstaller) BackupVersion() string {
	return i.backup.backupVersion()
}

// Rollback restores the backed-up executable over the current one.
func (i *PlatformInstaller) Rollback() error {
	if !i.backup.hasBackup() {
		return NewError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := i.backup.restore(); err != nil {
		return NewError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return nil
}
