package models

import "time"

// UpdateCheckData contains information about available updates.
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Currently installed version"`
	LatestVersion   string    `json:"latest_version,omitempty" example:"1.1.0" doc:"Latest available version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Markdown release notes"`
	PublishedAt     time.Time `json:"published_at,omitempty" doc:"When the release was published"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether an update is available"`
}

// UpdateCheckResponse wraps UpdateCheckData for API responses.
type UpdateCheckResponse struct {
	Body UpdateCheckData
}

// UpdateStatusData contains the current update state.
type UpdateStatusData struct {
	State          string     `json:"state" example:"idle" doc:"Current update state"`
	CurrentVersion string     `json:"current_version" example:"1.0.0" doc:"Current version"`
	LatestVersion  string     `json:"latest_version,omitempty" example:"1.1.0" doc:"Version being updated to"`
	ReleaseNotes   string     `json:"release_notes,omitempty" doc:"Markdown release notes"`
	Progress       int        `json:"progress,omitempty" example:"45" doc:"Download progress percentage (0-100)"`
	Error          string     `json:"error,omitempty" doc:"Error message if in error state"`
	FilePath        string     `json:"file_path,omitempty" doc:"Path of the downloaded artifact"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"When updates were last checked"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether a previous executable backup exists"`
	BackupVersion   string     `json:"backup_version,omitempty" example:"1.0.0" doc:"Version of the backup"`
}

// UpdateStatusResponse wraps UpdateStatusData for API responses.
type UpdateStatusResponse struct {
	Body UpdateStatusData
}

// UpdateDownloadResponse reports where the update artifact was staged.
type UpdateDownloadResponse struct {
	Body struct {
		FilePath string `json:"file_path" doc:"Local path of the verified artifact"`
		Message  string `json:"message" example:"Update downloaded and verified" doc:"Status message"`
	}
}

// UpdateInstallResponse represents a successful install handoff.
type UpdateInstallResponse struct {
	Body struct {
		Message string `json:"message" example:"Installer launched, restarting..." doc:"Status message"`
	}
}

// UpdateRollbackResponse represents a successful rollback.
type UpdateRollbackResponse struct {
	Body struct {
		Message string `json:"message" example:"Rollback complete, restarting..." doc:"Status message"`
	}
}

// SettingsData mirrors the persisted update settings.
type SettingsData struct {
	AutoCheck bool   `json:"auto_check" example:"true" doc:"Check for updates automatically on startup"`
	Owner     string `json:"owner" example:"wab2b" doc:"Release source owner"`
	Repo      string `json:"repo" example:"wab2b-helper" doc:"Release source repository"`
}

// SettingsResponse wraps SettingsData for API responses.
type SettingsResponse struct {
	Body SettingsData
}

// SettingsRequest carries a full settings replacement.
type SettingsRequest struct {
	Body SettingsData
}
