package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/wab2b/wab2b-helper/internal/api/models"
	"github.com/wab2b/wab2b-helper/internal/update"
	"github.com/wab2b/wab2b-helper/internal/version"
)

// registerUpdateRoutes registers all update-related endpoints.
func (s *Server) registerUpdateRoutes() {
	// Version endpoint - no auth required, always available
	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/update/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"update"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	if s.options.UpdateManager == nil {
		return
	}

	mgr := s.options.UpdateManager

	// Check for updates
	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodGet,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Description: "Check if a newer version is available without downloading",
		Tags:        []string{"update"},
		Errors:      []int{401, 409, 500, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		IncludePrerelease bool `query:"include_prerelease" doc:"Consider pre-release versions"`
	}) (*models.UpdateCheckResponse, error) {
		result, err := mgr.CheckForUpdates(ctx, input.IncludePrerelease)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{
			Body: models.UpdateCheckData{
				CurrentVersion:  result.CurrentVersion,
				LatestVersion:   result.LatestVersion,
				ReleaseNotes:    result.ReleaseNotes,
				PublishedAt:     result.PublishedAt,
				UpdateAvailable: result.UpdateAvailable,
			},
		}, nil
	})

	// Get update status
	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update/status",
		Summary:     "Get Update Status",
		Description: "Get the current update state and progress",
		Tags:        []string{"update"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		snap := mgr.Status()
		return &models.UpdateStatusResponse{
			Body: models.UpdateStatusData{
				State:           string(snap.State),
				CurrentVersion:  snap.CurrentVersion,
				LatestVersion:   snap.LatestVersion,
				ReleaseNotes:    snap.ReleaseNotes,
				Progress:        snap.Progress,
				Error:           snap.Error,
				FilePath:        snap.FilePath,
				LastChecked:     snap.LastChecked,
				BackupAvailable: snap.BackupAvailable,
				BackupVersion:   snap.BackupVersion,
			},
		}, nil
	})

	// Download the available update
	huma.Register(s.api, huma.Operation{
		OperationID: "download-update",
		Method:      http.MethodPost,
		Path:        "/api/update/download",
		Summary:     "Download Update",
		Description: "Download and verify the available update artifact",
		Tags:        []string{"update"},
		Errors:      []int{401, 409, 422, 500, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateDownloadResponse, error) {
		path, err := mgr.Download(ctx)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		resp := &models.UpdateDownloadResponse{}
		resp.Body.FilePath = path
		resp.Body.Message = "Update downloaded and verified"
		return resp, nil
	})

	// Install the downloaded update
	huma.Register(s.api, huma.Operation{
		OperationID: "install-update",
		Method:      http.MethodPost,
		Path:        "/api/update/install",
		Summary:     "Install Update",
		Description: "Hand the verified update to the OS installer. Will trigger a restart.",
		Tags:        []string{"update"},
		Errors:      []int{401, 403, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateInstallResponse, error) {
		if err := mgr.Install(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		resp := &models.UpdateInstallResponse{}
		resp.Body.Message = "Installer launched, restarting..."
		return resp, nil
	})

	// Rollback to the backed-up version
	huma.Register(s.api, huma.Operation{
		OperationID: "rollback-update",
		Method:      http.MethodPost,
		Path:        "/api/update/rollback",
		Summary:     "Rollback Update",
		Description: "Revert to the previously backed up version. Will trigger a restart.",
		Tags:        []string{"update"},
		Errors:      []int{401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.UpdateRollbackResponse, error) {
		if err := mgr.Rollback(ctx); err != nil {
			return nil, mapUpdateError(err)
		}
		resp := &models.UpdateRollbackResponse{}
		resp.Body.Message = "Rollback complete, restarting..."
		return resp, nil
	})
}

// mapUpdateError converts update engine errors to Huma HTTP errors.
func mapUpdateError(err error) error {
	var updateErr *update.Error
	if errors.As(err, &updateErr) {
		switch updateErr.Code {
		case update.ErrCodeInvalidState:
			return huma.Error409Conflict(updateErr.Message)
		case update.ErrCodeNotFound, update.ErrCodeNoBackup:
			return huma.Error404NotFound(updateErr.Message)
		case update.ErrCodeNetwork, update.ErrCodeIncomplete:
			return huma.Error502BadGateway(updateErr.Message)
		case update.ErrCodeNoAsset, update.ErrCodeUnsupportedFormat, update.ErrCodeVerifyFailed:
			return huma.Error422UnprocessableEntity(updateErr.Message)
		case update.ErrCodePermission:
			return huma.Error403Forbidden(updateErr.Message)
		default:
			return huma.Error500InternalServerError(updateErr.Message)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
