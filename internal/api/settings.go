package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/wab2b/wab2b-helper/internal/api/models"
	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/settings"
)

// registerSettingsRoutes registers the update settings endpoints. Settings
// are persisted synchronously on every mutation so a subsequent read always
// observes the written values.
func (s *Server) registerSettingsRoutes() {
	if s.options.Settings == nil {
		return
	}

	store := s.options.Settings

	huma.Register(s.api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/api/settings",
		Summary:     "Get Settings",
		Description: "Read the persisted update settings, falling back to defaults",
		Tags:        []string{"settings"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SettingsResponse, error) {
		cfg, err := store.Load()
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		return &models.SettingsResponse{
			Body: models.SettingsData{
				AutoCheck: cfg.AutoCheck,
				Owner:     cfg.Owner,
				Repo:      cfg.Repo,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-settings",
		Method:      http.MethodPut,
		Path:        "/api/settings",
		Summary:     "Update Settings",
		Description: "Replace the persisted update settings",
		Tags:        []string{"settings"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.SettingsRequest) (*models.SettingsResponse, error) {
		cfg := settings.Settings{
			AutoCheck: input.Body.AutoCheck,
			Owner:     input.Body.Owner,
			Repo:      input.Body.Repo,
		}
		if err := store.Save(cfg); err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}

		s.options.EventBus.Publish(events.SettingsChangedEvent{
			AutoCheck: cfg.AutoCheck,
			Owner:     cfg.Owner,
			Repo:      cfg.Repo,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})

		return &models.SettingsResponse{
			Body: models.SettingsData{
				AutoCheck: cfg.AutoCheck,
				Owner:     cfg.Owner,
				Repo:      cfg.Repo,
			},
		}, nil
	})
}
