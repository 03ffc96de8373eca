package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/wab2b/wab2b-helper/cmd"
	"github.com/wab2b/wab2b-helper/internal/api"
	"github.com/wab2b/wab2b-helper/internal/attachment"
	"github.com/wab2b/wab2b-helper/internal/config"
	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/logging"
	"github.com/wab2b/wab2b-helper/internal/metrics"
	"github.com/wab2b/wab2b-helper/internal/release"
	"github.com/wab2b/wab2b-helper/internal/settings"
	"github.com/wab2b/wab2b-helper/internal/update"
	"github.com/wab2b/wab2b-helper/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port    string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	DataDir string `help:"Data directory (defaults to the user config dir)" toml:"server.data_dir" env:"SERVER_DATA_DIR"`

	// Auth settings (auth is disabled when either value is empty)
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingUpdate     string `help:"Update engine logging level" default:"info" toml:"logging.update" env:"LOGGING_UPDATE"`
	LoggingRelease    string `help:"Release resolver logging level" default:"info" toml:"logging.release" env:"LOGGING_RELEASE"`
	LoggingAttachment string `help:"Attachment store logging level" default:"info" toml:"logging.attachment" env:"LOGGING_ATTACHMENT"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingSettings   string `help:"Settings logging level" default:"info" toml:"logging.settings" env:"LOGGING_SETTINGS"`
}

func main() {
	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"update":     opts.LoggingUpdate,
				"release":    opts.LoggingRelease,
				"attachment": opts.LoggingAttachment,
				"api":        opts.LoggingAPI,
				"settings":   opts.LoggingSettings,
			},
		})

		logger := logging.GetLogger("main")

		// Resolve the data directory
		dataDir := opts.DataDir
		if dataDir == "" {
			var err error
			dataDir, err = settings.AppDataDir()
			if err != nil {
				logger.Error("Failed to resolve data directory", "error", err)
				os.Exit(1)
			}
		} else if err := os.MkdirAll(dataDir, 0o755); err != nil {
			logger.Error("Failed to create data directory", "dir", dataDir, "error", err)
			os.Exit(1)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Settings store, seeded with defaults on first run
		settingsStore := settings.NewFileStore(dataDir, logging.GetLogger("settings"))
		if _, statErr := os.Stat(settingsStore.Path()); os.IsNotExist(statErr) {
			if saveErr := settingsStore.Save(settings.Defaults()); saveErr != nil {
				logger.Warn("Failed to write default settings", "error", saveErr)
			}
		}

		// Update engine: resolver, downloader, installer, manager
		platform := update.CurrentPlatform()
		installer, err := update.NewPlatformInstaller(platform, dataDir, version.String(), logging.GetLogger("update"))
		if err != nil {
			logger.Error("Failed to initialize installer", "error", err)
			os.Exit(1)
		}

		updateManager := update.NewManager(update.Options{
			Resolver:       release.NewGitHubResolver(logging.GetLogger("release")),
			Downloader:     update.NewHTTPDownloader(logging.GetLogger("update")),
			Installer:      installer,
			Settings:       settingsStore,
			Bus:            eventBus,
			DataDir:        dataDir,
			Platform:       platform,
			CurrentVersion: version.String(),
		})

		// Attachment store for deep-linked downloads
		attachments, err := attachment.NewStore(eventBus, logging.GetLogger("attachment"))
		if err != nil {
			logger.Error("Failed to initialize attachment store", "error", err)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			UpdateManager:     updateManager,
			Attachments:       attachments,
			Settings:          settingsStore,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})

		// Watch the settings file so external edits reach SSE clients
		settingsWatcher := config.NewConfigWatcher(
			settingsStore.Path(),
			func(string) (settings.Settings, error) { return settingsStore.Load() },
			logging.GetLogger("settings"),
		)
		settingsWatcher.OnReload(func(s settings.Settings) {
			eventBus.Publish(events.SettingsChangedEvent{
				AutoCheck: s.AutoCheck,
				Owner:     s.Owner,
				Repo:      s.Repo,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})

		hooks.OnStart(func() {
			if watchErr := settingsWatcher.Start(); watchErr != nil {
				logger.Warn("Failed to start settings watcher", "error", watchErr)
			}

			// Kick off a background update check when auto-check is enabled
			if cfg, loadErr := settingsStore.Load(); loadErr == nil && cfg.AutoCheck {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if _, checkErr := updateManager.CheckForUpdates(ctx, false); checkErr != nil {
						logger.Warn("Startup update check failed", "error", checkErr)
					}
				}()
			}

			logger.Info("Starting HTTP server", "port", opts.Port, "version", version.String())
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := settingsWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping settings watcher", "error", stopErr)
			}

			// Remove temp attachment files
			if closeErr := attachments.Close(); closeErr != nil {
				logger.Warn("Error cleaning up attachments", "error", closeErr)
			}
		})
	})

	// Add check command
	checkCmd := cmd.CreateCheckCmd()
	cli.Root().AddCommand(checkCmd)

	// Add handle command for deep links
	handleCmd := cmd.CreateHandleCmd()
	cli.Root().AddCommand(handleCmd)

	// Run the CLI
	cli.Run()
}
