package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wab2b/wab2b-helper/internal/logging"
	"github.com/wab2b/wab2b-helper/internal/release"
	"github.com/wab2b/wab2b-helper/internal/settings"
	"github.com/wab2b/wab2b-helper/internal/update"
	"github.com/wab2b/wab2b-helper/internal/version"
)

// CreateCheckCmd creates the check command: a one-shot update check that
// prints the result as JSON and exits.
func CreateCheckCmd() *cobra.Command {
	var owner string
	var repo string
	var includePrerelease bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for updates",
		Long: `Queries the configured release source for the newest qualifying release, ` +
			`compares it against the running version and prints the result as JSON.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("check")

			cfg := settings.Defaults()
			if dir, err := settings.AppDataDir(); err == nil {
				if loaded, loadErr := settings.NewFileStore(dir, logger).Load(); loadErr == nil {
					cfg = loaded
				}
			}
			if owner != "" {
				cfg.Owner = owner
			}
			if repo != "" {
				cfg.Repo = repo
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			resolver := release.NewGitHubResolver(logger)
			info, err := resolver.FetchLatest(ctx, cfg.Owner, cfg.Repo, includePrerelease)
			if err != nil {
				logger.Error("Update check failed", "error", err)
				os.Exit(1)
			}

			current := version.String()
			result := update.CheckResult{
				CurrentVersion:  current,
				LatestVersion:   info.Version,
				ReleaseNotes:    info.ReleaseNotes,
				PublishedAt:     info.PublishedAt,
				UpdateAvailable: update.Compare(info.Version, current) == update.Greater,
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				logger.Error("Failed to encode result", "error", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Release source owner (overrides settings)")
	cmd.Flags().StringVar(&repo, "repo", "", "Release source repository (overrides settings)")
	cmd.Flags().BoolVar(&includePrerelease, "prerelease", false, "Consider pre-release versions")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	return cmd
}
