package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wab2b/wab2b-helper/internal/attachment"
	"github.com/wab2b/wab2b-helper/internal/events"
	"github.com/wab2b/wab2b-helper/internal/logging"
)

// CreateHandleCmd creates the handle command: fetches a wab2b-helper: deep
// link into a local file and prints its metadata as JSON. This is the entry
// point the OS protocol handler invokes.
func CreateHandleCmd() *cobra.Command {
	var timeout time.Duration
	var saveTo string

	cmd := &cobra.Command{
		Use:   "handle <url>",
		Short: "Handle a deep link",
		Long: `Downloads the file behind a wab2b-helper: deep link (or a plain http(s) URL) ` +
			`and prints the file metadata as JSON.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("handle")

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := runHandle(ctx, args[0], saveTo, os.Stdout, logger); err != nil {
				logger.Error("Failed to handle deep link", "url", args[0], "error", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Download timeout")
	cmd.Flags().StringVar(&saveTo, "save-to", "", "Copy the downloaded file to this path")

	return cmd
}

// runHandle fetches the deep-linked file and writes its metadata as JSON.
// Without a save destination the downloaded file stays on disk; the printed
// file_path is the result the caller consumes. With one, the file is copied
// there and the temporary store is removed.
func runHandle(ctx context.Context, target, saveTo string, out io.Writer, logger *slog.Logger) error {
	if parsed, err := attachment.ParseSchemeURL(target); err == nil {
		target = parsed
	}

	store, err := attachment.NewStore(events.New(), logger)
	if err != nil {
		return err
	}

	info, err := store.Fetch(ctx, target)
	if err != nil {
		_ = store.Close()
		return err
	}

	if saveTo != "" {
		if _, err := store.SaveTo(info.ID, saveTo); err != nil {
			_ = store.Close()
			return err
		}
		info.FilePath = saveTo
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("Failed to clean up attachment store", "error", closeErr)
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}
