package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/wab2b/wab2b-helper/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for update state, download progress, attachments and settings changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"update-state":      events.UpdateStateEvent{},
		"download-progress": events.DownloadProgressEvent{},
		"attachment-ready":  events.AttachmentReadyEvent{},
		"attachment-error":  events.AttachmentErrorEvent{},
		"settings-changed":  events.SettingsChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		// Subscribe to all event types using the event bus
		unsubscribers := []func(){
			events.SubscribeToChannel[events.UpdateStateEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.DownloadProgressEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.AttachmentReadyEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.AttachmentErrorEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.SettingsChangedEvent](s.options.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send the current update state so a new connection starts in sync
		snap := s.options.UpdateManager.Status()
		if err := send.Data(events.UpdateStateEvent{
			State:          string(snap.State),
			CurrentVersion: snap.CurrentVersion,
			LatestVersion:  snap.LatestVersion,
			ReleaseNotes:   snap.ReleaseNotes,
			Progress:       snap.Progress,
			Error:          snap.Error,
			FilePath:       snap.FilePath,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				// Send event using Huma's SSE sender with error handling
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
