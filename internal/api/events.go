package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/pipemux/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	// Register SSE endpoint with event type mapping
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for pipeline state changes, latency renegotiations and property mutations",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"pipeline-state-changed": events.PipelineStateChangedEvent{},
		"pipeline-error":         events.PipelineErrorEvent{},
		"pipeline-eos":           events.PipelineEOSEvent{},
		"latency-changed":        events.LatencyChangedEvent{},
		"property-set":           events.PropertySetEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 10)

		// Subscribe to all event types using event bus
		unsubscribers := []func(){
			events.SubscribeToChannel[events.PipelineStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PipelineErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PipelineEOSEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LatencyChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PropertySetEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send a snapshot of current pipeline states so late subscribers
		// see the session without waiting for the next transition.
		for _, h := range s.registry.All() {
			snapshot := events.PipelineStateChangedEvent{
				Pipeline:  h.Name,
				OldState:  string(h.State()),
				NewState:  string(h.State()),
				Timestamp: time.Now().Format(time.RFC3339),
			}
			if err := send.Data(snapshot); err != nil {
				return
			}
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
