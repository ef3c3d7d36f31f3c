package events

// Event type constants for kelindar/event.
const (
	TypePipelineStateChanged uint32 = iota + 1
	TypePipelineError
	TypePipelineEOS
	TypeLatencyChanged
	TypePropertySet
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PipelineStateChangedEvent represents a pipeline lifecycle transition.
type PipelineStateChangedEvent struct {
	Pipeline  string `json:"pipeline" example:"video_link_0" doc:"Pipeline name"`
	OldState  string `json:"old_state" example:"constructed" doc:"Previous state"`
	NewState  string `json:"new_state" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineStateChangedEvent.
func (e PipelineStateChangedEvent) Type() uint32 { return TypePipelineStateChanged }

// PipelineErrorEvent represents a fatal error signaled by a running
// pipeline. Always followed by full-session shutdown.
type PipelineErrorEvent struct {
	Pipeline  string `json:"pipeline" example:"video_link_0" doc:"Pipeline name"`
	Message   string `json:"message" doc:"Engine error detail"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineErrorEvent.
func (e PipelineErrorEvent) Type() uint32 { return TypePipelineError }

// PipelineEOSEvent represents end-of-stream reached on a pipeline.
type PipelineEOSEvent struct {
	Pipeline  string `json:"pipeline" example:"video_link_0" doc:"Pipeline name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PipelineEOSEvent.
func (e PipelineEOSEvent) Type() uint32 { return TypePipelineEOS }

// LatencyChangedEvent represents a latency override or renegotiation.
type LatencyChangedEvent struct {
	Pipeline  string `json:"pipeline" example:"video_link_1" doc:"Pipeline name"`
	MinMs     int64  `json:"min_ms" example:"5919" doc:"Negotiated minimum latency in milliseconds"`
	MaxMs     int64  `json:"max_ms" example:"-1" doc:"Negotiated maximum latency in milliseconds, -1 if unbounded"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LatencyChangedEvent.
func (e LatencyChangedEvent) Type() uint32 { return TypeLatencyChanged }

// PropertySetEvent represents a runtime element property mutation.
type PropertySetEvent struct {
	Pipeline  string `json:"pipeline" example:"video_link_0" doc:"Pipeline name"`
	Element   string `json:"element" example:"ingress_raw_video_queue" doc:"Element name"`
	Property  string `json:"property" example:"min-threshold-time" doc:"Property name"`
	Value     string `json:"value" example:"3000000000" doc:"Applied value as text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PropertySetEvent.
func (e PropertySetEvent) Type() uint32 { return TypePropertySet }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"pipelines" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
