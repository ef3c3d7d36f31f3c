package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Pipeline models
type PipelineData struct {
	Name      string    `json:"name" example:"video_link_0" doc:"Pipeline name"`
	State     string    `json:"state" example:"running" doc:"Current lifecycle state"`
	Elements  []string  `json:"elements" doc:"Names of all elements in the pipeline, including bin children"`
	StartedAt time.Time `json:"started_at,omitempty" doc:"When the pipeline entered the running state"`
}

type PipelineListData struct {
	Pipelines []PipelineData `json:"pipelines" doc:"All launched pipelines in declaration order"`
	Count     int            `json:"count" example:"2" doc:"Number of pipelines"`
}

type PipelineListResponse struct {
	Body PipelineListData
}

type PipelineResponse struct {
	Body PipelineData
}

// Latency models
type LatencyData struct {
	Pipeline string `json:"pipeline" example:"video_link_1" doc:"Pipeline name"`
	Element  string `json:"element,omitempty" example:"ingress_raw_video_queue" doc:"Element name when querying a single element"`
	Live     bool   `json:"live" example:"true" doc:"Whether any live source participates"`
	MinMs    int64  `json:"min_ms" example:"5919" doc:"Minimum latency in milliseconds"`
	MaxMs    int64  `json:"max_ms" example:"-1" doc:"Maximum latency in milliseconds, -1 if unbounded"`
}

type LatencyResponse struct {
	Body LatencyData
}

type SetLatencyRequest struct {
	Body struct {
		LatencyMs int64 `json:"latency_ms" minimum:"0" example:"5919" doc:"Latency override in milliseconds"`
	}
}

// Property models
type PropertyRequest struct {
	Body struct {
		Value string `json:"value" minLength:"1" example:"3000000000" doc:"Property value as text, coerced to the declared type"`
	}
}

type PropertyData struct {
	Pipeline string `json:"pipeline" example:"video_link_1" doc:"Pipeline name"`
	Element  string `json:"element" example:"ingress_raw_video_queue" doc:"Element name"`
	Property string `json:"property" example:"min-threshold-time" doc:"Property name"`
	Value    string `json:"value" example:"3000000000" doc:"Applied value as text"`
}

type PropertyResponse struct {
	Body PropertyData
}

// Metrics models
type PipelineMetricsData struct {
	Pipeline     string `json:"pipeline" example:"video_link_0" doc:"Pipeline name"`
	State        string `json:"state" example:"running" doc:"Last reported state"`
	LatencyMinMs int64  `json:"latency_min_ms" example:"16" doc:"Last reported minimum latency in milliseconds"`
	LatencyMaxMs int64  `json:"latency_max_ms" example:"-1" doc:"Last reported maximum latency in milliseconds, -1 if unbounded"`
}

type PipelineMetricsResponse struct {
	Body PipelineMetricsData
}

// Error response
type ErrorData struct {
	Status  string `json:"status" example:"error" doc:"Error status"`
	Message string `json:"message" example:"Pipeline not found" doc:"Error message"`
}

type ErrorResponse struct {
	Body ErrorData
}
