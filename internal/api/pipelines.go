package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/pipemux/internal/api/models"
	"github.com/smazurov/pipemux/internal/metrics"
	"github.com/smazurov/pipemux/internal/pipelines"
)

// registerPipelineRoutes registers all pipeline observation and control routes.
func (s *Server) registerPipelineRoutes() {
	// List all pipelines
	huma.Register(s.api, huma.Operation{
		OperationID: "list-pipelines",
		Method:      http.MethodGet,
		Path:        "/api/pipelines",
		Summary:     "List Pipelines",
		Description: "List all launched pipelines with their current state and elements",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PipelineListResponse, error) {
		handles := s.registry.All()
		data := make([]models.PipelineData, 0, len(handles))
		for _, h := range handles {
			data = append(data, pipelineData(h))
		}
		return &models.PipelineListResponse{
			Body: models.PipelineListData{
				Pipelines: data,
				Count:     len(data),
			},
		}, nil
	})

	// Get a single pipeline
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{name}",
		Summary:     "Get Pipeline",
		Description: "Get state and element inventory of a single pipeline",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"video_link_0" doc:"Pipeline name"`
	}) (*models.PipelineResponse, error) {
		h, err := s.registry.LookupPipeline(input.Name)
		if err != nil {
			return nil, s.mapPipelineError(err)
		}
		return &models.PipelineResponse{Body: pipelineData(h)}, nil
	})

	// Query negotiated latency
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline-latency",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{name}/latency",
		Summary:     "Get Latency",
		Description: "Query the negotiated latency of a pipeline, or of a single element when the element query parameter is set",
		Tags:        []string{"latency"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *struct {
		Name    string `path:"name" example:"video_link_1" doc:"Pipeline name"`
		Element string `query:"element" required:"false" example:"ingress_raw_video_queue" doc:"Optional element name"`
	}) (*models.LatencyResponse, error) {
		r, err := s.coord.GetLatency(input.Name, input.Element)
		if err != nil {
			return nil, s.mapPipelineError(err)
		}
		minMs, maxMs := pipelines.RangeMillis(r)
		return &models.LatencyResponse{
			Body: models.LatencyData{
				Pipeline: input.Name,
				Element:  input.Element,
				Live:     r.Live,
				MinMs:    minMs,
				MaxMs:    maxMs,
			},
		}, nil
	})

	// Record a latency override
	huma.Register(s.api, huma.Operation{
		OperationID: "set-pipeline-latency",
		Method:      http.MethodPut,
		Path:        "/api/pipelines/{name}/latency",
		Summary:     "Set Latency",
		Description: "Record a pipeline latency override. Takes effect on the next latency renegotiation; push a latency event to apply it immediately.",
		Tags:        []string{"latency"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"video_link_1" doc:"Pipeline name"`
		Body struct {
			LatencyMs int64 `json:"latency_ms" minimum:"0" example:"5919" doc:"Latency override in milliseconds"`
		}
	}) (*models.LatencyResponse, error) {
		d := time.Duration(input.Body.LatencyMs) * time.Millisecond
		if err := s.coord.SetLatency(input.Name, d); err != nil {
			return nil, s.mapPipelineError(err)
		}
		return &models.LatencyResponse{
			Body: models.LatencyData{
				Pipeline: input.Name,
				MinMs:    input.Body.LatencyMs,
				MaxMs:    input.Body.LatencyMs,
			},
		}, nil
	})

	// Push a latency renegotiation event
	huma.Register(s.api, huma.Operation{
		OperationID: "push-latency-event",
		Method:      http.MethodPost,
		Path:        "/api/pipelines/{name}/latency-event",
		Summary:     "Push Latency Event",
		Description: "Force an immediate latency renegotiation through the pipeline graph",
		Tags:        []string{"latency"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"video_link_1" doc:"Pipeline name"`
	}) (*models.LatencyResponse, error) {
		if err := s.coord.PushLatencyEvent(input.Name); err != nil {
			return nil, s.mapPipelineError(err)
		}
		r, err := s.coord.GetLatency(input.Name, "")
		if err != nil {
			return nil, s.mapPipelineError(err)
		}
		minMs, maxMs := pipelines.RangeMillis(r)
		return &models.LatencyResponse{
			Body: models.LatencyData{
				Pipeline: input.Name,
				Live:     r.Live,
				MinMs:    minMs,
				MaxMs:    maxMs,
			},
		}, nil
	})

	// Set an element property
	huma.Register(s.api, huma.Operation{
		OperationID: "set-element-property",
		Method:      http.MethodPut,
		Path:        "/api/pipelines/{name}/elements/{element}/properties/{property}",
		Summary:     "Set Element Property",
		Description: "Set a named property on an element of a running pipeline. The text value is coerced to the property's declared type.",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(_ context.Context, input *struct {
		Name     string `path:"name" example:"video_link_1" doc:"Pipeline name"`
		Element  string `path:"element" example:"ingress_raw_video_queue" doc:"Element name"`
		Property string `path:"property" example:"min-threshold-time" doc:"Property name"`
		Body     struct {
			Value string `json:"value" minLength:"1" example:"3000000000" doc:"Property value as text"`
		}
	}) (*models.PropertyResponse, error) {
		if err := s.coord.SetProperty(input.Name, input.Element, input.Property, input.Body.Value); err != nil {
			return nil, s.mapPipelineError(err)
		}
		return &models.PropertyResponse{
			Body: models.PropertyData{
				Pipeline: input.Name,
				Element:  input.Element,
				Property: input.Property,
				Value:    input.Body.Value,
			},
		}, nil
	})

	// Pipeline metrics snapshot
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pipeline-metrics",
		Method:      http.MethodGet,
		Path:        "/api/pipelines/{name}/metrics",
		Summary:     "Get Pipeline Metrics",
		Description: "Get the last reported metric values for a pipeline",
		Tags:        []string{"pipelines"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"video_link_0" doc:"Pipeline name"`
	}) (*models.PipelineMetricsResponse, error) {
		if _, err := s.registry.LookupPipeline(input.Name); err != nil {
			return nil, s.mapPipelineError(err)
		}
		m := metrics.GetPipelineMetrics(input.Name)
		if m == nil {
			return nil, huma.Error404NotFound("no metrics recorded for pipeline " + input.Name)
		}
		return &models.PipelineMetricsResponse{
			Body: models.PipelineMetricsData{
				Pipeline:     input.Name,
				State:        m.State,
				LatencyMinMs: int64(m.LatencyMinMs),
				LatencyMaxMs: int64(m.LatencyMaxMs),
			},
		}, nil
	})
}

// pipelineData converts a registry handle to its API representation.
func pipelineData(h *pipelines.Handle) models.PipelineData {
	return models.PipelineData{
		Name:      h.Name,
		State:     string(h.State()),
		Elements:  h.ElementNames(),
		StartedAt: h.StartedAt(),
	}
}

// mapPipelineError converts domain errors to HTTP status errors.
func (s *Server) mapPipelineError(err error) error {
	var domainErr *pipelines.Error
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case pipelines.ErrCodePipelineNotFound, pipelines.ErrCodeElementNotFound:
			return huma.Error404NotFound(domainErr.Message, err)
		case pipelines.ErrCodePropertyRejected:
			return huma.Error422UnprocessableEntity(domainErr.Message, err)
		case pipelines.ErrCodeQueryFailed:
			return huma.Error409Conflict(domainErr.Message, err)
		case pipelines.ErrCodeMalformedSpec:
			return huma.Error400BadRequest(domainErr.Message, err)
		default:
			return huma.Error500InternalServerError("internal server error", err)
		}
	}
	return huma.Error500InternalServerError("internal server error", err)
}
