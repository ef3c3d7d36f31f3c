// Package latency implements the manual latency bridging between
// pipelines. Inter-pipeline link elements transfer buffers but not latency
// negotiation, so an operator reads latency on the producer side, overrides
// it on the consumer side and pushes a renegotiation event to make the
// downstream pipeline adopt it.
package latency

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/pipemux/internal/engine"
	"github.com/smazurov/pipemux/internal/events"
	"github.com/smazurov/pipemux/internal/pipelines"
)

// Coordinator exposes the latency and property operations of the command
// surface. All calls are quick control-plane calls against the registry
// and the engine.
type Coordinator struct {
	registry *pipelines.Registry
	bus      *events.Bus
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator over a populated registry.
func NewCoordinator(registry *pipelines.Registry, bus *events.Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry: registry,
		bus:      bus,
		logger:   logger,
	}
}

// GetLatency queries the aggregate negotiated latency of a pipeline, or a
// single element's own range when elementName is non-empty. Returns
// QUERY_FAILED when the engine cannot currently answer.
func (c *Coordinator) GetLatency(pipelineName, elementName string) (engine.Range, error) {
	if elementName != "" {
		el, err := c.registry.LookupElement(pipelineName, elementName)
		if err != nil {
			return engine.Range{}, err
		}
		r, err := el.QueryLatency()
		if err != nil {
			return engine.Range{}, pipelines.NewError(pipelines.ErrCodeQueryFailed,
				fmt.Sprintf("element %q in pipeline %q", elementName, pipelineName), err)
		}
		return r, nil
	}

	h, err := c.registry.LookupPipeline(pipelineName)
	if err != nil {
		return engine.Range{}, err
	}
	r, err := h.Pipeline.QueryLatency()
	if err != nil {
		return engine.Range{}, pipelines.NewError(pipelines.ErrCodeQueryFailed,
			fmt.Sprintf("pipeline %q", pipelineName), err)
	}
	return r, nil
}

// SetLatency records a pipeline-level latency override. The override
// replaces any previous value and takes effect on the next renegotiation;
// it does not trigger one.
func (c *Coordinator) SetLatency(pipelineName string, d time.Duration) error {
	if d < 0 {
		return pipelines.NewError(pipelines.ErrCodePropertyRejected,
			"latency must be non-negative", nil)
	}
	h, err := c.registry.LookupPipeline(pipelineName)
	if err != nil {
		return err
	}
	if err := h.Pipeline.SetLatency(d); err != nil {
		return pipelines.NewError(pipelines.ErrCodeQueryFailed,
			fmt.Sprintf("pipeline %q", pipelineName), err)
	}
	c.logger.Info("Latency override recorded", "pipeline", pipelineName, "latency_ms", d.Milliseconds())
	return nil
}

// PushLatencyEvent forces an immediate latency renegotiation through the
// pipeline graph. This is the manual propagation step for latency changes
// across inter-pipeline links.
func (c *Coordinator) PushLatencyEvent(pipelineName string) error {
	h, err := c.registry.LookupPipeline(pipelineName)
	if err != nil {
		return err
	}
	if err := h.Pipeline.PushLatencyEvent(); err != nil {
		return pipelines.NewError(pipelines.ErrCodeQueryFailed,
			fmt.Sprintf("pipeline %q", pipelineName), err)
	}
	c.logger.Info("Latency event pushed", "pipeline", pipelineName)
	return nil
}

// SetProperty writes a named element property. The text value is coerced
// to the property's declared type from the engine schema; coercion
// failures, unknown properties and read-only properties are all
// PROPERTY_REJECTED.
func (c *Coordinator) SetProperty(pipelineName, elementName, property, value string) error {
	el, err := c.registry.LookupElement(pipelineName, elementName)
	if err != nil {
		return err
	}

	spec, ok := el.PropertySpec(property)
	if !ok {
		return pipelines.NewError(pipelines.ErrCodePropertyRejected,
			fmt.Sprintf("no property %q on element %q", property, elementName), nil)
	}
	typed, err := engine.Coerce(spec, value)
	if err != nil {
		return pipelines.NewError(pipelines.ErrCodePropertyRejected,
			fmt.Sprintf("property %q on element %q", property, elementName), err)
	}
	if err := el.SetProperty(property, typed); err != nil {
		return pipelines.NewError(pipelines.ErrCodePropertyRejected,
			fmt.Sprintf("property %q on element %q", property, elementName), err)
	}

	c.logger.Info("Property set", "pipeline", pipelineName,
		"element", elementName, "property", property, "value", value)
	if c.bus != nil {
		c.bus.Publish(events.PropertySetEvent{
			Pipeline:  pipelineName,
			Element:   elementName,
			Property:  property,
			Value:     value,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return nil
}
