// Package engine defines the contract between pipemux and the pipeline
// runtime that schedules elements and moves media buffers. pipemux only
// drives the control plane: graph realization, state transitions, property
// access and latency negotiation. Everything else is the engine's business.
package engine

import (
	"errors"
	"time"
)

// Engine realizes a graph description into a runnable pipeline.
type Engine interface {
	// Name identifies the engine backend (e.g. "sim").
	Name() string

	// Parse realizes graph tokens into a pipeline named name.
	// Returns an error if an element factory is unknown, a property does
	// not exist on its element, or a property value cannot be applied.
	Parse(name string, tokens []string) (Pipeline, error)
}

// Pipeline is a live handle to one realized pipeline inside the engine.
// All methods are quick control-plane calls; none block on media flow.
type Pipeline interface {
	Name() string

	// Play transitions the pipeline to the running state.
	Play() error

	// Stop transitions the pipeline to a terminal stopped state and
	// releases engine resources. Safe to call more than once.
	Stop() error

	// SendEOS injects an end-of-stream event at the pipeline head.
	// The resulting EOS surfaces asynchronously on Messages.
	SendEOS()

	// Elements returns the top-level elements of the graph in chain
	// order. Elements nested in bins are reached via Element.Children.
	Elements() []Element

	// Messages returns the pipeline's asynchronous notification stream.
	// The channel is closed when the pipeline stops.
	Messages() <-chan Message

	// QueryLatency reports the currently negotiated latency range.
	// Returns ErrNotNegotiated while the pipeline has not negotiated yet.
	QueryLatency() (Range, error)

	// SetLatency records a pipeline-level latency override adopted on
	// the next renegotiation. It does not trigger renegotiation itself.
	SetLatency(d time.Duration) error

	// PushLatencyEvent forces an immediate latency renegotiation through
	// the graph. A Latency message surfaces on Messages afterwards.
	PushLatencyEvent() error
}

// Element is a named processing unit inside a pipeline graph.
type Element interface {
	Name() string

	// Factory returns the element type name the element was built from.
	Factory() string

	// Children returns nested elements for bin-like containers, nil for
	// leaf elements.
	Children() []Element

	// Property reads the current value of a property.
	Property(name string) (any, error)

	// PropertySpec returns the declared schema for a property.
	PropertySpec(name string) (PropSpec, bool)

	// SetProperty writes an already-coerced value. Use Coerce to convert
	// interpreter text into the spec's declared type first.
	SetProperty(name string, value any) error

	// QueryLatency reports the element's own latency contribution.
	QueryLatency() (Range, error)
}

// Errors the engine reports on control-plane calls. Callers classify with
// errors.Is; concrete engines may wrap these with detail.
var (
	ErrNotNegotiated   = errors.New("latency not negotiated yet")
	ErrUnknownProperty = errors.New("no such property")
	ErrPropertyType    = errors.New("property value has wrong type")
	ErrReadOnly        = errors.New("property is read-only")
	ErrStopped         = errors.New("pipeline is stopped")
)

// Range is a negotiated latency window. Max < 0 means unbounded.
type Range struct {
	Live bool
	Min  time.Duration
	Max  time.Duration
}

// Unbounded marks a Range.Max with no upper limit.
const Unbounded = time.Duration(-1)

// MessageKind discriminates asynchronous pipeline notifications.
type MessageKind int

// Message kinds delivered on Pipeline.Messages.
const (
	MessageEOS MessageKind = iota + 1
	MessageError
	MessageStateChanged
	MessageLatency
)

// Message is one asynchronous notification from a running pipeline.
type Message struct {
	Kind MessageKind

	// Error detail, set for MessageError.
	Error string

	// State transition detail, set for MessageStateChanged.
	OldState string
	NewState string
}
