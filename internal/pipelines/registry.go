package pipelines

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/pipemux/internal/engine"
)

// State represents the lifecycle state of a supervised pipeline.
type State string

// Pipeline states. There is no way back from Stopped.
const (
	StateConstructed State = "constructed" // Realized, not yet running
	StateRunning     State = "running"     // Playing inside the engine
	StateStopped     State = "stopped"     // Terminal
)

// Handle is a live pipeline plus its element index. The index is built
// once at registration; dynamic element add/remove is out of scope.
type Handle struct {
	Name     string
	Pipeline engine.Pipeline

	elements map[string]engine.Element

	mu        sync.RWMutex
	state     State
	startedAt time.Time
}

// State returns the supervisor-tracked lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// StartedAt returns when the pipeline entered Running, zero if never.
func (h *Handle) StartedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.startedAt
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	if s == StateRunning {
		h.startedAt = time.Now()
	}
	h.mu.Unlock()
}

// Element looks up a named element in the index.
func (h *Handle) Element(name string) (engine.Element, bool) {
	el, ok := h.elements[name]
	return el, ok
}

// ElementNames returns all indexed element names in graph walk order.
func (h *Handle) ElementNames() []string {
	names := make([]string, 0, len(h.elements))
	walkElements(h.Pipeline.Elements(), func(el engine.Element) {
		names = append(names, el.Name())
	})
	return names
}

// Registry owns the process-wide name -> pipeline mapping. It is written
// only during startup registration and torn down once at shutdown; during
// steady state both the supervisor and the interpreter read it
// concurrently.
type Registry struct {
	eng    engine.Engine
	logger *slog.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
	order   []string
}

// NewRegistry creates an empty registry bound to an engine.
func NewRegistry(eng engine.Engine, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		eng:     eng,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Register realizes a spec into a constructed pipeline and indexes its
// named elements, recursing into bins. Fails with CONSTRUCTION_FAILED on
// engine parse errors or a name collision; the registry is unchanged on
// failure.
func (r *Registry) Register(spec Spec) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[spec.Name]; exists {
		return nil, NewError(ErrCodeConstructionFailed,
			fmt.Sprintf("pipeline %q already registered", spec.Name), nil)
	}

	p, err := r.eng.Parse(spec.Name, spec.GraphTokens)
	if err != nil {
		return nil, NewError(ErrCodeConstructionFailed,
			fmt.Sprintf("pipeline %q", spec.Name), err)
	}

	h := &Handle{
		Name:     spec.Name,
		Pipeline: p,
		elements: make(map[string]engine.Element),
		state:    StateConstructed,
	}
	walkElements(p.Elements(), func(el engine.Element) {
		h.elements[el.Name()] = el
	})

	r.handles[spec.Name] = h
	r.order = append(r.order, spec.Name)
	r.logger.Info("Pipeline registered", "pipeline", spec.Name, "elements", len(h.elements))
	return h, nil
}

// LookupPipeline resolves a pipeline by name.
func (r *Registry) LookupPipeline(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	if !ok {
		return nil, NewError(ErrCodePipelineNotFound,
			fmt.Sprintf("no pipeline named %q", name), nil)
	}
	return h, nil
}

// LookupElement resolves an element inside a named pipeline.
func (r *Registry) LookupElement(pipelineName, elementName string) (engine.Element, error) {
	h, err := r.LookupPipeline(pipelineName)
	if err != nil {
		return nil, err
	}
	el, ok := h.Element(elementName)
	if !ok {
		return nil, NewError(ErrCodeElementNotFound,
			fmt.Sprintf("no element %q in pipeline %q", elementName, pipelineName), nil)
	}
	return el, nil
}

// All returns every handle in registration order.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handles[name])
	}
	return out
}

func walkElements(els []engine.Element, fn func(engine.Element)) {
	for _, el := range els {
		fn(el)
		if children := el.Children(); children != nil {
			walkElements(children, fn)
		}
	}
}
