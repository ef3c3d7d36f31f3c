package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/pipemux/internal/engine"
)

// element implements engine.Element for the sim backend.
type element struct {
	name    string
	factory string
	live    bool
	base    time.Duration

	mu       sync.RWMutex
	props    map[string]any
	specs    map[string]engine.PropSpec
	children []*element
}

func newElement(factoryName string, spec factorySpec, name string) *element {
	props := make(map[string]any, len(spec.props))
	for key, ps := range spec.props {
		props[key] = ps.Default
	}
	return &element{
		name:    name,
		factory: factoryName,
		live:    spec.live,
		base:    spec.latency,
		props:   props,
		specs:   spec.props,
	}
}

func newBin(name string) *element {
	return &element{
		name:    name,
		factory: "bin",
		props:   map[string]any{},
		specs:   map[string]engine.PropSpec{},
	}
}

func (e *element) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

func (e *element) Factory() string { return e.factory }

func (e *element) Children() []engine.Element {
	if len(e.children) == 0 {
		return nil
	}
	out := make([]engine.Element, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

func (e *element) Property(name string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", engine.ErrUnknownProperty, name, e.name)
	}
	return v, nil
}

func (e *element) PropertySpec(name string) (engine.PropSpec, bool) {
	spec, ok := e.specs[name]
	return spec, ok
}

func (e *element) SetProperty(name string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	spec, ok := e.specs[name]
	if !ok {
		return fmt.Errorf("%w: %q on %s", engine.ErrUnknownProperty, name, e.name)
	}
	if !spec.Writable {
		return fmt.Errorf("%w: %q on %s", engine.ErrReadOnly, name, e.name)
	}
	if !kindMatches(spec.Kind, value) {
		return fmt.Errorf("%w: %q on %s wants %s, got %T",
			engine.ErrPropertyType, name, e.name, spec.Kind, value)
	}
	e.props[name] = value
	return nil
}

// QueryLatency reports the element's own contribution: base latency for
// live sources plus any configured minimum buffering time.
func (e *element) QueryLatency() (engine.Range, error) {
	min := e.contribution()
	max := min
	if e.live {
		max = engine.Unbounded
	}
	return engine.Range{Live: e.live, Min: min, Max: max}, nil
}

func (e *element) contribution() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	total := e.base
	if v, ok := e.props["min-threshold-time"]; ok {
		if d, isDur := v.(time.Duration); isDur {
			total += d
		}
	}
	for _, c := range e.children {
		total += c.contribution()
	}
	return total
}

func (e *element) setName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

func kindMatches(kind engine.PropKind, value any) bool {
	switch kind {
	case engine.KindString:
		_, ok := value.(string)
		return ok
	case engine.KindBool:
		_, ok := value.(bool)
		return ok
	case engine.KindInt:
		_, ok := value.(int64)
		return ok
	case engine.KindUint:
		_, ok := value.(uint64)
		return ok
	case engine.KindFloat:
		_, ok := value.(float64)
		return ok
	case engine.KindNanoseconds:
		_, ok := value.(time.Duration)
		return ok
	default:
		return false
	}
}
