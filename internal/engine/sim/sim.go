// Package sim is an in-memory pipeline engine used for development and
// tests. It realizes the gst-launch chain grammar subset pipemux is driven
// with and models state transitions, bus messages, property schemas and
// latency negotiation without touching real media.
package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/pipemux/internal/engine"
)

// Engine implements engine.Engine. One instance is shared by every
// pipeline of a session so inter-pipeline producer names resolve within
// the process, mirroring how all pipelines of the launcher share a single
// clock and base time.
type Engine struct {
	mu        sync.Mutex
	producers map[string]string // producer-name -> owning pipeline
}

// New creates a sim engine.
func New() *Engine {
	return &Engine{producers: make(map[string]string)}
}

// Name identifies the backend.
func (e *Engine) Name() string { return "sim" }

// Parse realizes graph tokens into a constructed (not yet running)
// pipeline. Grammar: `factory [prop=value ...] ! factory ...` with `( ... )`
// grouping elements into an anonymous bin.
func (e *Engine) Parse(name string, tokens []string) (engine.Pipeline, error) {
	p := &pipeline{
		name:     name,
		eng:      e,
		state:    stateConstructed,
		msgs:     make(chan engine.Message, 32),
		override: -1,
	}

	var (
		roots    []*element
		binStack []*element
		cur      *element
		counters = map[string]int{}
	)

	appendElement := func(el *element) {
		if len(binStack) > 0 {
			bin := binStack[len(binStack)-1]
			bin.children = append(bin.children, el)
		} else {
			roots = append(roots, el)
		}
	}

	for _, tok := range tokens {
		switch {
		case tok == "!":
			if cur == nil {
				return nil, fmt.Errorf("syntax error: link %q before any element", tok)
			}
			// Links are implicit in chain order; nothing to record.

		case tok == "(":
			bin := newBin(fmt.Sprintf("bin%d", counters["bin"]))
			counters["bin"]++
			appendElement(bin)
			binStack = append(binStack, bin)
			cur = nil

		case tok == ")":
			if len(binStack) == 0 {
				return nil, fmt.Errorf("syntax error: unmatched %q", tok)
			}
			cur = binStack[len(binStack)-1]
			binStack = binStack[:len(binStack)-1]

		case hasAssignment(tok):
			key, value := splitAssignment(tok)
			if cur == nil {
				return nil, fmt.Errorf("syntax error: property %q before any element", tok)
			}
			if key == "name" {
				cur.setName(value)
				continue
			}
			spec, ok := cur.PropertySpec(key)
			if !ok {
				return nil, fmt.Errorf("no property %q on element %q (%s)", key, cur.Name(), cur.factory)
			}
			typed, err := engine.Coerce(spec, value)
			if err != nil {
				return nil, fmt.Errorf("bad value for %s.%s: %w", cur.Name(), key, err)
			}
			if err := cur.SetProperty(key, typed); err != nil {
				return nil, err
			}

		default:
			spec, ok := factories[tok]
			if !ok {
				return nil, fmt.Errorf("no such element factory %q", tok)
			}
			el := newElement(tok, spec, fmt.Sprintf("%s%d", tok, counters[tok]))
			counters[tok]++
			appendElement(el)
			cur = el
		}
	}

	if len(binStack) > 0 {
		return nil, fmt.Errorf("syntax error: unclosed bin")
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("empty pipeline description")
	}

	p.roots = roots
	p.flat = flatten(roots)

	seen := make(map[string]bool, len(p.flat))
	for _, el := range p.flat {
		n := el.Name()
		if seen[n] {
			return nil, fmt.Errorf("duplicate element name %q", n)
		}
		seen[n] = true
	}

	return p, nil
}

// Producer reports which pipeline currently owns a producer-name, if any.
func (e *Engine) Producer(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.producers[name]
	return p, ok
}

func (e *Engine) registerProducer(name, pipeline string) {
	if name == "" {
		return
	}
	e.mu.Lock()
	e.producers[name] = pipeline
	e.mu.Unlock()
}

func (e *Engine) unregisterProducers(pipeline string) {
	e.mu.Lock()
	for name, owner := range e.producers {
		if owner == pipeline {
			delete(e.producers, name)
		}
	}
	e.mu.Unlock()
}

func hasAssignment(tok string) bool {
	for _, r := range tok {
		if r == '=' {
			return true
		}
	}
	return false
}

func splitAssignment(tok string) (key, value string) {
	for i, r := range tok {
		if r == '=' {
			return tok[:i], tok[i+1:]
		}
	}
	return tok, ""
}

func flatten(roots []*element) []*element {
	var out []*element
	var walk func(els []*element)
	walk = func(els []*element) {
		for _, el := range els {
			out = append(out, el)
			walk(el.children)
		}
	}
	walk(roots)
	return out
}

// computeLatency derives the pipeline's base latency range from the graph:
// live sources contribute their base latency, queues their configured
// minimum buffering time. intersrc elements deliberately contribute nothing
// from their upstream producer pipeline.
func computeLatency(flat []*element) engine.Range {
	var (
		live bool
		min  time.Duration
	)
	for _, el := range flat {
		if el.live {
			live = true
		}
		if len(el.children) > 0 {
			continue // children are in flat already
		}
		min += el.contribution()
	}
	max := min
	if live {
		max = engine.Unbounded
	}
	return engine.Range{Live: live, Min: min, Max: max}
}
