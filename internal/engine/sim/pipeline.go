package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/pipemux/internal/engine"
)

// Internal pipeline states. The supervisor keeps its own state machine;
// these only guard call ordering inside the sim.
const (
	stateConstructed = "constructed"
	stateRunning     = "running"
	stateStopped     = "stopped"
)

// pipeline implements engine.Pipeline.
type pipeline struct {
	name string
	eng  *Engine

	mu        sync.Mutex
	state     string
	roots     []*element
	flat      []*element
	msgs      chan engine.Message
	closeOnce sync.Once

	negotiated  engine.Range
	haveLatency bool
	override    time.Duration // <0 when no operator override is pending
}

func (p *pipeline) Name() string { return p.name }

// Play transitions the pipeline to running and performs the initial
// latency negotiation. Inter-pipeline producer names become resolvable to
// consumers from this point on.
func (p *pipeline) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateStopped:
		return fmt.Errorf("%w: %s", engine.ErrStopped, p.name)
	case stateRunning:
		return nil
	}

	old := p.state
	p.state = stateRunning
	p.negotiated = computeLatency(p.flat)
	p.haveLatency = true

	for _, el := range p.flat {
		if el.factory != "intersink" {
			continue
		}
		if v, err := el.Property("producer-name"); err == nil {
			if name, ok := v.(string); ok {
				p.eng.registerProducer(name, p.name)
			}
		}
	}

	p.post(engine.Message{Kind: engine.MessageStateChanged, OldState: old, NewState: stateRunning})
	return nil
}

// Stop transitions to the terminal stopped state and closes the message
// channel. Tolerates repeated calls.
func (p *pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateStopped {
		return nil
	}
	old := p.state
	p.state = stateStopped
	p.haveLatency = false
	p.eng.unregisterProducers(p.name)

	p.post(engine.Message{Kind: engine.MessageStateChanged, OldState: old, NewState: stateStopped})
	p.closeOnce.Do(func() { close(p.msgs) })
	return nil
}

// SendEOS injects end-of-stream, surfacing asynchronously on Messages.
func (p *pipeline) SendEOS() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateRunning {
		return
	}
	p.post(engine.Message{Kind: engine.MessageEOS})
}

func (p *pipeline) Elements() []engine.Element {
	out := make([]engine.Element, len(p.roots))
	for i, el := range p.roots {
		out[i] = el
	}
	return out
}

func (p *pipeline) Messages() <-chan engine.Message { return p.msgs }

func (p *pipeline) QueryLatency() (engine.Range, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateStopped {
		return engine.Range{}, fmt.Errorf("%w: %s", engine.ErrStopped, p.name)
	}
	if !p.haveLatency {
		return engine.Range{}, fmt.Errorf("%w: %s", engine.ErrNotNegotiated, p.name)
	}
	return p.negotiated, nil
}

// SetLatency records an operator override. The override replaces any
// previous one and is adopted on the next renegotiation only.
func (p *pipeline) SetLatency(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative latency", engine.ErrPropertyType)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateStopped {
		return fmt.Errorf("%w: %s", engine.ErrStopped, p.name)
	}
	p.override = d
	return nil
}

// PushLatencyEvent renegotiates: the base range is recomputed from the
// graph and a pending override raises the minimum when it exceeds it.
func (p *pipeline) PushLatencyEvent() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateStopped {
		return fmt.Errorf("%w: %s", engine.ErrStopped, p.name)
	}

	r := computeLatency(p.flat)
	if p.override >= 0 && p.override > r.Min {
		r.Min = p.override
		if r.Max >= 0 && r.Max < r.Min {
			r.Max = engine.Unbounded
		}
	}
	p.negotiated = r
	p.haveLatency = true

	p.post(engine.Message{Kind: engine.MessageLatency})
	return nil
}

// InjectEOS simulates a source reaching end-of-stream.
func (p *pipeline) InjectEOS() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateRunning {
		p.post(engine.Message{Kind: engine.MessageEOS})
	}
}

// InjectError simulates a fatal element error.
func (p *pipeline) InjectError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateRunning {
		p.post(engine.Message{Kind: engine.MessageError, Error: msg})
	}
}

// post delivers a message without ever blocking the control plane; a full
// bus drops the message, matching fire-and-forget bus semantics.
func (p *pipeline) post(msg engine.Message) {
	select {
	case p.msgs <- msg:
	default:
	}
}
