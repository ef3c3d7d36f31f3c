package pipelines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/pipemux/internal/engine"
	"github.com/smazurov/pipemux/internal/events"
	"github.com/smazurov/pipemux/internal/metrics"
)

// Termination records why a monitored session ended. Err is nil when the
// trigger was a normal end-of-stream.
type Termination struct {
	Pipeline string
	EOS      bool
	Err      error
}

// Supervisor drives every registered pipeline to running and multiplexes
// their notification streams until one of them ends the session. Any EOS
// or fatal error terminates the whole session; pipelines do not outlive
// each other (see DESIGN.md for the open-question resolution).
type Supervisor struct {
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor over a populated registry.
func NewSupervisor(registry *Registry, bus *events.Bus, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		registry: registry,
		bus:      bus,
		logger:   logger,
	}
}

// StartAll transitions every registered pipeline to running. Startup is
// all-or-nothing: if any transition fails, pipelines already started are
// stopped again and the failure is returned naming the offender.
func (s *Supervisor) StartAll() error {
	handles := s.registry.All()
	started := make([]*Handle, 0, len(handles))

	for _, h := range handles {
		s.logger.Info("Starting pipeline", "pipeline", h.Name)
		if err := h.Pipeline.Play(); err != nil {
			s.logger.Error("Pipeline failed to start", "pipeline", h.Name, "error", err)
			s.rollback(started)
			return NewError(ErrCodeConstructionFailed,
				fmt.Sprintf("starting pipeline %q", h.Name), err)
		}
		h.setState(StateRunning)
		started = append(started, h)
		metrics.SetPipelineState(h.Name, string(StateRunning))
		s.publish(events.PipelineStateChangedEvent{
			Pipeline:  h.Name,
			OldState:  string(StateConstructed),
			NewState:  string(StateRunning),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	s.logger.Info("All pipelines started", "count", len(started))
	return nil
}

// rollback stops pipelines started before a startup failure, newest first.
func (s *Supervisor) rollback(started []*Handle) {
	for i := len(started) - 1; i >= 0; i-- {
		h := started[i]
		if err := h.Pipeline.Stop(); err != nil {
			s.logger.Error("Rollback stop failed", "pipeline", h.Name, "error", err)
		}
		h.setState(StateStopped)
		metrics.SetPipelineState(h.Name, string(StateStopped))
	}
}

type busNote struct {
	handle *Handle
	msg    engine.Message
}

// Monitor blocks multiplexing over every pipeline's notification stream.
// It returns a Termination when any pipeline signals EOS or a fatal error,
// or nil when ctx is cancelled or every stream closes. The caller is
// responsible for invoking StopAll afterwards.
func (s *Supervisor) Monitor(ctx context.Context) *Termination {
	monCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan busNote)
	var wg sync.WaitGroup
	for _, h := range s.registry.All() {
		wg.Add(1)
		go func(h *Handle) {
			defer wg.Done()
			for {
				select {
				case msg, ok := <-h.Pipeline.Messages():
					if !ok {
						return
					}
					select {
					case merged <- busNote{handle: h, msg: msg}:
					case <-monCtx.Done():
						return
					}
				case <-monCtx.Done():
					return
				}
			}
		}(h)
	}

	allClosed := make(chan struct{})
	go func() {
		wg.Wait()
		close(allClosed)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-allClosed:
			return nil
		case note := <-merged:
			if term := s.handleMessage(note); term != nil {
				return term
			}
		}
	}
}

// handleMessage processes one bus notification. Returns a non-nil
// Termination for session-ending messages.
func (s *Supervisor) handleMessage(note busNote) *Termination {
	name := note.handle.Name
	switch note.msg.Kind {
	case engine.MessageEOS:
		s.logger.Info("End-of-stream reached", "pipeline", name)
		s.publish(events.PipelineEOSEvent{
			Pipeline:  name,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return &Termination{Pipeline: name, EOS: true}

	case engine.MessageError:
		s.logger.Error("Pipeline error", "pipeline", name, "error", note.msg.Error)
		s.publish(events.PipelineErrorEvent{
			Pipeline:  name,
			Message:   note.msg.Error,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return &Termination{
			Pipeline: name,
			Err: NewError(ErrCodeEngineError,
				fmt.Sprintf("pipeline %q", name), errors.New(note.msg.Error)),
		}

	case engine.MessageStateChanged:
		s.logger.Debug("Pipeline state changed", "pipeline", name,
			"old", note.msg.OldState, "new", note.msg.NewState)

	case engine.MessageLatency:
		r, err := note.handle.Pipeline.QueryLatency()
		if err != nil {
			s.logger.Warn("Latency recalculation query failed", "pipeline", name, "error", err)
			return nil
		}
		minMs, maxMs := RangeMillis(r)
		s.logger.Info("Latency renegotiated", "pipeline", name,
			"live", r.Live, "min_ms", minMs, "max_ms", maxMs)
		metrics.SetPipelineLatency(name, float64(minMs), float64(maxMs))
		s.publish(events.LatencyChangedEvent{
			Pipeline:  name,
			MinMs:     minMs,
			MaxMs:     maxMs,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return nil
}

// StopAll transitions every pipeline to stopped, in parallel. Individual
// failures are logged, never raised, so the process can always exit.
// Repeated calls are no-ops.
func (s *Supervisor) StopAll() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping all pipelines")
		var g errgroup.Group
		for _, h := range s.registry.All() {
			g.Go(func() error {
				if err := h.Pipeline.Stop(); err != nil {
					s.logger.Error("Failed to stop pipeline", "pipeline", h.Name, "error", err)
				}
				old := h.State()
				h.setState(StateStopped)
				metrics.SetPipelineState(h.Name, string(StateStopped))
				s.publish(events.PipelineStateChangedEvent{
					Pipeline:  h.Name,
					OldState:  string(old),
					NewState:  string(StateStopped),
					Timestamp: time.Now().Format(time.RFC3339),
				})
				return nil
			})
		}
		_ = g.Wait()
		s.logger.Info("All pipelines stopped")
	})
}

func (s *Supervisor) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// RangeMillis converts a latency range to millisecond values for logs,
// metrics and command output. An unbounded maximum maps to -1.
func RangeMillis(r engine.Range) (minMs, maxMs int64) {
	minMs = r.Min.Milliseconds()
	if r.Max < 0 {
		maxMs = -1
	} else {
		maxMs = r.Max.Milliseconds()
	}
	return minMs, maxMs
}
