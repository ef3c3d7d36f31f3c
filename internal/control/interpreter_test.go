package control

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/pipemux/internal/engine/sim"
	"github.com/smazurov/pipemux/internal/events"
	"github.com/smazurov/pipemux/internal/latency"
	"github.com/smazurov/pipemux/internal/pipelines"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSession builds a running two-pipeline session for command tests.
func newSession(t *testing.T) (*pipelines.Registry, *latency.Coordinator) {
	t.Helper()
	registry := pipelines.NewRegistry(sim.New(), testLogger())

	graphs := map[string]string{
		"p0": "videotestsrc ! queue name=q ! fakesink",
		"p1": "audiotestsrc ! fakesink",
	}
	for _, name := range []string{"p0", "p1"} {
		h, err := registry.Register(pipelines.Spec{
			Name:        name,
			GraphTokens: strings.Fields(graphs[name]),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := h.Pipeline.Play(); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { h.Pipeline.Stop() })
	}

	return registry, latency.NewCoordinator(registry, events.New(), testLogger())
}

// runScript feeds a command script to an interpreter and returns the
// result lines it wrote.
func runScript(t *testing.T, script string) []string {
	t.Helper()
	registry, coord := newSession(t)

	var out bytes.Buffer
	interp := NewInterpreter(registry, coord, testLogger(), strings.NewReader(script), &out)
	interp.Run(context.Background())

	text := strings.TrimRight(out.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestGetLatencyCommand(t *testing.T) {
	lines := runScript(t, "get-latency --pipeline p0\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	want := "ok: latency pipeline=p0 live=true min_ms=33 max_ms=-1"
	if lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestGetLatencyElementCommand(t *testing.T) {
	lines := runScript(t, "get-latency --pipeline p0 --element q\n")
	want := "ok: latency pipeline=p0 element=q live=false min_ms=0 max_ms=0"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %v, want %q", lines, want)
	}
}

func TestLatencyOverrideScript(t *testing.T) {
	lines := runScript(t,
		"set-latency --pipeline p0 --latency-ms 5919\n"+
			"push-latency-event --pipeline p0\n"+
			"get-latency --pipeline p0\n"+
			"exit\n")

	want := []string{
		"ok: set-latency pipeline=p0 latency_ms=5919",
		"ok: push-latency-event pipeline=p0",
		"ok: latency pipeline=p0 live=true min_ms=5919 max_ms=-1",
		"ok: exit",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSetPropertyCommand(t *testing.T) {
	lines := runScript(t,
		"set-property --pipeline p0 --element q --property min-threshold-time --value 3000000000\n")
	want := "ok: set-property pipeline=p0 element=q property=min-threshold-time value=3000000000"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %v, want %q", lines, want)
	}
}

func TestListPipelinesCommand(t *testing.T) {
	lines := runScript(t, "list-pipelines\n")
	want := "ok: pipelines p0=running p1=running"
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %v, want %q", lines, want)
	}
}

func TestFailedCommandDoesNotEndLoop(t *testing.T) {
	lines := runScript(t,
		"bogus-command\n"+
			"get-latency --pipeline nope\n"+
			"get-latency\n"+
			"set-property --pipeline p0 --element q --property frobnicate --value 1\n"+
			"list-pipelines\n")

	if len(lines) != 5 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	prefixes := []string{
		"error: UNKNOWN_COMMAND: ",
		"error: PIPELINE_NOT_FOUND: ",
		"error: UNKNOWN_COMMAND: ",
		"error: PROPERTY_REJECTED: ",
		"ok: pipelines",
	}
	for i, prefix := range prefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestExitStopsProcessing(t *testing.T) {
	lines := runScript(t, "exit\nlist-pipelines\n")
	if len(lines) != 1 || lines[0] != "ok: exit" {
		t.Errorf("lines = %v, want single ok: exit", lines)
	}
}

func TestBlankLinesIgnored(t *testing.T) {
	lines := runScript(t, "\n\nlist-pipelines\n\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "ok: pipelines") {
		t.Errorf("lines = %v", lines)
	}
}

func TestEndOfInputIsImplicitExit(t *testing.T) {
	// Run must return synchronously when the script runs dry.
	if lines := runScript(t, ""); lines != nil {
		t.Errorf("lines = %v, want none", lines)
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	registry, coord := newSession(t)

	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	interp := NewInterpreter(registry, coord, testLogger(), pr, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		interp.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestPromptWritten(t *testing.T) {
	registry, coord := newSession(t)

	var out bytes.Buffer
	interp := NewInterpreter(registry, coord, testLogger(), strings.NewReader("exit\n"), &out)
	interp.SetPrompt(true)
	interp.Run(context.Background())

	if !strings.HasPrefix(out.String(), "pipemux> ") {
		t.Errorf("output = %q, want leading prompt", out.String())
	}
}
