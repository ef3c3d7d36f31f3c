// Package control implements the line-oriented runtime command surface.
// Commands arrive one per line on an input stream (interactive terminal or
// piped script), are parsed with pflag flag sets and dispatched as quick
// control-plane calls; every command produces exactly one result line.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/smazurov/pipemux/internal/latency"
	"github.com/smazurov/pipemux/internal/pipelines"
)

// Interpreter reads operator commands and dispatches them against the
// registry and the latency coordinator. Commands execute one at a time in
// arrival order; a failed command never terminates the loop.
type Interpreter struct {
	registry *pipelines.Registry
	coord    *latency.Coordinator
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
	prompt   bool
}

// NewInterpreter creates an interpreter reading commands from in and
// writing result lines to out.
func NewInterpreter(
	registry *pipelines.Registry,
	coord *latency.Coordinator,
	logger *slog.Logger,
	in io.Reader,
	out io.Writer,
) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		registry: registry,
		coord:    coord,
		logger:   logger,
		in:       in,
		out:      out,
	}
}

// SetPrompt enables an interactive prompt before each command read.
func (i *Interpreter) SetPrompt(enabled bool) { i.prompt = enabled }

// Run reads and executes commands until an exit command, end of input or
// context cancellation. End of input is an implicit exit.
func (i *Interpreter) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(i.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if i.prompt {
			fmt.Fprint(i.out, "pipemux> ")
		}
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				i.logger.Info("Command input closed, exiting interpreter")
				return
			}
			if i.execute(line) {
				return
			}
		}
	}
}

// execute runs one command line. Returns true when the loop should end.
func (i *Interpreter) execute(line string) (done bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, args := fields[0], fields[1:]

	var (
		result string
		err    error
	)
	switch cmd {
	case "exit":
		fmt.Fprintln(i.out, "ok: exit")
		i.logger.Info("Exit command received")
		return true
	case "help":
		result = helpLine
	case "set-property":
		result, err = i.setProperty(args)
	case "get-latency":
		result, err = i.getLatency(args)
	case "set-latency":
		result, err = i.setLatency(args)
	case "push-latency-event":
		result, err = i.pushLatencyEvent(args)
	case "list-pipelines":
		result, err = i.listPipelines(args)
	default:
		err = pipelines.NewError(pipelines.ErrCodeUnknownCommand,
			fmt.Sprintf("unrecognized command %q", cmd), nil)
	}

	if err != nil {
		i.logger.Warn("Command failed", "command", cmd, "error", err)
		fmt.Fprintf(i.out, "error: %s: %s\n", pipelines.CodeOf(err), pipelines.MessageOf(err))
		return false
	}
	fmt.Fprintln(i.out, result)
	return false
}

const helpLine = "ok: commands: " +
	"set-property --pipeline NAME --element NAME --property NAME --value VALUE | " +
	"get-latency --pipeline NAME [--element NAME] | " +
	"set-latency --pipeline NAME --latency-ms N | " +
	"push-latency-event --pipeline NAME | " +
	"list-pipelines | exit"

// newFlagSet builds a quiet flag set for one command invocation.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse runs the flag set and normalizes parse failures and leftover
// positional arguments into UNKNOWN_COMMAND.
func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return pipelines.NewError(pipelines.ErrCodeUnknownCommand,
			fmt.Sprintf("%s: %v", fs.Name(), err), nil)
	}
	if fs.NArg() > 0 {
		return pipelines.NewError(pipelines.ErrCodeUnknownCommand,
			fmt.Sprintf("%s: unexpected argument %q", fs.Name(), fs.Arg(0)), nil)
	}
	return nil
}

func requireFlag(command, flag, value string) error {
	if value == "" {
		return pipelines.NewError(pipelines.ErrCodeUnknownCommand,
			fmt.Sprintf("%s: --%s is required", command, flag), nil)
	}
	return nil
}

func (i *Interpreter) setProperty(args []string) (string, error) {
	fs := newFlagSet("set-property")
	pipeline := fs.String("pipeline", "", "")
	element := fs.String("element", "", "")
	property := fs.String("property", "", "")
	value := fs.String("value", "", "")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	for flag, v := range map[string]string{
		"pipeline": *pipeline, "element": *element, "property": *property,
	} {
		if err := requireFlag("set-property", flag, v); err != nil {
			return "", err
		}
	}
	if !fs.Changed("value") {
		return "", requireFlag("set-property", "value", "")
	}

	if err := i.coord.SetProperty(*pipeline, *element, *property, *value); err != nil {
		return "", err
	}
	return fmt.Sprintf("ok: set-property pipeline=%s element=%s property=%s value=%s",
		*pipeline, *element, *property, *value), nil
}

func (i *Interpreter) getLatency(args []string) (string, error) {
	fs := newFlagSet("get-latency")
	pipeline := fs.String("pipeline", "", "")
	element := fs.String("element", "", "")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if err := requireFlag("get-latency", "pipeline", *pipeline); err != nil {
		return "", err
	}

	r, err := i.coord.GetLatency(*pipeline, *element)
	if err != nil {
		return "", err
	}
	minMs, maxMs := pipelines.RangeMillis(r)
	target := fmt.Sprintf("pipeline=%s", *pipeline)
	if *element != "" {
		target += fmt.Sprintf(" element=%s", *element)
	}
	return fmt.Sprintf("ok: latency %s live=%t min_ms=%d max_ms=%d",
		target, r.Live, minMs, maxMs), nil
}

func (i *Interpreter) setLatency(args []string) (string, error) {
	fs := newFlagSet("set-latency")
	pipeline := fs.String("pipeline", "", "")
	latencyMs := fs.Int64("latency-ms", -1, "")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if err := requireFlag("set-latency", "pipeline", *pipeline); err != nil {
		return "", err
	}
	if !fs.Changed("latency-ms") {
		return "", requireFlag("set-latency", "latency-ms", "")
	}

	if err := i.coord.SetLatency(*pipeline, time.Duration(*latencyMs)*time.Millisecond); err != nil {
		return "", err
	}
	return fmt.Sprintf("ok: set-latency pipeline=%s latency_ms=%d", *pipeline, *latencyMs), nil
}

func (i *Interpreter) pushLatencyEvent(args []string) (string, error) {
	fs := newFlagSet("push-latency-event")
	pipeline := fs.String("pipeline", "", "")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if err := requireFlag("push-latency-event", "pipeline", *pipeline); err != nil {
		return "", err
	}

	if err := i.coord.PushLatencyEvent(*pipeline); err != nil {
		return "", err
	}
	return fmt.Sprintf("ok: push-latency-event pipeline=%s", *pipeline), nil
}

func (i *Interpreter) listPipelines(args []string) (string, error) {
	fs := newFlagSet("list-pipelines")
	if err := parse(fs, args); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("ok: pipelines")
	for _, h := range i.registry.All() {
		fmt.Fprintf(&b, " %s=%s", h.Name, h.State())
	}
	return b.String(), nil
}
