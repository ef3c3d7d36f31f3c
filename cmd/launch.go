// Package cmd holds the command-line entry points for pipemux.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/smazurov/pipemux/internal/api"
	"github.com/smazurov/pipemux/internal/config"
	"github.com/smazurov/pipemux/internal/control"
	"github.com/smazurov/pipemux/internal/engine/sim"
	"github.com/smazurov/pipemux/internal/events"
	"github.com/smazurov/pipemux/internal/latency"
	"github.com/smazurov/pipemux/internal/logging"
	"github.com/smazurov/pipemux/internal/pipelines"
)

// Options for the launcher - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file"`

	// API settings
	APIAddr string `help:"HTTP API listen address, empty disables the API" toml:"api.addr" env:"API_ADDR"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Command input
	Script string `help:"Read commands from file instead of stdin" toml:"control.script" env:"CONTROL_SCRIPT"`

	// Logging settings
	LogLevel  string `help:"Global logging level (debug, info, warn, error)" toml:"logging.level" env:"LOGGING_LEVEL"`
	LogFormat string `help:"Logging format (text, json)" toml:"logging.format" env:"LOGGING_FORMAT"`
}

// appFlagSet declares the application flags accepted before the first
// --pipeline marker.
func appFlagSet(opts *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("pipemux", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&opts.Config, "config", "c", "config.toml", "Path to configuration file")
	fs.StringVar(&opts.APIAddr, "api-addr", "", "HTTP API listen address, empty disables the API")
	fs.StringVar(&opts.AuthUsername, "api-user", "", "Basic auth username")
	fs.StringVar(&opts.AuthPassword, "api-pass", "", "Basic auth password")
	fs.StringVar(&opts.Script, "script", "", "Read commands from file instead of stdin")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Global logging level (debug, info, warn, error)")
	fs.StringVar(&opts.LogFormat, "log-format", "text", "Logging format (text, json)")
	return fs
}

// parseOptions splits the raw argument stream, parses application flags
// and applies config file and environment precedence.
func parseOptions(args []string) (*Options, []pipelines.Spec, error) {
	appArgs, specs, err := pipelines.SplitArgs(args)
	if err != nil {
		return nil, nil, err
	}

	opts := &Options{}
	fs := appFlagSet(opts)
	if err := fs.Parse(appArgs); err != nil {
		return nil, nil, pipelines.NewError(pipelines.ErrCodeMalformedSpec,
			fmt.Sprintf("application flags: %v", err), nil)
	}
	if fs.NArg() > 0 {
		return nil, nil, pipelines.NewError(pipelines.ErrCodeMalformedSpec,
			fmt.Sprintf("unexpected argument %q before first --pipeline", fs.Arg(0)), nil)
	}

	if err := config.LoadConfig(opts, fs); err != nil {
		return nil, nil, pipelines.NewError(pipelines.ErrCodeMalformedSpec,
			fmt.Sprintf("configuration: %v", err), nil)
	}

	return opts, specs, nil
}

// initLogging wires the logging system from CLI options and the config
// file's per-module level overrides.
func initLogging(opts *Options) {
	loggingConfig := config.LoadLoggingConfig(opts.Config)
	loggingConfig.Level = opts.LogLevel
	loggingConfig.Format = opts.LogFormat
	logging.Initialize(loggingConfig)
}

// RunLaunch parses the argument stream, launches every declared pipeline
// and supervises the session until exit. Returns the process exit code.
func RunLaunch(args []string) int {
	opts, specs, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", pipelines.CodeOf(err), pipelines.MessageOf(err))
		return 1
	}

	initLogging(opts)
	logger := logging.GetLogger("main")

	eventBus := events.New()
	eng := sim.New()
	registry := pipelines.NewRegistry(eng, logging.GetLogger("pipelines"))

	// Construct every pipeline before playing any. A single construction
	// failure aborts the whole session.
	for _, spec := range specs {
		if _, regErr := registry.Register(spec); regErr != nil {
			logger.Error("Pipeline construction failed",
				"pipeline", spec.Name, "error", regErr)
			fmt.Fprintf(os.Stderr, "error: %s: %s\n",
				pipelines.CodeOf(regErr), pipelines.MessageOf(regErr))
			return 1
		}
	}

	supervisor := pipelines.NewSupervisor(registry, eventBus, logging.GetLogger("pipelines"))
	coordinator := latency.NewCoordinator(registry, eventBus, logging.GetLogger("latency"))

	// Forward log entries to SSE subscribers.
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(events.LogEntryEvent{
			Timestamp:  entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	})

	// Live log level reload from the config file.
	if _, statErr := os.Stat(opts.Config); statErr == nil {
		watcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(cfg logging.Config) {
			logger.Info("Reloading log levels from config", "path", opts.Config)
			logging.UpdateLevels(cfg)
		})
		if watchErr := watcher.Start(); watchErr != nil {
			logger.Warn("Config watcher failed to start", "error", watchErr)
		} else {
			defer func() {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Config watcher stop failed", "error", stopErr)
				}
			}()
		}
	}

	// Optional HTTP control API.
	var server *api.Server
	if opts.APIAddr != "" {
		server = api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Registry:          registry,
			Coordinator:       coordinator,
			EventBus:          eventBus,
			PrometheusHandler: promhttp.Handler(),
		})
		go func() {
			if srvErr := server.Start(opts.APIAddr); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
				logger.Error("API server failed", "error", srvErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if startErr := supervisor.StartAll(); startErr != nil {
		logger.Error("Session start failed", "error", startErr)
		fmt.Fprintf(os.Stderr, "error: %s: %s\n",
			pipelines.CodeOf(startErr), pipelines.MessageOf(startErr))
		if server != nil {
			if stopErr := server.Stop(); stopErr != nil {
				logger.Warn("API server stop failed", "error", stopErr)
			}
		}
		return 1
	}

	// Command input: a script file when given, stdin otherwise.
	input := io.Reader(os.Stdin)
	if opts.Script != "" {
		f, openErr := os.Open(opts.Script)
		if openErr != nil {
			logger.Error("Cannot open command script", "path", opts.Script, "error", openErr)
			supervisor.StopAll()
			return 1
		}
		defer f.Close()
		input = f
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interpreter := control.NewInterpreter(registry, coordinator,
		logging.GetLogger("control"), input, os.Stdout)
	if opts.Script == "" && isTerminal(os.Stdin) {
		interpreter.SetPrompt(true)
	}
	go func() {
		interpreter.Run(ctx)
		cancel()
	}()

	termination := supervisor.Monitor(ctx)
	supervisor.StopAll()

	if server != nil {
		if stopErr := server.Stop(); stopErr != nil {
			logger.Warn("API server stop failed", "error", stopErr)
		}
	}

	if termination != nil && termination.Err != nil {
		logger.Error("Session ended on pipeline error",
			"pipeline", termination.Pipeline, "error", termination.Err)
		return 1
	}
	logger.Info("Session ended")
	return 0
}

// isTerminal reports whether f is connected to an interactive terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
