package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/pipemux/internal/engine/sim"
	"github.com/smazurov/pipemux/internal/logging"
	"github.com/smazurov/pipemux/internal/pipelines"
)

// CreateValidateCmd creates the validate subcommand. It dry-runs argument
// splitting and graph realization for every declared pipeline without
// playing anything.
func CreateValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "validate [flags] --pipeline --name NAME <graph tokens...>",
		Short:              "Validate pipeline descriptions without launching them",
		Long:               `Parses the --pipeline segments and realizes every graph against the engine, reporting the first error found. Nothing is played.`,
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			os.Exit(runValidate(args))
			return nil
		},
	}
}

func runValidate(args []string) int {
	opts, specs, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", pipelines.CodeOf(err), pipelines.MessageOf(err))
		return 1
	}

	initLogging(opts)

	registry := pipelines.NewRegistry(sim.New(), logging.GetLogger("pipelines"))
	for _, spec := range specs {
		h, regErr := registry.Register(spec)
		if regErr != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %s\n",
				pipelines.CodeOf(regErr), pipelines.MessageOf(regErr))
			return 1
		}
		fmt.Printf("ok: pipeline %s (%d elements)\n", h.Name, len(h.ElementNames()))
	}
	return 0
}
