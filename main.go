package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/pipemux/cmd"
	"github.com/smazurov/pipemux/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pipemux [flags] --pipeline --name NAME <graph tokens...>",
		Short:   "Launch and supervise multiple media pipelines in one process",
		Version: version.String(),
		// Flag parsing is disabled because the argument stream is
		// segmented by --pipeline markers before flag handling.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			os.Exit(cmd.RunLaunch(args))
			return nil
		},
	}

	rootCmd.AddCommand(cmd.CreateValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
