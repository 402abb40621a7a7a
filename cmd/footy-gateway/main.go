// Command footy-gateway serves the cache-first football API and runs its
// maintenance tasks from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "footy-gateway: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "footy-gateway",
		Short:         "Cache-first football data gateway with match predictions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: ./footy-gateway.yaml)")

	rootCommand.AddCommand(
		newServeCommand(),
		newWarmCommand(),
		newPredictCommand(),
		newUsageCommand(),
		newFlushCommand(),
	)
	return rootCommand
}
