package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/notargets/GridKernel/cmd/gridkernel/commands"
	"github.com/notargets/GridKernel/logger"
)

var rootCmd = &cobra.Command{
	Use:   "gridkernel",
	Short: "Partitioned power grid network model",
	Long: `gridkernel distributes a power grid case over in-process ranks and
assembles the network matrices the solvers work on.

Examples:
  gridkernel ybus --case examples/cases/loop.yaml --ranks 2
  gridkernel screen --config examples/screen.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "run configuration file (YAML)")
	rootCmd.PersistentFlags().String("case", "", "case file, overrides the configuration")
	rootCmd.PersistentFlags().Int("ranks", 0, "number of ranks, overrides the configuration")

	rootCmd.AddCommand(commands.YBusCmd)
	rootCmd.AddCommand(commands.ScreenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
