// Command qppath runs lateral path planning cycles against a scenario file
// and prints the resulting path or corridor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qppath/qppath/internal/config"
	"github.com/spf13/cobra"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "qppath"
)

// command flags
var (
	configDir    string
	scenarioPath string
	cycleCount   int
	outputFormat string

	cyclesDB    string
	cyclesLimit int
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Lateral corridor construction and QP path planning",
	Long: `qppath builds the lateral driving corridor around the ego vehicle and
solves a piecewise-jerk path through it.

Examples:
  qppath plan --scenario road.json
  qppath plan --scenario road.json --cycles 50 --output table
  qppath corridor --scenario road.json --config-dir ./conf
  qppath cycles --db cycles.db --output table`,
	Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", ".", "directory containing "+config.FileName)
	flags.StringVarP(&scenarioPath, "scenario", "s", "", "scenario JSON file")
	flags.IntVarP(&cycleCount, "cycles", "n", 1, "number of planning cycles to run")
	flags.StringVarP(&outputFormat, "output", "o", outputJSON, "output format: json or table")

	cyclesCmd.Flags().StringVar(&cyclesDB, "db", "", "SQLite file written by the sqlite storage backend")
	cyclesCmd.Flags().IntVar(&cyclesLimit, "limit", 0, "maximum number of cycles to print, 0 for all")
	_ = cyclesCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(planCmd, corridorCmd, cyclesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
