package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/qppath/qppath/internal/database"
	"github.com/qppath/qppath/internal/logging"
	"github.com/qppath/qppath/internal/planner"
	"github.com/qppath/qppath/internal/scenario"
	gormstorage "github.com/qppath/qppath/internal/storage/gorm"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run planning cycles on a scenario and print the last path",
	Long: `Runs --cycles planning cycles against the scenario and prints the path of
the last cycle in reference-line and world coordinates. Every cycle is
recorded to the configured storage backend.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

var corridorCmd = &cobra.Command{
	Use:   "corridor",
	Short: "Print the lateral corridor for a scenario without solving",
	Args:  cobra.NoArgs,
	RunE:  runCorridor,
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Print planning cycles recorded in a SQLite dump",
	Args:  cobra.NoArgs,
	RunE:  runCycles,
}

func checkFlags() error {
	if scenarioPath == "" {
		return errors.New("required flag \"scenario\" not set")
	}
	return checkOutput()
}

func checkOutput() error {
	if outputFormat != outputJSON && outputFormat != outputTable {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	return nil
}

func checkCycles() error {
	if cycleCount < 1 {
		return fmt.Errorf("cycles must be at least 1, got %d", cycleCount)
	}
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	if err := checkFlags(); err != nil {
		return err
	}
	if err := checkCycles(); err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, configDir, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	a.Logger.Info("Scenario loaded",
		"name", sc.Name,
		"referenceLength", sc.Reference.Length(),
		"obstacles", sc.Obstacles.Len(),
	)

	var path *planner.Path
	for n := 1; n <= cycleCount; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cycleCtx := logging.ContextWith(ctx,
			slog.String("scenario", sc.Name),
			slog.Int("run", n),
		)
		path, err = a.Optimizer.Process(cycleCtx, sc.Vehicle, sc.Reference, sc.Obstacles)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", n, err)
		}
	}

	return writePath(cmd.OutOrStdout(), outputFormat, path)
}

func runCorridor(cmd *cobra.Command, _ []string) error {
	if err := checkFlags(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), configDir, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	c, err := a.Optimizer.Corridor(sc.Vehicle, sc.Reference, sc.Obstacles)
	if err != nil {
		return err
	}
	if crossed := c.CrossedStations(); len(crossed) > 0 {
		a.Logger.Warn("Corridor has crossed intervals", "stations", crossed)
	}
	return writeCorridor(cmd.OutOrStdout(), outputFormat, c)
}

func runCycles(cmd *cobra.Command, _ []string) error {
	if err := checkOutput(); err != nil {
		return err
	}
	if _, err := os.Stat(cyclesDB); err != nil {
		return fmt.Errorf("cannot open cycle database: %w", err)
	}

	log := logging.NewZerolog("warn", cmd.ErrOrStderr(), nil)
	db := database.NewManager(log)
	if err := db.ConnectSqlite(cyclesDB, ""); err != nil {
		return err
	}
	backend := gormstorage.New(db)
	defer backend.Close()

	records, err := backend.Cycles(cyclesLimit)
	if err != nil {
		return err
	}
	return writeCycles(cmd.OutOrStdout(), outputFormat, records)
}
