package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/rotosolve/internal/objective"
	"github.com/cwbudde/rotosolve/internal/opt"
	"github.com/cwbudde/rotosolve/internal/server"
	"github.com/cwbudde/rotosolve/internal/store"
	"github.com/cwbudde/rotosolve/internal/train"
)

var (
	mayflyIters int
	mayflyPop   int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare Rotosolve with a mayfly baseline",
	Long: `Minimizes the same objective with Rotosolve and with the mayfly
population optimizer, concurrently, and prints cost and evaluation counts
side by side.`,
	RunE: runCompare,
}

func init() {
	addJobFlags(compareCmd.Flags())
	compareCmd.Flags().IntVar(&mayflyIters, "iters", 200, "Mayfly iterations")
	compareCmd.Flags().IntVar(&mayflyPop, "pop", 30, "Mayfly population size (at least 20)")

	rootCmd.AddCommand(compareCmd)
}

// comparison is one row of the compare table
type comparison struct {
	Method  string
	Result  *train.Result
	Elapsed time.Duration
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := jobConfigFromFlags()
	if err != nil {
		return err
	}
	rows, err := compareOptimizers(cmd, cfg, mayflyIters, mayflyPop)
	if err != nil {
		return err
	}
	printComparison(os.Stdout, cfg, rows)
	return nil
}

// compareOptimizers runs both optimizers on separate instances of the objective
func compareOptimizers(cmd *cobra.Command, cfg store.JobConfig, iters, pop int) ([]comparison, error) {
	rotoObj, err := objective.New(cfg.Objective, cfg.Dim, cfg.Seed)
	if err != nil {
		return nil, err
	}
	baseObj, err := objective.New(cfg.Objective, cfg.Dim, cfg.Seed)
	if err != nil {
		return nil, err
	}

	rows := make([]comparison, 2)
	g, ctx := errgroup.WithContext(commandContext(cmd))

	g.Go(func() error {
		start := time.Now()
		x0 := objective.RandomPoint(cfg.Dim, cfg.Seed)
		result, err := train.Run(ctx, opt.NewRotosolve(), rotoObj, x0, server.TrainConfig(cfg, 0), nil)
		if err != nil {
			return fmt.Errorf("rotosolve: %w", err)
		}
		rows[0] = comparison{Method: "rotosolve", Result: result, Elapsed: time.Since(start)}
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		result, err := train.RunBaseline(baseObj, cfg.Dim, opt.NewMayfly(iters, pop, cfg.Seed))
		if err != nil {
			return fmt.Errorf("mayfly: %w", err)
		}
		rows[1] = comparison{Method: "mayfly", Result: result, Elapsed: time.Since(start)}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("Comparison complete",
		"rotosolve_cost", rows[0].Result.Cost,
		"mayfly_cost", rows[1].Result.Cost,
	)
	return rows, nil
}

func printComparison(out io.Writer, cfg store.JobConfig, rows []comparison) {
	fmt.Fprintf(out, "Objective %s, dim %d, seed %d\n\n", cfg.Objective, cfg.Dim, cfg.Seed)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tCOST\tBEST\tEVALUATIONS\tSWEEPS\tELAPSED")
	fmt.Fprintln(w, "------\t----\t----\t-----------\t------\t-------")
	for _, row := range rows {
		sweepCol := "-"
		if row.Method == "rotosolve" {
			sweepCol = fmt.Sprintf("%d", row.Result.Sweeps)
		}
		fmt.Fprintf(w, "%s\t%.9f\t%.9f\t%d\t%s\t%s\n",
			row.Method,
			row.Result.Cost,
			row.Result.BestCost,
			row.Result.Evaluations,
			sweepCol,
			row.Elapsed.Round(time.Microsecond),
		)
	}
	w.Flush()
}
