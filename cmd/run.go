package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cwbudde/rotosolve/internal/objective"
	"github.com/cwbudde/rotosolve/internal/server"
	"github.com/cwbudde/rotosolve/internal/store"
)

var (
	objectiveName      string
	dim                int
	seed               int64
	sweeps             int
	tolerance          float64
	patience           int
	outPath            string
	saveRun            bool
	checkpointInterval int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization locally",
	Long: `Runs Rotosolve on a benchmark objective from a seeded random start point
and prints the result. With --save the run gets a checkpoint and a sweep
trace under --data-dir so it can be resumed later.`,
	RunE: runOptimization,
}

// addJobFlags registers the flags that describe a job
func addJobFlags(fs *pflag.FlagSet) {
	fs.StringVar(&objectiveName, "objective", server.DefaultObjective, "Objective: "+strings.Join(objective.Names(), ", "))
	fs.IntVar(&dim, "dim", server.DefaultDim, "Number of parameters")
	fs.Int64Var(&seed, "seed", 42, "Random seed for the start point and objective coefficients")
	fs.IntVar(&sweeps, "sweeps", server.DefaultSweeps, "Maximum number of sweeps")
	fs.Float64Var(&tolerance, "tolerance", 1e-10, "Minimum cost decrease per sweep (0 = run all sweeps)")
	fs.IntVar(&patience, "patience", 2, "Sweeps without improvement before stopping")
}

func init() {
	addJobFlags(runCmd.Flags())
	runCmd.Flags().StringVar(&outPath, "out", "", "Write the result as JSON to this path")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "Save checkpoint and trace under --data-dir")
	runCmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", 0, "Checkpoint every N seconds while running (requires --save)")

	rootCmd.AddCommand(runCmd)
}

// jobConfigFromFlags collects the job flags into a validated configuration
func jobConfigFromFlags() (store.JobConfig, error) {
	cfg := store.JobConfig{
		Objective:          objectiveName,
		Dim:                dim,
		Seed:               seed,
		Sweeps:             sweeps,
		Tolerance:          tolerance,
		Patience:           patience,
		CheckpointInterval: checkpointInterval,
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid job configuration: %w", err)
	}
	return cfg, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := jobConfigFromFlags()
	if err != nil {
		return err
	}

	var checkpointStore store.Store
	if saveRun {
		fsStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		checkpointStore = fsStore
	}

	slog.Info("Starting optimization", "objective", cfg.Objective, "dim", cfg.Dim, "sweeps", cfg.Sweeps)

	start := time.Now()
	job, err := server.RunJob(commandContext(cmd), checkpointStore, cfg, "", nil)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	printJobResult(os.Stdout, job, elapsed)

	if outPath != "" {
		if err := writeResult(outPath, job, elapsed); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", outPath)
	}
	return nil
}

// runResult is the JSON written by --out
type runResult struct {
	*server.Job
	Elapsed float64 `json:"elapsed"` // seconds
}

func writeResult(path string, job *server.Job, elapsed time.Duration) error {
	data, err := json.MarshalIndent(runResult{Job: job, Elapsed: elapsed.Seconds()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// printJobResult prints a human readable summary of a finished job
func printJobResult(w io.Writer, job *server.Job, elapsed time.Duration) {
	fmt.Fprintf(w, "Job %s (%s, dim %d)\n", job.ID, job.Config.Objective, job.Config.Dim)
	if job.ResumedFrom != "" {
		fmt.Fprintf(w, "  Resumed from: %s\n", job.ResumedFrom)
	}
	fmt.Fprintf(w, "  Cost: %.9f -> %.9f\n", job.InitialCost, job.Cost)
	fmt.Fprintf(w, "  Sweeps: %d (converged: %v)\n", job.Sweeps, job.Converged)
	fmt.Fprintf(w, "  Evaluations: %d\n", job.Evaluations)
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Microsecond))

	params := make([]string, len(job.Params))
	for i, p := range job.Params {
		params[i] = fmt.Sprintf("%.6f", p)
	}
	fmt.Fprintf(w, "  Params: [%s]\n", strings.Join(params, " "))
}
