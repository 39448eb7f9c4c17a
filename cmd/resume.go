package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/rotosolve/internal/server"
	"github.com/cwbudde/rotosolve/internal/store"
)

var (
	resumeSweeps    int
	resumeTolerance float64
	resumePatience  int
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a saved job from its checkpoint",
	Long: `Loads the checkpoint of a job from --data-dir and continues the run
locally under the same job ID. The sweep count carries over, so --sweeps
is the new total limit. The trace is appended and the checkpoint is
overwritten when the run ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeSweeps, "sweeps", 0, "New total sweep limit (0 = keep the saved limit)")
	resumeCmd.Flags().Float64Var(&resumeTolerance, "tolerance", -1, "New convergence tolerance (-1 = keep the saved value)")
	resumeCmd.Flags().IntVar(&resumePatience, "patience", 0, "New patience (0 = keep the saved value)")
	resumeCmd.Flags().IntVar(&checkpointInterval, "checkpoint-interval", 0, "Checkpoint every N seconds while running")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpointStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	cfg := resumeConfig(checkpoint.Config)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid job configuration: %w", err)
	}

	fmt.Printf("Resuming %s at sweep %d (cost %.9f)\n", jobID, checkpoint.Sweep, checkpoint.Cost)

	start := time.Now()
	job, err := server.RunJob(commandContext(cmd), checkpointStore, cfg, jobID, checkpoint)
	if err != nil {
		return fmt.Errorf("resumed run failed: %w", err)
	}

	printJobResult(os.Stdout, job, time.Since(start))
	return nil
}

// resumeConfig applies the limits given on the command line to a saved configuration
func resumeConfig(saved store.JobConfig) store.JobConfig {
	cfg := saved
	if resumeSweeps > 0 {
		cfg.Sweeps = resumeSweeps
	}
	if resumeTolerance >= 0 {
		cfg.Tolerance = resumeTolerance
	}
	if resumePatience > 0 {
		cfg.Patience = resumePatience
	}
	cfg.CheckpointInterval = checkpointInterval
	return cfg
}
