package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/rotosolve/internal/objective"
	"github.com/cwbudde/rotosolve/internal/opt"
	"github.com/cwbudde/rotosolve/internal/store"
	"github.com/cwbudde/rotosolve/internal/train"
)

// progressInterval throttles per-sweep progress events
const progressInterval = 250 * time.Millisecond

// TrainConfig translates the job's limits into a training configuration.
// done is the number of sweeps already completed by a resumed job.
func TrainConfig(cfg JobConfig, done int) train.Config {
	tc := train.Config{
		MaxSweeps:   cfg.Sweeps - done,
		Convergence: train.DisabledConvergenceConfig(),
	}
	if cfg.Tolerance > 0 {
		patience := cfg.Patience
		if patience <= 0 {
			patience = train.DefaultConvergenceConfig().Patience
		}
		tc.Convergence = train.ConvergenceConfig{
			Enabled:   true,
			Patience:  patience,
			Threshold: cfg.Tolerance,
		}
	}
	return tc
}

// RunJob runs a single job in the calling goroutine without an HTTP server.
// An empty jobID gets a fresh UUID. The returned job reflects the final state
// even when an error is returned.
func RunJob(ctx context.Context, checkpointStore store.Store, config JobConfig, jobID string, resume *store.Checkpoint) (*Job, error) {
	jm := NewJobManager()
	job := jm.createJob(jobID, config)

	err := runJob(ctx, jm, checkpointStore, job.ID, resume)
	final, _ := jm.GetJob(job.ID)
	return final, err
}

// runJob executes a training job in the background.
// If resume is not nil the job continues from that checkpoint. If
// checkpointStore is not nil the sweep trace is written, checkpoints are saved
// every CheckpointInterval seconds and once more when the job ends.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, resume *store.Checkpoint) error {
	defer jm.releaseCancel(jobID)

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	cfg := job.Config

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "objective", cfg.Objective, "dim", cfg.Dim, "sweeps", cfg.Sweeps)

	obj, err := objective.New(cfg.Objective, cfg.Dim, cfg.Seed)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	x0 := objective.RandomPoint(cfg.Dim, cfg.Seed)
	done, spent := 0, 0
	if resume != nil {
		if err := resume.IsCompatible(cfg); err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		x0 = resume.Params
		done = resume.Sweep
		spent = resume.Evaluations
		jm.UpdateJob(jobID, func(j *Job) {
			j.ResumedFrom = resume.JobID
			j.Params = append([]float64(nil), resume.Params...)
			j.Cost = resume.Cost
			j.InitialCost = resume.InitialCost
			j.Sweeps = resume.Sweep
			j.Evaluations = resume.Evaluations
		})
		slog.Info("Resuming from checkpoint", "job_id", jobID, "from", resume.JobID, "sweep", done, "evaluations", spent)
	}

	var trace *store.TraceWriter
	if checkpointStore != nil {
		trace, err = store.NewTraceWriter(checkpointStore.JobDir(jobID), resume != nil && resume.JobID == jobID)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
			}
		}()
	}

	var result *train.Result
	if done >= cfg.Sweeps {
		slog.Info("Checkpoint already reached the sweep limit", "job_id", jobID, "sweep", done)
	} else {
		checkpointDone := make(chan struct{})
		var wg sync.WaitGroup
		if checkpointStore != nil && cfg.CheckpointInterval > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				monitorCheckpoints(ctx, jm, checkpointStore, jobID, time.Duration(cfg.CheckpointInterval)*time.Second, checkpointDone)
			}()
		}

		var lastProgress time.Time
		onSweep := func(e train.SweepEvent) error {
			sweepsTotal.Inc()
			evaluationsTotal.Add(float64(3*cfg.Dim + 1))
			sweepDuration.Observe(e.Duration.Seconds())

			// counts carry on from the checkpoint
			sweeps := done + e.Sweep
			evaluations := spent + e.Evaluations
			jm.UpdateJob(jobID, func(j *Job) {
				j.Params = e.Params
				j.Cost = e.Cost
				j.Sweeps = sweeps
				j.Evaluations = evaluations
			})

			if trace != nil {
				if err := trace.Write(store.TraceEntry{
					Sweep:       sweeps,
					Cost:        e.Cost,
					Evaluations: evaluations,
					Timestamp:   time.Now(),
				}); err != nil {
					return err
				}
			}

			if time.Since(lastProgress) >= progressInterval {
				lastProgress = time.Now()
				jm.broadcaster.Broadcast(ProgressEvent{
					JobID:       jobID,
					State:       StateRunning,
					Sweeps:      sweeps,
					Cost:        e.Cost,
					Evaluations: evaluations,
					Timestamp:   lastProgress,
				})
			}
			return nil
		}

		var runErr error
		result, runErr = train.Run(ctx, opt.NewRotosolve(), obj, x0, TrainConfig(cfg, done), onSweep)
		close(checkpointDone)
		wg.Wait()

		if result != nil && resume == nil {
			jm.UpdateJob(jobID, func(j *Job) { j.InitialCost = result.InitialCost })
		}

		if runErr != nil {
			saveCheckpoint(jm, checkpointStore, jobID)
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				markJobCancelled(jm, jobID)
			} else {
				markJobFailed(jm, jobID, runErr)
			}
			return runErr
		}
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		if result != nil {
			j.Converged = result.Converged
		}
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}
	jobsFinished.WithLabelValues(string(StateCompleted)).Inc()

	if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
		slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
	}

	final, _ := jm.GetJob(jobID)
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", endTime.Sub(final.StartTime),
		"sweeps", final.Sweeps,
		"initial_cost", final.InitialCost,
		"cost", final.Cost,
		"converged", final.Converged,
	)

	broadcastState(jm, jobID)
	return nil
}

// broadcastState sends the job's current state to stream subscribers
func broadcastState(jm *JobManager, jobID string) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       job.State,
		Sweeps:      job.Sweeps,
		Cost:        job.Cost,
		Evaluations: job.Evaluations,
		Timestamp:   time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jobsFinished.WithLabelValues(string(StateFailed)).Inc()
	slog.Error("Job failed", "job_id", jobID, "error", err)
	broadcastState(jm, jobID)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jobsFinished.WithLabelValues(string(StateCancelled)).Inc()
	slog.Info("Job cancelled", "job_id", jobID)
	broadcastState(jm, jobID)
}

// monitorCheckpoints periodically saves checkpoints while a job runs
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpointStore store.Store, jobID string, interval time.Duration, done chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpointStore, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job.
// It is a no-op without a store or before the first sweep.
func saveCheckpoint(jm *JobManager, checkpointStore store.Store, jobID string) error {
	if checkpointStore == nil {
		return nil
	}

	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if len(job.Params) == 0 {
		slog.Debug("Skipping checkpoint, no sweep completed yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(jobID, job.Params, job.Cost, job.InitialCost, job.Sweeps, job.Config)
	checkpoint.Evaluations = job.Evaluations
	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved", "job_id", jobID, "sweep", job.Sweeps, "cost", job.Cost)
	return nil
}
