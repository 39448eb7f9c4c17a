// Package train drives repeated Rotosolve sweeps and decides when to stop.
// The optimizer itself never terminates; everything about sweep limits,
// convergence and cancellation lives here.
package train

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/rotosolve/internal/objective"
	"github.com/cwbudde/rotosolve/internal/opt"
)

var (
	// ErrNoParams is returned when a run is started without parameters
	ErrNoParams = errors.New("train: empty parameter vector")

	// ErrUnbounded is returned when neither a sweep limit nor convergence detection is set
	ErrUnbounded = errors.New("train: no sweep limit and convergence detection disabled")
)

// Config controls a training run
type Config struct {
	// MaxSweeps caps the number of sweeps (0 = unlimited, requires convergence detection)
	MaxSweeps int

	Convergence ConvergenceConfig
}

// SweepEvent is reported after every completed sweep
type SweepEvent struct {
	Sweep       int       // 1-based sweep number
	Cost        float64   // objective value at Params
	Params      []float64 // copy of the parameters after the sweep
	Evaluations int       // objective evaluations so far, including cost evaluations
	Duration    time.Duration
}

// Result holds the output of a training run
type Result struct {
	Params      []float64
	Cost        float64
	InitialCost float64
	BestCost    float64 // lowest cost seen during the run
	Sweeps      int
	Evaluations int
	Converged   bool
	History     []float64
}

// Run repeatedly applies optimizer.Step to x0 until cfg says to stop.
//
// onSweep may be nil; an error from it ends the run and is returned. The
// context is checked between sweeps only: a slow objective blocks the sweep
// it is part of. Objective errors are returned unchanged. On any error the
// returned result holds the last completed sweep.
func Run(ctx context.Context, optimizer *opt.Rotosolve, obj opt.Objective, x0 []float64, cfg Config, onSweep func(SweepEvent) error) (*Result, error) {
	if len(x0) == 0 {
		return nil, ErrNoParams
	}
	if cfg.MaxSweeps <= 0 && !cfg.Convergence.Enabled {
		return nil, ErrUnbounded
	}

	params := append([]float64(nil), x0...)
	initialCost, err := obj(params)
	if err != nil {
		return nil, err
	}

	dim := len(params)
	result := &Result{
		Params:      params,
		Cost:        initialCost,
		InitialCost: initialCost,
		Evaluations: 1,
	}

	slog.Info("Starting rotosolve", "dim", dim, "max_sweeps", cfg.MaxSweeps, "initial_cost", initialCost)

	tracker := NewConvergenceTracker(cfg.Convergence)
	tracker.Update(initialCost)

	for sweep := 1; cfg.MaxSweeps <= 0 || sweep <= cfg.MaxSweeps; sweep++ {
		if err := ctx.Err(); err != nil {
			finish(result, tracker)
			return result, err
		}

		start := time.Now()
		next, err := optimizer.Step(obj, result.Params)
		if err != nil {
			finish(result, tracker)
			return result, err
		}
		cost, err := obj(next)
		if err != nil {
			finish(result, tracker)
			return result, err
		}

		result.Params = next
		result.Cost = cost
		result.Sweeps = sweep
		result.Evaluations += 3*dim + 1

		if onSweep != nil {
			event := SweepEvent{
				Sweep:       sweep,
				Cost:        cost,
				Params:      append([]float64(nil), next...),
				Evaluations: result.Evaluations,
				Duration:    time.Since(start),
			}
			if err := onSweep(event); err != nil {
				finish(result, tracker)
				return result, err
			}
		}

		converged := tracker.Update(cost)
		slog.Debug("Sweep complete",
			"sweep", sweep,
			"cost", cost,
			"evaluations", result.Evaluations,
			"stale_sweeps", tracker.StaleCount(),
		)
		if converged {
			result.Converged = true
			break
		}
	}

	finish(result, tracker)

	slog.Info("Rotosolve complete",
		"sweeps", result.Sweeps,
		"initial_cost", initialCost,
		"final_cost", result.Cost,
		"converged", result.Converged,
		"evaluations", result.Evaluations,
	)
	return result, nil
}

// finish copies the tracker's view of the run into result
func finish(result *Result, tracker *ConvergenceTracker) {
	result.History = tracker.History()
	result.BestCost = tracker.BestCost()
}

// RunBaseline minimizes obj over [-π, π]^dim with a bounded global optimizer
func RunBaseline(obj opt.Objective, dim int, optimizer opt.Optimizer) (*Result, error) {
	if dim <= 0 {
		return nil, ErrNoParams
	}

	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -math.Pi
		upper[i] = math.Pi
	}

	counter := objective.NewCounter(obj)
	initialCost, err := counter.Eval(make([]float64, dim))
	if err != nil {
		return nil, err
	}

	slog.Info("Starting baseline optimization", "dim", dim)

	best, cost, err := optimizer.Run(counter.Eval, lower, upper, dim)
	if err != nil {
		return nil, err
	}

	evals := int(counter.Calls())
	slog.Info("Baseline optimization complete", "initial_cost", initialCost, "best_cost", cost, "evaluations", evals)

	return &Result{
		Params:      best,
		Cost:        cost,
		InitialCost: initialCost,
		BestCost:    math.Min(initialCost, cost),
		Evaluations: evals,
		History:     []float64{initialCost, cost},
	}, nil
}
