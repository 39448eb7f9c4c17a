package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
// It serves as a population-based baseline for Rotosolve.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// Mayfly cannot be interrupted, so after the first objective error every
// further evaluation reports +Inf and the error is returned once the run ends.
func (m *MayflyAdapter) Run(obj Objective, lower, upper []float64, dim int) ([]float64, float64, error) {
	if dim <= 0 {
		return nil, 0, fmt.Errorf("mayfly: dimension must be positive, got %d", dim)
	}
	if len(lower) == 0 || len(upper) == 0 {
		return nil, 0, fmt.Errorf("mayfly: bounds are required")
	}

	var evalErr error
	eval := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		cost, err := obj(x)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return cost
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize

	// External library uses scalar bounds; the first dimension stands for all
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]

	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if evalErr != nil {
		return nil, 0, evalErr
	}
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}

	best := make([]float64, len(result.GlobalBest.Position))
	copy(best, result.GlobalBest.Position)
	return best, result.GlobalBest.Cost, nil
}
