package train

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a run of sweeps counts as converged
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of consecutive sweeps without significant
	// improvement before stopping
	Patience int

	// Threshold is the minimum decrease of the objective value that counts
	// as progress. Objective values may be negative, so the decrease is
	// absolute rather than relative.
	Threshold float64
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 1e-8,
	}
}

// DisabledConvergenceConfig returns a config with convergence detection disabled
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker tracks the cost after every sweep and detects when the
// optimization has stalled
type ConvergenceTracker struct {
	config          ConvergenceConfig
	costHistory     []float64
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Number of sweeps without significant improvement
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		costHistory:     []float64{},
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a new cost value and returns true if convergence is detected.
// History and best cost are tracked even when detection is disabled.
func (c *ConvergenceTracker) Update(cost float64) bool {
	c.costHistory = append(c.costHistory, cost)
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if !c.config.Enabled {
		return false
	}

	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	improvement := c.lastSignificant - cost
	if improvement >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		slog.Debug("Cost improvement detected",
			"cost", cost,
			"improvement", improvement,
		)
		return false
	}

	c.staleCount++
	slog.Debug("No significant cost improvement",
		"cost", cost,
		"last_significant", c.lastSignificant,
		"improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected - stopping early",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// History returns the full cost history
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.costHistory...)
}

// StaleCount returns the current number of sweeps without improvement
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}
