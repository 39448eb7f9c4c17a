package store

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// JobConfig holds configuration for a training job (checkpoint copy).
// This avoids import cycles with server package.
type JobConfig struct {
	Objective          string  `json:"objective"` // registered objective name
	Dim                int     `json:"dim"`
	Seed               int64   `json:"seed"`                         // objective coefficients and start point
	Sweeps             int     `json:"sweeps"`                       // sweep limit
	Tolerance          float64 `json:"tolerance,omitempty"`          // minimum cost decrease per sweep (0 = no early stop)
	Patience           int     `json:"patience,omitempty"`           // stale sweeps before stopping
	CheckpointInterval int     `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Validate reports every invalid field at once
func (c JobConfig) Validate() error {
	var result *multierror.Error
	if c.Objective == "" {
		result = multierror.Append(result, &ValidationError{Field: "Objective", Reason: "cannot be empty"})
	}
	if c.Dim <= 0 {
		result = multierror.Append(result, &ValidationError{Field: "Dim", Reason: "must be positive"})
	}
	if c.Sweeps <= 0 {
		result = multierror.Append(result, &ValidationError{Field: "Sweeps", Reason: "must be positive"})
	}
	if c.Tolerance < 0 {
		result = multierror.Append(result, &ValidationError{Field: "Tolerance", Reason: "cannot be negative"})
	}
	if c.Patience < 0 {
		result = multierror.Append(result, &ValidationError{Field: "Patience", Reason: "cannot be negative"})
	}
	if c.CheckpointInterval < 0 {
		result = multierror.Append(result, &ValidationError{Field: "CheckpointInterval", Reason: "cannot be negative"})
	}
	return result.ErrorOrNil()
}

// Checkpoint represents a saved training state that can be resumed later.
//
// Rotosolve keeps no internal state between sweeps, so the parameter vector
// and the sweep count are all that is needed to continue a run exactly where
// it stopped.
type Checkpoint struct {
	// JobID is the unique identifier for this training job
	JobID string `json:"jobId"`

	// Params is the parameter vector after the last completed sweep
	Params []float64 `json:"params"`

	// Cost is the objective value at Params
	Cost float64 `json:"cost"`

	// InitialCost is the objective value at the start point
	InitialCost float64 `json:"initialCost"`

	// Sweep is the number of completed sweeps
	Sweep int `json:"sweep"`

	// Evaluations is the number of objective evaluations spent on all sweeps,
	// so a resumed run keeps counting where the saved one stopped
	Evaluations int `json:"evaluations"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the parameter data
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	Cost      float64   `json:"cost"`
	Sweep     int       `json:"sweep"`
	Timestamp time.Time `json:"timestamp"`
	Objective string    `json:"objective"`
	Dim       int       `json:"dim"`
}

// NewCheckpoint creates a checkpoint from job state
func NewCheckpoint(jobID string, params []float64, cost, initialCost float64, sweep int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		Params:      append([]float64(nil), params...),
		Cost:        cost,
		InitialCost: initialCost,
		Sweep:       sweep,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		Cost:      c.Cost,
		Sweep:     c.Sweep,
		Timestamp: c.Timestamp,
		Objective: c.Config.Objective,
		Dim:       c.Config.Dim,
	}
}

// Validate checks if the checkpoint has valid data.
// Objective values may be negative, so costs are not range checked.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Params) == 0 {
		return &ValidationError{Field: "Params", Reason: "cannot be empty"}
	}
	if c.Sweep < 0 {
		return &ValidationError{Field: "Sweep", Reason: "cannot be negative"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if len(c.Params) != c.Config.Dim {
		return &ValidationError{
			Field:  "Params",
			Reason: fmt.Sprintf("length mismatch: expected %d params, got %d", c.Config.Dim, len(c.Params)),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// The sweep limit and stopping rule may change between runs.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Objective != config.Objective {
		return &CompatibilityError{Field: "Objective", Expected: c.Config.Objective, Actual: config.Objective}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	if c.Config.Seed != config.Seed {
		return &CompatibilityError{
			Field:    "Seed",
			Expected: fmt.Sprintf("%d", c.Config.Seed),
			Actual:   fmt.Sprintf("%d", config.Seed),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
