package objective

import (
	"sync/atomic"

	"github.com/cwbudde/rotosolve/internal/opt"
)

// Counter wraps an objective and counts how often it is evaluated.
// Eval is safe for concurrent use.
type Counter struct {
	fn    opt.Objective
	calls atomic.Int64
}

// NewCounter wraps fn
func NewCounter(fn opt.Objective) *Counter {
	return &Counter{fn: fn}
}

// Eval evaluates the wrapped objective. Errors are returned unchanged.
func (c *Counter) Eval(x []float64) (float64, error) {
	c.calls.Add(1)
	return c.fn(x)
}

// Calls returns the number of evaluations so far
func (c *Counter) Calls() int64 {
	return c.calls.Load()
}
