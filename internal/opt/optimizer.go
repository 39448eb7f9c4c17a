package opt

// Objective is a scalar cost over a parameter vector.
// An error returned by the objective is passed back to the caller unchanged.
type Objective func(x []float64) (float64, error)

// Func adapts an infallible function to an Objective
func Func(f func([]float64) float64) Objective {
	return func(x []float64) (float64, error) {
		return f(x), nil
	}
}

// Optimizer defines a bounded, global optimization algorithm interface
type Optimizer interface {
	// Run executes the optimization
	// obj: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters, best cost and the first objective error, if any
	Run(obj Objective, lower, upper []float64, dim int) ([]float64, float64, error)
}
