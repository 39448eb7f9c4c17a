package opt

import "math"

// Rotosolve is a gradient-free coordinate optimizer for objectives that are
// a single sinusoid of period 2π along every coordinate.
//
// Each coordinate is replaced by its closed-form minimizer
//
//	θ*_d = -π/2 - atan2(2·H(0) - H(π/2) - H(-π/2), H(π/2) - H(-π/2))
//
// where H(θ) is the objective with coordinate d set to θ and all others held
// at their current values (Ostaszewski et al., arXiv:1905.09692).
//
// Rotosolve holds no state. The zero value is ready to use and safe to share
// between goroutines.
type Rotosolve struct{}

// NewRotosolve creates a Rotosolve optimizer
func NewRotosolve() *Rotosolve {
	return &Rotosolve{}
}

// Step performs one sweep over all coordinates of x, in index order, and
// returns the updated vector. Later coordinates are solved against the
// already updated earlier ones.
//
// x is not modified. The objective is called exactly 3·len(x) times. If it
// returns an error the sweep stops and that error is returned as is.
func (r *Rotosolve) Step(obj Objective, x []float64) ([]float64, error) {
	next := make([]float64, len(x))
	copy(next, x)

	for d := range next {
		if err := solveCoordinate(obj, next, d); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// StepScalar runs Step on the one-element vector {x}. The result is always a
// slice of length 1; callers that want a scalar take element 0.
func (r *Rotosolve) StepScalar(obj Objective, x float64) ([]float64, error) {
	return r.Step(obj, []float64{x})
}

// solveCoordinate replaces x[d] with its optimum in place.
func solveCoordinate(obj Objective, x []float64, d int) error {
	x[d] = 0
	h0, err := obj(x)
	if err != nil {
		return err
	}

	x[d] = math.Pi / 2
	hp, err := obj(x)
	if err != nil {
		return err
	}

	x[d] = -math.Pi / 2
	hm, err := obj(x)
	if err != nil {
		return err
	}

	a := math.Atan2(2*h0-hp-hm, hp-hm)
	x[d] = Wrap(-math.Pi/2 - a)
	return nil
}

// Wrap folds an angle at or below -π up by 2π. Angles above π are returned
// unchanged; the update in Step never produces them.
func Wrap(theta float64) float64 {
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}
