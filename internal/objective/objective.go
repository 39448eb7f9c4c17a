// Package objective provides benchmark objectives that are a single sinusoid
// of period 2π along every coordinate, the class Rotosolve solves exactly.
package objective

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/cwbudde/rotosolve/internal/opt"
)

var (
	// ErrDimension is returned when an objective is evaluated on a vector of the wrong length.
	ErrDimension = errors.New("objective: dimension mismatch")

	// ErrUnknown is returned by New for names that are not registered.
	ErrUnknown = errors.New("objective: unknown objective")
)

func checkDim(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d parameters, want %d", ErrDimension, len(x), want)
	}
	return nil
}

// Sine returns f(x) = Σ sin(x_d) over a dim-dimensional vector.
// Its minimum is -dim at x_d = -π/2.
func Sine(dim int) opt.Objective {
	return func(x []float64) (float64, error) {
		if err := checkDim(x, dim); err != nil {
			return 0, err
		}
		var sum float64
		for _, v := range x {
			sum += math.Sin(v)
		}
		return sum, nil
	}
}

// Sinusoid is the separable objective Σ A_d·sin(x_d + φ_d) + B
type Sinusoid struct {
	Amplitude []float64
	Phase     []float64
	Offset    float64
}

// Dim returns the number of parameters
func (s *Sinusoid) Dim() int {
	return len(s.Amplitude)
}

// Eval evaluates the objective
func (s *Sinusoid) Eval(x []float64) (float64, error) {
	if err := checkDim(x, s.Dim()); err != nil {
		return 0, err
	}
	sum := s.Offset
	for d, v := range x {
		sum += s.Amplitude[d] * math.Sin(v+s.Phase[d])
	}
	return sum, nil
}

// Minimum returns the analytic minimizer in (-π, π] and the minimum value.
// Coordinates with zero amplitude are reported as 0.
func (s *Sinusoid) Minimum() ([]float64, float64) {
	x := make([]float64, s.Dim())
	value := s.Offset
	for d, a := range s.Amplitude {
		switch {
		case a > 0:
			x[d] = wrapFull(-math.Pi/2 - s.Phase[d])
		case a < 0:
			x[d] = wrapFull(math.Pi/2 - s.Phase[d])
		}
		value -= math.Abs(a)
	}
	return x, value
}

// Ring couples neighbouring coordinates on a cycle:
//
//	f(x) = J·Σ cos(x_d)·cos(x_{d+1 mod D}) + h·Σ sin(x_d)
//
// It is not separable, but fixing all other coordinates leaves a single
// sinusoid in each one. With Size 1 the coupling term becomes cos², which has
// period π, so a coordinate update is no longer exact.
type Ring struct {
	Coupling float64
	Field    float64
	Size     int
}

// Eval evaluates the objective
func (r *Ring) Eval(x []float64) (float64, error) {
	if err := checkDim(x, r.Size); err != nil {
		return 0, err
	}
	var sum float64
	for d := range x {
		next := x[(d+1)%len(x)]
		sum += r.Coupling*math.Cos(x[d])*math.Cos(next) + r.Field*math.Sin(x[d])
	}
	return sum, nil
}

// wrapFull maps any angle into (-π, π]
func wrapFull(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	return opt.Wrap(theta)
}

type factory func(dim int, rng *rand.Rand) opt.Objective

var registry = map[string]factory{
	"sine": func(dim int, _ *rand.Rand) opt.Objective {
		return Sine(dim)
	},
	"sinusoid": func(dim int, rng *rand.Rand) opt.Objective {
		return RandomSinusoid(dim, rng).Eval
	},
	"ring": func(dim int, _ *rand.Rand) opt.Objective {
		r := &Ring{Coupling: 1, Field: 0.5, Size: dim}
		return r.Eval
	},
}

// RandomSinusoid draws amplitudes in [0.5, 2) and phases in [-π, π)
func RandomSinusoid(dim int, rng *rand.Rand) *Sinusoid {
	s := &Sinusoid{
		Amplitude: make([]float64, dim),
		Phase:     make([]float64, dim),
	}
	for d := 0; d < dim; d++ {
		s.Amplitude[d] = 0.5 + 1.5*rng.Float64()
		s.Phase[d] = -math.Pi + 2*math.Pi*rng.Float64()
	}
	return s
}

// New builds a registered objective. The seed fixes any random coefficients.
func New(name string, dim int, seed int64) (opt.Objective, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknown, name, Names())
	}
	if dim <= 0 {
		return nil, fmt.Errorf("objective %s: dimension must be positive, got %d", name, dim)
	}
	return f(dim, rand.New(rand.NewSource(seed))), nil
}

// Names lists the registered objectives in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RandomPoint draws a starting vector uniformly from (-π, π]
func RandomPoint(dim int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, dim)
	for d := range x {
		x[d] = math.Pi - 2*math.Pi*rng.Float64()
	}
	return x
}
