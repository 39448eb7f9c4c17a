package opt

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-9

// shifted returns H(θ) = A·sin(θ+φ) + B on coordinate 0
func shifted(a, phi, b float64) Objective {
	return Func(func(x []float64) float64 {
		return a*math.Sin(x[0]+phi) + b
	})
}

// coupled is non-separable but single-harmonic in every coordinate
func coupled(x []float64) float64 {
	var sum float64
	for i := range x {
		sum += math.Cos(x[i])*math.Cos(x[(i+1)%len(x)]) + 0.3*math.Sin(x[i])
	}
	return sum
}

// angleDiff returns the distance between two angles on the circle
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	return math.Min(d, 2*math.Pi-d)
}

func TestStepSineExample(t *testing.T) {
	r := NewRotosolve()

	got, err := r.Step(Func(func(x []float64) float64 { return math.Sin(x[0]) }), []float64{0})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("Expected 1 parameter, got %d", len(got))
	}
	if math.Abs(got[0]+math.Pi/2) > tol {
		t.Errorf("Expected -π/2, got %f", got[0])
	}
}

func TestStepEvaluationCount(t *testing.T) {
	for _, dim := range []int{1, 2, 5, 12} {
		calls := 0
		obj := Func(func(x []float64) float64 {
			calls++
			return coupled(x)
		})

		x := make([]float64, dim)
		if _, err := NewRotosolve().Step(obj, x); err != nil {
			t.Fatalf("dim %d: Step failed: %v", dim, err)
		}

		if calls != 3*dim {
			t.Errorf("dim %d: expected %d evaluations, got %d", dim, 3*dim, calls)
		}
	}
}

func TestStepEvaluationOrder(t *testing.T) {
	var seen [][]float64
	obj := Func(func(x []float64) float64 {
		seen = append(seen, append([]float64(nil), x...))
		return coupled(x)
	})

	x := []float64{0.4, -1.1, 2.0}
	got, err := NewRotosolve().Step(obj, x)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	offsets := []float64{0, math.Pi / 2, -math.Pi / 2}
	for d := range x {
		for k, off := range offsets {
			call := seen[3*d+k]
			if call[d] != off {
				t.Errorf("call %d: coordinate %d = %f, want %f", 3*d+k, d, call[d], off)
			}
			// earlier coordinates already updated, later ones untouched
			for j := range x {
				if j < d && call[j] != got[j] {
					t.Errorf("call %d: coordinate %d = %f, want updated %f", 3*d+k, j, call[j], got[j])
				}
				if j > d && call[j] != x[j] {
					t.Errorf("call %d: coordinate %d = %f, want original %f", 3*d+k, j, call[j], x[j])
				}
			}
		}
	}
}

func TestStepSequentialDependency(t *testing.T) {
	// Solving coordinate 1 against the original x[0] gives a different answer
	// than solving it against the updated x[0].
	x := []float64{2.5, 0.1}
	obj := Func(coupled)

	got, err := NewRotosolve().Step(obj, x)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	parallel := append([]float64(nil), x...)
	if err := solveCoordinate(obj, parallel, 1); err != nil {
		t.Fatalf("solveCoordinate failed: %v", err)
	}

	if got[0] == x[0] {
		t.Fatalf("coordinate 0 did not move")
	}
	if math.Abs(got[1]-parallel[1]) < 1e-6 {
		t.Errorf("coordinate 1 ignored the update of coordinate 0: sequential=%f parallel=%f", got[1], parallel[1])
	}
}

func TestSolveCoordinateMatchesGridSearch(t *testing.T) {
	cases := []struct {
		name      string
		a, phi, b float64
	}{
		{"unit sine", 1, 0, 0},
		{"shifted phase", 2.5, 0.7, -1},
		{"negative amplitude", -0.8, -2.1, 3},
		{"large phase", 1.3, 3.0, 0.5},
		{"small amplitude", 1e-3, 1.9, 10},
	}

	const steps = 200000
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := shifted(tc.a, tc.phi, tc.b)

			x := []float64{1.234}
			if err := solveCoordinate(h, x, 0); err != nil {
				t.Fatalf("solveCoordinate failed: %v", err)
			}

			bestTheta, bestH := 0.0, math.Inf(1)
			step := 2 * math.Pi / steps
			for i := 1; i <= steps; i++ {
				theta := -math.Pi + float64(i)*step
				v, _ := h([]float64{theta})
				if v < bestH {
					bestTheta, bestH = theta, v
				}
			}

			if d := angleDiff(x[0], bestTheta); d > step {
				t.Errorf("θ* = %f, grid argmin = %f (distance %g)", x[0], bestTheta, d)
			}
			got, _ := h(x)
			if got > bestH+1e-6 {
				t.Errorf("H(θ*) = %g exceeds grid minimum %g", got, bestH)
			}
		})
	}
}

func TestStepWrapsBelowMinusPi(t *testing.T) {
	// For H = sin(θ+φ) the raw update is -π/2 - φ; φ = π/2 + ε puts it at -π - ε.
	eps := 1e-3
	h := shifted(1, math.Pi/2+eps, 0)

	got, err := NewRotosolve().Step(h, []float64{0})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	want := -math.Pi - eps + 2*math.Pi
	if math.Abs(got[0]-want) > tol {
		t.Errorf("Expected %f, got %f", want, got[0])
	}
	if got[0] <= -math.Pi || got[0] > math.Pi {
		t.Errorf("%f outside (-π, π]", got[0])
	}
}

func TestWrap(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"minus pi maps to pi", -math.Pi, math.Pi},
		{"below minus pi", -math.Pi - 0.25, math.Pi - 0.25},
		{"lower reachable end", -3 * math.Pi / 2, math.Pi / 2},
		{"inside range", -1, -1},
		{"pi kept", math.Pi, math.Pi},
		{"above pi not wrapped", math.Pi + 0.5, math.Pi + 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Wrap(tc.in); math.Abs(got-tc.want) > tol {
				t.Errorf("Wrap(%f) = %f, want %f", tc.in, got, tc.want)
			}
		})
	}
}

func TestStepStaysInRange(t *testing.T) {
	r := NewRotosolve()
	x := []float64{3.1, -3.1, 0, 1.5, -2.2, 2.9}

	for sweep := 0; sweep < 10; sweep++ {
		var err error
		x, err = r.Step(Func(coupled), x)
		if err != nil {
			t.Fatalf("sweep %d: %v", sweep, err)
		}
		for d, v := range x {
			if v <= -math.Pi || v > math.Pi {
				t.Errorf("sweep %d: coordinate %d = %f outside (-π, π]", sweep, d, v)
			}
		}
	}
}

func TestStepScalarMatchesVector(t *testing.T) {
	r := NewRotosolve()
	h := shifted(1.7, 0.4, 0.2)

	scalar, err := r.StepScalar(h, 3.0)
	if err != nil {
		t.Fatalf("StepScalar failed: %v", err)
	}
	vector, err := r.Step(h, []float64{3.0})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if len(scalar) != 1 {
		t.Fatalf("Expected length-1 result, got %d", len(scalar))
	}
	if scalar[0] != vector[0] {
		t.Errorf("scalar=%f vector=%f", scalar[0], vector[0])
	}
}

func TestStepIdempotentAtOptimum(t *testing.T) {
	amps := []float64{1, 0.5, 2}
	phases := []float64{0.3, -1.2, 2.8}
	obj := Func(func(x []float64) float64 {
		var sum float64
		for i := range x {
			sum += amps[i] * math.Sin(x[i]+phases[i])
		}
		return sum
	})

	optimum := make([]float64, len(amps))
	for i := range optimum {
		optimum[i] = Wrap(-math.Pi/2 - phases[i])
	}

	got, err := NewRotosolve().Step(obj, optimum)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	for i := range got {
		if math.Abs(got[i]-optimum[i]) > tol {
			t.Errorf("coordinate %d moved from %f to %f", i, optimum[i], got[i])
		}
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	x := []float64{0.5, -0.5, 1.5}
	orig := append([]float64(nil), x...)

	got, err := NewRotosolve().Step(Func(coupled), x)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	for i := range x {
		if x[i] != orig[i] {
			t.Errorf("input coordinate %d changed from %f to %f", i, orig[i], x[i])
		}
	}
	got[0] = 99
	if x[0] == 99 {
		t.Error("result aliases the input slice")
	}
}

func TestStepCostNonIncreasing(t *testing.T) {
	r := NewRotosolve()
	x := []float64{1, 2, -1, 0.5}
	prev := coupled(x)

	for sweep := 0; sweep < 8; sweep++ {
		var err error
		x, err = r.Step(Func(coupled), x)
		if err != nil {
			t.Fatalf("sweep %d: %v", sweep, err)
		}
		cost := coupled(x)
		if cost > prev+1e-12 {
			t.Errorf("sweep %d: cost rose from %f to %f", sweep, prev, cost)
		}
		prev = cost
	}
}

func TestStepPropagatesObjectiveError(t *testing.T) {
	boom := errors.New("shape mismatch")
	calls := 0
	obj := func(x []float64) (float64, error) {
		calls++
		if calls == 4 {
			return 0, boom
		}
		return coupled(x), nil
	}

	got, err := NewRotosolve().Step(obj, []float64{0, 0, 0})
	if err != boom {
		t.Fatalf("Expected the objective error unchanged, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil result on error, got %v", got)
	}
	if calls != 4 {
		t.Errorf("Expected evaluation to stop at the failing call, got %d calls", calls)
	}
}

func TestStepEmptyVector(t *testing.T) {
	calls := 0
	obj := Func(func(x []float64) float64 {
		calls++
		return 0
	})

	var r Rotosolve
	got, err := r.Step(obj, nil)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil result, got %#v", got)
	}
	if calls != 0 {
		t.Errorf("Expected no evaluations, got %d", calls)
	}
}
