package objective

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/rotosolve/internal/opt"
)

func TestSine(t *testing.T) {
	f := Sine(2)

	v, err := f([]float64{math.Pi / 2, -math.Pi / 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-12)

	v, err = f([]float64{-math.Pi / 2, -math.Pi / 2})
	require.NoError(t, err)
	assert.InDelta(t, -2.0, v, 1e-12)
}

func TestDimensionMismatch(t *testing.T) {
	ring := &Ring{Coupling: 1, Size: 3}
	sinusoid := RandomSinusoid(2, rand.New(rand.NewSource(1)))

	objectives := map[string]opt.Objective{
		"sine":     Sine(3),
		"ring":     ring.Eval,
		"sinusoid": sinusoid.Eval,
	}
	for name, f := range objectives {
		_, err := f([]float64{1})
		assert.ErrorIs(t, err, ErrDimension, name)
	}
}

func TestSinusoidMinimum(t *testing.T) {
	s := &Sinusoid{
		Amplitude: []float64{1, -2, 0.5, 0},
		Phase:     []float64{0.3, 1.0, -3.0, 2.0},
		Offset:    4,
	}

	x, value := s.Minimum()
	require.Len(t, x, 4)

	got, err := s.Eval(x)
	require.NoError(t, err)
	assert.InDelta(t, value, got, 1e-12)
	assert.InDelta(t, 0.5, value, 1e-12)

	for d, v := range x {
		assert.Greater(t, v, -math.Pi, "coordinate %d", d)
		assert.LessOrEqual(t, v, math.Pi, "coordinate %d", d)
	}
}

func TestRotosolveSolvesSinusoidInOneSweep(t *testing.T) {
	s := RandomSinusoid(6, rand.New(rand.NewSource(7)))
	want, minValue := s.Minimum()

	got, err := opt.NewRotosolve().Step(s.Eval, RandomPoint(6, 3))
	require.NoError(t, err)

	for d := range want {
		assert.InDelta(t, want[d], got[d], 1e-9, "coordinate %d", d)
	}
	value, err := s.Eval(got)
	require.NoError(t, err)
	assert.InDelta(t, minValue, value, 1e-9)
}

func TestRingIsSinusoidalPerCoordinate(t *testing.T) {
	ring := &Ring{Coupling: 1, Field: 0.5, Size: 4}
	x := []float64{0.2, -1.3, 2.2, 0.9}

	// A single-harmonic function satisfies H(θ) + H(θ+π) = 2·mean
	for d := range x {
		at := func(theta float64) float64 {
			p := append([]float64(nil), x...)
			p[d] = theta
			v, err := ring.Eval(p)
			require.NoError(t, err)
			return v
		}
		mean := (at(0) + at(math.Pi)) / 2
		for _, theta := range []float64{0.4, 1.7, -2.5} {
			assert.InDelta(t, 2*mean, at(theta)+at(theta+math.Pi), 1e-12, "coordinate %d", d)
		}
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		f, err := New(name, 3, 42)
		require.NoError(t, err, name)

		_, err = f(make([]float64, 3))
		assert.NoError(t, err, name)
	}

	_, err := New("vqe", 3, 42)
	assert.True(t, errors.Is(err, ErrUnknown))

	_, err = New("sine", 0, 42)
	assert.Error(t, err)
}

func TestNewIsDeterministic(t *testing.T) {
	a, err := New("sinusoid", 5, 9)
	require.NoError(t, err)
	b, err := New("sinusoid", 5, 9)
	require.NoError(t, err)

	x := RandomPoint(5, 1)
	va, _ := a(x)
	vb, _ := b(x)
	assert.Equal(t, va, vb)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"ring", "sine", "sinusoid"}, Names())
}

func TestRandomPoint(t *testing.T) {
	x := RandomPoint(100, 5)
	require.Len(t, x, 100)
	for _, v := range x {
		assert.Greater(t, v, -math.Pi)
		assert.LessOrEqual(t, v, math.Pi)
	}
	assert.Equal(t, x, RandomPoint(100, 5))
}

func TestCounter(t *testing.T) {
	c := NewCounter(Sine(2))

	got, err := opt.NewRotosolve().Step(c.Eval, []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-math.Pi / 2, -math.Pi / 2}, got, 1e-12)
	assert.EqualValues(t, 6, c.Calls())
}

func TestCounterPassesErrorsThrough(t *testing.T) {
	c := NewCounter(Sine(2))

	_, err := opt.NewRotosolve().Step(c.Eval, []float64{0, 0, 0})
	assert.ErrorIs(t, err, ErrDimension)
	assert.EqualValues(t, 1, c.Calls())
}
