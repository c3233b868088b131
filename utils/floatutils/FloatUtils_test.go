package floatutils

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestClipColumns(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		-5, 0.2, 3,
		5, -0.2, -3,
	})
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: 0, Max: 0.1}, {Min: -2, Max: 2}}

	ClipColumns(m, bounds)

	want := mat.NewDense(2, 3, []float64{
		-1, 0.1, 2,
		1, 0, -2,
	})
	if !mat.Equal(m, want) {
		t.Errorf("want %v, have %v", mat.Formatted(want), mat.Formatted(m))
	}
}

func TestClipInterval(t *testing.T) {
	i := r1.Interval{Min: -1, Max: 2}
	for in, want := range map[float64]float64{-3: -1, 0.5: 0.5, 7: 2} {
		if got := ClipInterval(in, i); got != want {
			t.Errorf("clip(%v): want %v, have %v", in, want, got)
		}
	}
}
