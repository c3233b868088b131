package matutils

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestHStack(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})

	got := HStack(a, b)
	want := mat.NewDense(2, 3, []float64{
		1, 3, 4,
		2, 5, 6,
	})
	if !mat.Equal(got, want) {
		t.Errorf("want %v, have %v", Format(want), Format(got))
	}
}

func TestColumns(t *testing.T) {
	m := mat.NewDense(2, 6, []float64{
		0, 1, 2, 3, 4, 5,
		10, 11, 12, 13, 14, 15,
	})

	got := Columns(m, []ColumnRange{{0, 2}, {4, 6}})
	want := mat.NewDense(2, 4, []float64{
		0, 1, 4, 5,
		10, 11, 14, 15,
	})
	if !mat.Equal(got, want) {
		t.Errorf("want %v, have %v", Format(want), Format(got))
	}
}

func TestColMeanStdDev(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{
		1, 4,
		2, 4,
		3, 4,
	})
	mean, std := ColMeanStdDev(m)
	if mean[0] != 2 || mean[1] != 4 {
		t.Errorf("mean: want [2 4], have %v", mean)
	}
	if math.Abs(std[0]-math.Sqrt(2.0/3)) > 1e-12 || std[1] != 0 {
		t.Errorf("std: want [0.8165 0], have %v", std)
	}
}
