// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Format formats a matrix for printing
func Format(X mat.Matrix) string {
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	return fmt.Sprintf("%v", fa)
}

// ColumnRange is a half-open range [Start, End) of matrix columns
type ColumnRange struct {
	Start, End int
}

// Len returns the number of columns in the range
func (c ColumnRange) Len() int {
	return c.End - c.Start
}

// HStack concatenates matrices with the same number of rows along the
// column dimension
func HStack(blocks ...mat.Matrix) *mat.Dense {
	if len(blocks) == 0 {
		panic("hstack: no matrices to stack")
	}

	rows, _ := blocks[0].Dims()
	cols := 0
	for i, b := range blocks {
		r, c := b.Dims()
		if r != rows {
			panic(fmt.Sprintf("hstack: illegal number of rows in block %v"+
				"\n\twant(%v)\n\thave(%v)", i, rows, r))
		}
		cols += c
	}

	out := mat.NewDense(rows, cols, nil)
	start := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, start, start+c).(*mat.Dense).Copy(b)
		start += c
	}
	return out
}

// Columns gathers the argument column ranges of m, in order, into a new
// matrix
func Columns(m mat.Matrix, ranges []ColumnRange) *mat.Dense {
	rows, cols := m.Dims()
	width := 0
	for _, rng := range ranges {
		if rng.Start < 0 || rng.End > cols || rng.Start >= rng.End {
			panic(fmt.Sprintf("columns: illegal column range [%v, %v) for "+
				"matrix with %v columns", rng.Start, rng.End, cols))
		}
		width += rng.Len()
	}

	out := mat.NewDense(rows, width, nil)
	for i := 0; i < rows; i++ {
		j := 0
		for _, rng := range ranges {
			for c := rng.Start; c < rng.End; c++ {
				out.Set(i, j, m.At(i, c))
				j++
			}
		}
	}
	return out
}

// ColMeanStdDev computes the mean and population standard deviation of
// each column of a matrix
func ColMeanStdDev(matrix mat.Matrix) (mean, std []float64) {
	r, c := matrix.Dims()
	mean = make([]float64, c)
	std = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, matrix)
		mean[j], std[j] = stat.PopMeanStdDev(col, nil)
	}
	return mean, std
}
