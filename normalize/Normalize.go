// Package normalize implements running observation normalization.
package normalize

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Type tags the observation stream that a normalizer tracks. The tag is
// part of the filename that statistics are saved under.
type Type int

const (
	// Planning normalizes observations of the high-level planner
	Planning Type = 1

	// Tracking normalizes observations of the command tracking policy
	Tracking Type = 2
)

func (t Type) String() string {
	switch t {
	case Planning:
		return "Planning"
	case Tracking:
		return "Tracking"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

const (
	// DefaultClip is the default bound on normalized observations
	DefaultClip = 10.0

	// epsilon is the pseudo-count that the statistics start with and
	// the offset added to the variance before division
	epsilon = 1e-4
	varEps  = 1e-8
)

// RunningMeanStd keeps a running per-feature mean and variance of the
// observations passed to Update and uses them to standardize
// observations. Batches are merged with the parallel variance
// algorithm, so the statistics do not depend on how the observations
// were split into batches.
type RunningMeanStd struct {
	Type
	mean  []float64
	vari  []float64
	count float64
	clip  float64
}

// New returns a new RunningMeanStd over features features, with zero
// mean and unit variance
func New(t Type, features int) *RunningMeanStd {
	if features <= 0 {
		panic(fmt.Sprintf("new: features must be positive, have %v",
			features))
	}

	vari := make([]float64, features)
	for i := range vari {
		vari[i] = 1
	}
	return &RunningMeanStd{
		Type:  t,
		mean:  make([]float64, features),
		vari:  vari,
		count: epsilon,
		clip:  DefaultClip,
	}
}

// SetClip sets the symmetric bound that normalized observations are
// clipped to. A non-positive clip disables clipping.
func (r *RunningMeanStd) SetClip(clip float64) {
	r.clip = clip
}

// Features returns the number of features the normalizer tracks
func (r *RunningMeanStd) Features() int { return len(r.mean) }

// Count returns the number of observations seen, including the initial
// pseudo-count
func (r *RunningMeanStd) Count() float64 { return r.count }

// Mean returns a copy of the running mean
func (r *RunningMeanStd) Mean() []float64 {
	return append([]float64(nil), r.mean...)
}

// Var returns a copy of the running variance
func (r *RunningMeanStd) Var() []float64 {
	return append([]float64(nil), r.vari...)
}

// Update merges the statistics of a batch of observations, one per row
func (r *RunningMeanStd) Update(obs mat.Matrix) {
	rows, cols := obs.Dims()
	if cols != len(r.mean) {
		panic(fmt.Sprintf("update: illegal number of features\n\twant(%v)"+
			"\n\thave(%v)", len(r.mean), cols))
	}
	if rows == 0 {
		return
	}

	batchCount := float64(rows)
	total := r.count + batchCount
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, obs)
		batchMean, batchVar := stat.PopMeanVariance(col, nil)

		delta := batchMean - r.mean[j]
		m2 := r.vari[j]*r.count + batchVar*batchCount +
			delta*delta*r.count*batchCount/total

		r.mean[j] += delta * batchCount / total
		r.vari[j] = m2 / total
	}
	r.count = total
}

// Normalize returns a standardized and clipped copy of obs
func (r *RunningMeanStd) Normalize(obs mat.Matrix) *mat.Dense {
	rows, cols := obs.Dims()
	if cols != len(r.mean) {
		panic(fmt.Sprintf("normalize: illegal number of features\n\twant(%v)"+
			"\n\thave(%v)", len(r.mean), cols))
	}

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		for j := range row {
			v := (obs.At(i, j) - r.mean[j]) / math.Sqrt(r.vari[j]+varEps)
			if r.clip > 0 {
				v = math.Max(-r.clip, math.Min(r.clip, v))
			}
			row[j] = v
		}
	}
	return out
}

// Filename returns the name of the file that statistics of type t are
// saved to for iteration iter
func Filename(t Type, iter int) string {
	return fmt.Sprintf("mean%d_%d.gob", int(t), iter)
}

// stats is the on-disk form of a RunningMeanStd
type stats struct {
	Mean  []float64
	Var   []float64
	Count float64
}

// Save saves the normalizer statistics to dir for iteration iter
func (r *RunningMeanStd) Save(dir string, iter int) error {
	path := filepath.Join(dir, Filename(r.Type, iter))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: could not create file %v: %w", path, err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	err = enc.Encode(stats{Mean: r.mean, Var: r.vari, Count: r.count})
	if err != nil {
		return fmt.Errorf("save: could not encode statistics: %w", err)
	}
	return file.Close()
}

// Load replaces the normalizer statistics with those saved to dir for
// iteration iter
func (r *RunningMeanStd) Load(dir string, iter int) error {
	path := filepath.Join(dir, Filename(r.Type, iter))
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: could not open file %v: %w", path, err)
	}
	defer file.Close()

	var s stats
	if err := gob.NewDecoder(file).Decode(&s); err != nil {
		return fmt.Errorf("load: could not decode statistics: %w", err)
	}
	if len(s.Mean) != len(r.mean) || len(s.Var) != len(r.vari) {
		return fmt.Errorf("load: saved statistics have %v features, want %v",
			len(s.Mean), len(r.mean))
	}

	copy(r.mean, s.Mean)
	copy(r.vari, s.Var)
	r.count = s.Count
	return nil
}
