package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples vectors uniformly from a box, one interval per
// dimension. Environments use it to sample start poses and goals.
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter that samples with the
// argument source
func NewUniformStarter(bounds []r1.Interval, src rand.Source) UniformStarter {
	return UniformStarter{len(bounds), distmv.NewUniform(bounds, src)}
}

// Features returns the dimension of sampled vectors
func (u UniformStarter) Features() int {
	return u.features
}

// Start samples and returns a vector, writing it into dst if dst is not
// nil
func (u UniformStarter) Start(dst []float64) []float64 {
	return u.rand.Rand(dst)
}
