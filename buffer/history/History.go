// Package history implements a fixed-length rolling history of feature
// vectors for a batch of environments.
package history

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Buffer stores, for each of a number of environments, the last
// windowLen feature vectors that were pushed to it. Logically, the
// buffer is an (environments, featureDim, windowLen) array where time
// index windowLen-1 holds the most recent feature vector and time index
// 0 holds the oldest. Pushing drops the oldest feature vector.
//
// Internally the buffer is a ring with a single cursor shared by all
// environments, so a push is O(environments * featureDim) regardless
// of the window length. Environments that are reset have their slots
// zeroed; they then see zeros in place of history from before the
// reset.
type Buffer struct {
	nEnv       int
	featureDim int
	windowLen  int

	// data stores slots in ring order. Slot s of environment e starts
	// at index (e*windowLen + s) * featureDim.
	data []float64

	head  int // Slot that the next push writes to
	count int // Pushes since the last full reset, saturating at windowLen
}

// New returns a new zeroed Buffer
func New(nEnv, featureDim, windowLen int) *Buffer {
	if nEnv <= 0 || featureDim <= 0 || windowLen <= 0 {
		panic(fmt.Sprintf("new: dimensions must be positive, have "+
			"(envs=%v, features=%v, window=%v)", nEnv, featureDim, windowLen))
	}

	return &Buffer{
		nEnv:       nEnv,
		featureDim: featureDim,
		windowLen:  windowLen,
		data:       make([]float64, nEnv*featureDim*windowLen),
	}
}

// NumEnvs returns the number of environments in the buffer
func (b *Buffer) NumEnvs() int { return b.nEnv }

// FeatureDim returns the size of a single feature vector
func (b *Buffer) FeatureDim() int { return b.featureDim }

// WindowLen returns the number of feature vectors stored per environment
func (b *Buffer) WindowLen() int { return b.windowLen }

// Len returns the number of pushes since the last full reset, up to
// the window length
func (b *Buffer) Len() int { return b.count }

// Push adds one feature vector per environment to the buffer. The
// features matrix must be (environments x featureDim).
func (b *Buffer) Push(features mat.Matrix) {
	r, c := features.Dims()
	if r != b.nEnv || c != b.featureDim {
		panic(fmt.Sprintf("push: illegal feature shape\n\twant(%v, %v)"+
			"\n\thave(%v, %v)", b.nEnv, b.featureDim, r, c))
	}

	for e := 0; e < b.nEnv; e++ {
		slot := b.slot(e, b.head)
		for f := 0; f < b.featureDim; f++ {
			slot[f] = features.At(e, f)
		}
	}

	b.head = (b.head + 1) % b.windowLen
	if b.count < b.windowLen {
		b.count++
	}
}

// Reset zeroes the history of all environments
func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.head = 0
	b.count = 0
}

// ResetSubset zeroes the history of the environments at the argument
// indices. The history of every other environment is left untouched.
func (b *Buffer) ResetSubset(indices []int) {
	for _, e := range indices {
		if e < 0 || e >= b.nEnv {
			panic(fmt.Sprintf("resetsubset: environment index %v out of "+
				"range [0, %v)", e, b.nEnv))
		}
		start := e * b.windowLen * b.featureDim
		env := b.data[start : start+b.windowLen*b.featureDim]
		for i := range env {
			env[i] = 0
		}
	}
}

// At returns feature f of environment env at time index t, where t=0
// is the oldest entry and t=WindowLen()-1 the newest
func (b *Buffer) At(env, f, t int) float64 {
	if t < 0 || t >= b.windowLen {
		panic(fmt.Sprintf("at: time index %v out of range [0, %v)", t,
			b.windowLen))
	}
	return b.slot(env, b.ringIndex(t))[f]
}

// Read returns a copy of the buffer as an (environments x
// featureDim*windowLen) matrix.
//
// If flatten is false, the columns are laid out feature-major: element
// (env, f, t) of the logical array is at column f*windowLen + t.
//
// If flatten is true, the columns are laid out time-major: the oldest
// feature vector comes first, followed by the next oldest, and so on,
// so that element (env, f, t) is at column t*featureDim + f. This is the
// layout that downstream encoders consume.
func (b *Buffer) Read(flatten bool) *mat.Dense {
	out := mat.NewDense(b.nEnv, b.featureDim*b.windowLen, nil)

	for e := 0; e < b.nEnv; e++ {
		row := out.RawRowView(e)
		for t := 0; t < b.windowLen; t++ {
			slot := b.slot(e, b.ringIndex(t))
			for f, v := range slot {
				if flatten {
					row[t*b.featureDim+f] = v
				} else {
					row[f*b.windowLen+t] = v
				}
			}
		}
	}
	return out
}

// ringIndex converts a logical time index (0 = oldest) to a ring slot
func (b *Buffer) ringIndex(t int) int {
	return (b.head + t) % b.windowLen
}

// slot returns the backing storage of a single ring slot
func (b *Buffer) slot(env, s int) []float64 {
	start := (env*b.windowLen + s) * b.featureDim
	return b.data[start : start+b.featureDim]
}
