// Package environment outlines the interfaces that batched navigation
// environments implement, along with helpers shared between them
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/frame"
)

// VecEnv is a batch of environments stepped in lock step. Every batched
// value has one row (or element) per environment.
//
// Observations are laid out as [proprioception | lidar scan]. Done flags
// returned by Step stay raised for a terminated environment until that
// environment is reset with PartialReset or Reset.
type VecEnv interface {
	NumEnvs() int
	ObservationDim() int
	ActionDim() int

	// Reset resets every environment
	Reset() error

	// PartialReset resets only the environments at the argument indices,
	// sampling new start poses and goals for them
	PartialReset(indices []int) error

	// Observe returns the current (environments x ObservationDim())
	// observations
	Observe() (*mat.Dense, error)

	// Step applies one (environments x ActionDim()) action matrix for a
	// single control tick and returns the rewards and done flags
	Step(actions *mat.Dense) ([]float64, []bool, error)

	// Poses returns the world-frame pose of each environment's robot
	Poses() ([]frame.Pose, error)

	// Goals returns the world-frame goal of each environment
	Goals() ([]frame.Point, error)
}

// RewardTermer is a VecEnv that reports the individual terms that its
// reward is composed of
type RewardTermer interface {
	VecEnv

	// RewardTermNames returns the name of each reward term. The last
	// name refers to the sum of all other terms.
	RewardTermNames() []string

	// RewardTerms returns the (environments x terms) reward terms of
	// the most recent call to Step
	RewardTerms() *mat.Dense
}
