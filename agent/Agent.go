// Package agent defines the interfaces of the policies and learners
// that drive navigation rollouts
package agent

import (
	"gonum.org/v1/gonum/mat"
)

// Planner is a high-level policy that maps batches of planning
// observations, one per row, to batches of velocity commands
type Planner interface {
	// SampleAction samples a command for each observation. It is used
	// during training rollouts.
	SampleAction(obs *mat.Dense) (*mat.Dense, error)

	// DeterministicAction returns the mode of the policy for each
	// observation. It is used during evaluation rollouts.
	DeterministicAction(obs *mat.Dense) (*mat.Dense, error)
}

// Optimizer learns a Planner from the transitions of training rollouts
type Optimizer interface {
	// RecordTransition records, for every environment, the planning
	// observation, the command taken, the reward earned while the
	// command was held and whether the environment terminated during
	// that time
	RecordTransition(obs, actions *mat.Dense, rewards []float64,
		dones []bool) error

	// Update updates the Planner using the transitions recorded since
	// the last update. The last planning observation of the rollout is
	// used to bootstrap value estimates.
	Update(lastObs *mat.Dense) (UpdateStats, error)
}

// UpdateStats summarises a single call to Optimizer.Update
type UpdateStats struct {
	Transitions   int
	MeanReturn    float64
	MeanAdvantage float64
	StdAdvantage  float64
	MeanValue     float64
	ActionStd     []float64
}

// Forwarder runs a batched forward pass
type Forwarder interface {
	Forward(x *mat.Dense) (*mat.Dense, error)
}

// FrozenPolicy is a pre-trained low-level policy that maps
// [command | proprioception] observations to joint-level actions. Its
// weights never change during a rollout.
type FrozenPolicy interface {
	Forwarder
}

// Encoder is a frozen state encoder that maps raw planning observations
// to a latent planning observation
type Encoder interface {
	Forwarder
	OutputDim() int
}
