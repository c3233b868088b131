package ppo

import (
	"github.com/samuelfneumann/lidarnav/buffer/gae"
)

// Learner performs the gradient steps of a PPO update on a full batch
// of rollout data, modifying the actor and critic in place
type Learner interface {
	Learn(batch *gae.Batch, actor *Gaussian, critic *Critic) error
}

// NoopLearner leaves the actor and critic unchanged. It is used when
// only rollouts and their statistics are needed.
type NoopLearner struct{}

// Learn implements the Learner interface
func (NoopLearner) Learn(*gae.Batch, *Gaussian, *Critic) error {
	return nil
}

// LearnerFunc adapts a function to the Learner interface
type LearnerFunc func(batch *gae.Batch, actor *Gaussian, critic *Critic) error

// Learn implements the Learner interface
func (f LearnerFunc) Learn(batch *gae.Batch, actor *Gaussian,
	critic *Critic) error {
	return f(batch, actor, critic)
}
