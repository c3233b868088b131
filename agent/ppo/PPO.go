// Package ppo implements the optimizer side of proximal policy
// optimization for a Gaussian planner: rollout storage, value
// estimation and generalized advantage estimation. The gradient steps
// themselves are delegated to a Learner.
package ppo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/lidarnav/agent"
	"github.com/samuelfneumann/lidarnav/buffer/gae"
)

// Config configures a PPO optimizer
type Config struct {
	Gamma  float64
	Lambda float64

	// MinStd is the smallest standard deviation the planner is allowed
	// to have after an update
	MinStd float64

	// Steps is the number of transitions per environment stored between
	// updates
	Steps int
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1], have %v",
			c.Gamma)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("validate: lambda must be in [0, 1], have %v",
			c.Lambda)
	}
	if c.MinStd <= 0 {
		return fmt.Errorf("validate: minimum std must be positive, have %v",
			c.MinStd)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("validate: steps must be positive, have %v",
			c.Steps)
	}
	return nil
}

// PPO records the transitions of training rollouts and updates a
// Gaussian planner and its critic from them
type PPO struct {
	actor   *Gaussian
	critic  *Critic
	buffer  *gae.Buffer
	learner Learner
	minStd  float64
}

// New returns a new PPO optimizer for nEnv environments
func New(actor *Gaussian, critic *Critic, learner Learner, nEnv int,
	c Config) (*PPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if actor.Network().Features() != critic.Network().Features() {
		return nil, fmt.Errorf("new: actor and critic inputs differ: %v != %v",
			actor.Network().Features(), critic.Network().Features())
	}
	if learner == nil {
		learner = NoopLearner{}
	}

	buffer := gae.New(nEnv, actor.Network().Features(), actor.ActionDim(),
		c.Steps, c.Lambda, c.Gamma)

	return &PPO{
		actor:   actor,
		critic:  critic,
		buffer:  buffer,
		learner: learner,
		minStd:  c.MinStd,
	}, nil
}

// Actor returns the planner that PPO optimizes
func (p *PPO) Actor() *Gaussian { return p.actor }

// Critic returns the critic that PPO optimizes
func (p *PPO) Critic() *Critic { return p.critic }

// RecordTransition implements the agent.Optimizer interface
func (p *PPO) RecordTransition(obs, actions *mat.Dense, rewards []float64,
	dones []bool) error {
	values, err := p.critic.Value(obs)
	if err != nil {
		return fmt.Errorf("recordtransition: %w", err)
	}
	logProbs, err := p.actor.LogProb(obs, actions)
	if err != nil {
		return fmt.Errorf("recordtransition: %w", err)
	}

	if err := p.buffer.Store(obs, actions, rewards, values, logProbs,
		dones); err != nil {
		return fmt.Errorf("recordtransition: %w", err)
	}
	return nil
}

// Update implements the agent.Optimizer interface
func (p *PPO) Update(lastObs *mat.Dense) (agent.UpdateStats, error) {
	lastVals, err := p.critic.Value(lastObs)
	if err != nil {
		return agent.UpdateStats{}, fmt.Errorf("update: %w", err)
	}
	if err := p.buffer.FinishPath(lastVals); err != nil {
		return agent.UpdateStats{}, fmt.Errorf("update: %w", err)
	}

	batch, err := p.buffer.Get()
	if err != nil {
		return agent.UpdateStats{}, fmt.Errorf("update: %w", err)
	}

	if err := p.learner.Learn(batch, p.actor, p.critic); err != nil {
		return agent.UpdateStats{}, fmt.Errorf("update: could not learn: %w",
			err)
	}
	p.actor.EnforceMinStd(p.minStd)

	meanAdv, stdAdv := stat.MeanStdDev(batch.RawAdvantages, nil)
	return agent.UpdateStats{
		Transitions:   batch.Len(),
		MeanReturn:    stat.Mean(batch.Returns, nil),
		MeanAdvantage: meanAdv,
		StdAdvantage:  stdAdv,
		MeanValue:     stat.Mean(batch.Values, nil),
		ActionStd:     p.actor.Std(),
	}, nil
}
