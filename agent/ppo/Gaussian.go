package ppo

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/lidarnav/network"
)

// Gaussian implements a diagonal Gaussian policy whose mean is
// predicted by a neural network and whose log standard deviation is a
// learned vector that does not depend on the state.
//
// Given a network prediction of the mean μ and standard deviation σ,
// actions are selected by sampling ɛ ~ N(0, 1) and computing
// action := μ + σ * ɛ.
type Gaussian struct {
	mean   *network.MLP
	logStd []float64
	normal distuv.Normal
}

// NewGaussian returns a new Gaussian policy over the argument mean
// network with every standard deviation set to initStd. Actions are
// sampled with the argument source.
func NewGaussian(mean *network.MLP, initStd float64,
	src rand.Source) (*Gaussian, error) {
	if initStd <= 0 {
		return nil, fmt.Errorf("newgaussian: initial standard deviation "+
			"must be positive, have %v", initStd)
	}

	logStd := make([]float64, mean.Outputs())
	for i := range logStd {
		logStd[i] = math.Log(initStd)
	}

	return &Gaussian{
		mean:   mean,
		logStd: logStd,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}, nil
}

// ActionDim returns the number of action dimensions
func (g *Gaussian) ActionDim() int {
	return len(g.logStd)
}

// Network returns the mean network of the policy
func (g *Gaussian) Network() *network.MLP {
	return g.mean
}

// DeterministicAction returns the mean action in each state
func (g *Gaussian) DeterministicAction(obs *mat.Dense) (*mat.Dense, error) {
	mean, err := g.mean.Forward(obs)
	if err != nil {
		return nil, fmt.Errorf("deterministicaction: %w", err)
	}
	return mean, nil
}

// SampleAction samples an action in each state
func (g *Gaussian) SampleAction(obs *mat.Dense) (*mat.Dense, error) {
	actions, err := g.mean.Forward(obs)
	if err != nil {
		return nil, fmt.Errorf("sampleaction: %w", err)
	}

	std := g.Std()
	r, _ := actions.Dims()
	for i := 0; i < r; i++ {
		row := actions.RawRowView(i)
		for j := range row {
			row[j] += std[j] * g.normal.Rand()
		}
	}
	return actions, nil
}

// LogProb returns the log density of taking each row of actions in the
// corresponding row of obs
func (g *Gaussian) LogProb(obs, actions *mat.Dense) ([]float64, error) {
	mean, err := g.mean.Forward(obs)
	if err != nil {
		return nil, fmt.Errorf("logprob: %w", err)
	}
	mr, mc := mean.Dims()
	if ar, ac := actions.Dims(); ar != mr || ac != mc {
		return nil, fmt.Errorf("logprob: illegal actions shape\n\t"+
			"want(%v, %v)\n\thave(%v, %v)", mr, mc, ar, ac)
	}

	std := g.Std()
	logProbs := make([]float64, mr)
	for i := range logProbs {
		means := mean.RawRowView(i)
		for j, a := range actions.RawRowView(i) {
			dist := distuv.Normal{Mu: means[j], Sigma: std[j]}
			logProbs[i] += dist.LogProb(a)
		}
	}
	return logProbs, nil
}

// Std returns the standard deviation of each action dimension
func (g *Gaussian) Std() []float64 {
	std := make([]float64, len(g.logStd))
	for i, l := range g.logStd {
		std[i] = math.Exp(l)
	}
	return std
}

// LogStd returns a copy of the log standard deviations
func (g *Gaussian) LogStd() []float64 {
	return append([]float64(nil), g.logStd...)
}

// SetLogStd sets the log standard deviations
func (g *Gaussian) SetLogStd(logStd []float64) error {
	if len(logStd) != len(g.logStd) {
		return fmt.Errorf("setlogstd: illegal length\n\twant(%v)\n\thave(%v)",
			len(g.logStd), len(logStd))
	}
	copy(g.logStd, logStd)
	return nil
}

// EnforceMinStd raises every standard deviation below min up to min
func (g *Gaussian) EnforceMinStd(min float64) {
	floor := math.Log(min)
	for i, l := range g.logStd {
		if l < floor {
			g.logStd[i] = floor
		}
	}
}
