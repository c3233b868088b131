package ppo

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/lidarnav/agent"
	"github.com/samuelfneumann/lidarnav/buffer/gae"
	"github.com/samuelfneumann/lidarnav/network"
)

var (
	_ agent.Planner   = (*Gaussian)(nil)
	_ agent.Optimizer = (*PPO)(nil)
)

func newActorCritic(t *testing.T, features, batch, actions int) (*Gaussian,
	*Critic) {
	t.Helper()

	mean, err := network.NewMLP(features, batch, actions, []int{8},
		[]*network.Activation{network.LeakyReLU()}, rand.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	actor, err := NewGaussian(mean, 1.0, rand.NewSource(2))
	if err != nil {
		t.Fatal(err)
	}

	value, err := network.NewMLP(features, batch, 1, []int{8},
		[]*network.Activation{network.LeakyReLU()}, rand.NewSource(3))
	if err != nil {
		t.Fatal(err)
	}
	critic, err := NewCritic(value)
	if err != nil {
		t.Fatal(err)
	}
	return actor, critic
}

func TestSampleActionStatistics(t *testing.T) {
	const batch = 2000
	actor, _ := newActorCritic(t, 2, batch, 3)
	if err := actor.SetLogStd([]float64{0, math.Log(0.5), math.Log(2)}); err != nil {
		t.Fatal(err)
	}

	// Identical states share a mean, so the sample spread is the std
	obs := mat.NewDense(batch, 2, nil)
	for i := 0; i < batch; i++ {
		obs.SetRow(i, []float64{0.4, -0.2})
	}

	mean, err := actor.DeterministicAction(obs)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := actor.SampleAction(obs)
	if err != nil {
		t.Fatal(err)
	}

	col := make([]float64, batch)
	for j, wantStd := range []float64{1, 0.5, 2} {
		mat.Col(col, j, samples)
		m, s := stat.MeanStdDev(col, nil)
		if math.Abs(m-mean.At(0, j)) > 4*wantStd/math.Sqrt(batch) {
			t.Errorf("dimension %v mean: want %v, have %v", j, mean.At(0, j), m)
		}
		if math.Abs(s-wantStd) > 0.1*wantStd {
			t.Errorf("dimension %v std: want %v, have %v", j, wantStd, s)
		}
	}
}

func TestLogProb(t *testing.T) {
	actor, _ := newActorCritic(t, 2, 1, 2)
	if err := actor.SetLogStd([]float64{0, 0}); err != nil {
		t.Fatal(err)
	}

	obs := mat.NewDense(1, 2, []float64{1, 1})
	mean, err := actor.DeterministicAction(obs)
	if err != nil {
		t.Fatal(err)
	}

	// The density of the mean of a unit Gaussian in two dimensions
	logProb, err := actor.LogProb(obs, mean)
	if err != nil {
		t.Fatal(err)
	}
	want := -math.Log(2 * math.Pi)
	if math.Abs(logProb[0]-want) > 1e-12 {
		t.Errorf("want %v, have %v", want, logProb[0])
	}

	if _, err := actor.LogProb(obs, mat.NewDense(1, 3, nil)); err == nil {
		t.Error("logprob: expected an error for mismatched action width")
	}
}

func TestEnforceMinStd(t *testing.T) {
	actor, _ := newActorCritic(t, 2, 1, 2)
	if err := actor.SetLogStd([]float64{math.Log(0.01), math.Log(0.5)}); err != nil {
		t.Fatal(err)
	}

	actor.EnforceMinStd(0.1)
	if !floats.EqualApprox(actor.Std(), []float64{0.1, 0.5}, 1e-12) {
		t.Errorf("want [0.1 0.5], have %v", actor.Std())
	}
}

func TestRecordAndUpdate(t *testing.T) {
	const nEnv, steps = 3, 2
	actor, critic := newActorCritic(t, 4, nEnv, 2)

	var seen *gae.Batch
	learner := LearnerFunc(func(b *gae.Batch, a *Gaussian, c *Critic) error {
		seen = b
		return a.SetLogStd([]float64{-10, -10})
	})

	p, err := New(actor, critic, learner, nEnv, Config{
		Gamma: 0.99, Lambda: 0.95, MinStd: 0.1, Steps: steps,
	})
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(5))
	obs := func() *mat.Dense {
		m := mat.NewDense(nEnv, 4, nil)
		for i := 0; i < nEnv; i++ {
			for j := 0; j < 4; j++ {
				m.Set(i, j, rng.NormFloat64())
			}
		}
		return m
	}

	for s := 0; s < steps; s++ {
		o := obs()
		a, err := actor.SampleAction(o)
		if err != nil {
			t.Fatal(err)
		}
		err = p.RecordTransition(o, a, []float64{1, 0, -1},
			[]bool{false, s == 0, false})
		if err != nil {
			t.Fatal(err)
		}
	}

	stats, err := p.Update(obs())
	if err != nil {
		t.Fatal(err)
	}
	if seen == nil || seen.Len() != nEnv*steps {
		t.Fatalf("learner should see %v transitions", nEnv*steps)
	}
	if stats.Transitions != nEnv*steps {
		t.Errorf("transitions: want %v, have %v", nEnv*steps, stats.Transitions)
	}
	if !floats.EqualApprox(stats.ActionStd, []float64{0.1, 0.1}, 1e-12) {
		t.Errorf("min std should be enforced after learning, have %v",
			stats.ActionStd)
	}

	// A second update without new transitions has nothing to learn from
	if _, err := p.Update(obs()); err == nil {
		t.Error("update on an empty buffer should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{Gamma: 1.5, Lambda: 0.9, MinStd: 0.1, Steps: 1},
		{Gamma: 0.9, Lambda: -1, MinStd: 0.1, Steps: 1},
		{Gamma: 0.9, Lambda: 0.9, MinStd: 0, Steps: 1},
		{Gamma: 0.9, Lambda: 0.9, MinStd: 0.1, Steps: 0},
	}
	for i, c := range bad {
		if c.Validate() == nil {
			t.Errorf("config %v should be invalid", i)
		}
	}
}
