package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/lidarnav/agent"
	"github.com/samuelfneumann/lidarnav/agent/ppo"
	"github.com/samuelfneumann/lidarnav/config"
	"github.com/samuelfneumann/lidarnav/environment/planar"
	"github.com/samuelfneumann/lidarnav/experiment"
	"github.com/samuelfneumann/lidarnav/experiment/checkpointer"
	"github.com/samuelfneumann/lidarnav/network"
	"github.com/samuelfneumann/lidarnav/normalize"
	"github.com/samuelfneumann/lidarnav/plot"
)

// followerGain is the gain of the proportional command follower used
// when no tracking policy weights are configured
const followerGain = 5.0

// setup holds everything a run is built from
type setup struct {
	cfg    *config.Config
	env    *planar.Env
	actor  *ppo.Gaussian
	critic *ppo.Critic
	opt    *ppo.PPO
	driver *experiment.Driver

	planNorm  *normalize.RunningMeanStd
	trackNorm *normalize.RunningMeanStd
}

// activations returns n copies of the named activation
func activations(name string, n int) ([]*network.Activation, error) {
	acts := make([]*network.Activation, n)
	for i := range acts {
		act, err := network.ParseActivation(name)
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

// newSetup builds the environments, networks, normalizers and rollout
// driver of a run. Progress bars and driver logs go to out, if it is
// not nil.
func newSetup(cfg *config.Config, out io.Writer) (*setup, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}
	if cfg.Sensors.Proprio != planar.ProprioDim {
		return nil, fmt.Errorf("newsetup: %w", &experiment.ConfigError{
			Field: "sensors.proprio",
			Reason: fmt.Sprintf("planar environments have %v proprioceptive "+
				"features, have %v", planar.ProprioDim, cfg.Sensors.Proprio),
		})
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	nEnv := cfg.Environment.NumEnvs
	arena := cfg.Environment.Arena

	env, err := planar.New(planar.Config{
		NumEnvs:        nEnv,
		Rays:           cfg.Sensors.Lidar,
		Dt:             cfg.Environment.ControlDt,
		EpisodeSteps:   cfg.NSteps(),
		ArenaSize:      arena.Size,
		Obstacles:      arena.Obstacles,
		ObstacleRadius: arena.ObstacleRadius,
		LidarRange:     arena.LidarRange,
		GoalRadius:     arena.GoalRadius,
	}, rand.NewSource(rng.Uint64()))
	if err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}

	s := &setup{cfg: cfg, env: env}
	driverCfg := cfg.Driver()
	var opts []experiment.Option

	// Tracking policy and its normalizer, whose statistics were saved
	// at the iteration encoded in the weight filename
	var tracker agent.FrozenPolicy
	s.trackNorm = normalize.New(normalize.Tracking, driverCfg.TrackingDim())
	if weights := cfg.Architecture.TrackingWeights; weights != "" {
		net, err := checkpointer.LoadMLP(weights, nEnv)
		if err != nil {
			return nil, fmt.Errorf("newsetup: tracking policy: %w", err)
		}
		iteration, err := checkpointer.IterationFromFilename(weights)
		if err != nil {
			return nil, fmt.Errorf("newsetup: tracking policy: %w", err)
		}
		err = s.trackNorm.Load(filepath.Dir(weights), iteration)
		if err != nil {
			return nil, fmt.Errorf("newsetup: tracking normalizer: %w", err)
		}
		tracker = net
	} else {
		tracker = planar.NewCommandFollower(followerGain)
	}

	planDim := driverCfg.RawPlanningDim()
	if cfg.Architecture.UseLatentState {
		encoder, err := checkpointer.LoadMLP(
			cfg.Architecture.StateEncoder.Weights, nEnv)
		if err != nil {
			return nil, fmt.Errorf("newsetup: state encoder: %w", err)
		}
		if encoder.Features() != driverCfg.EncoderInput ||
			encoder.OutputDim() != cfg.Architecture.StateEncoder.Output {
			return nil, fmt.Errorf("newsetup: %w", &experiment.ConfigError{
				Field: "architecture.state_encoder",
				Reason: fmt.Sprintf("weights are (%v -> %v), configured "+
					"(%v -> %v)", encoder.Features(), encoder.OutputDim(),
					driverCfg.EncoderInput,
					cfg.Architecture.StateEncoder.Output),
			})
		}
		planDim = encoder.OutputDim() + 2
		opts = append(opts, experiment.WithEncoder(encoder))
	}
	s.planNorm = normalize.New(normalize.Planning, planDim)

	arch := cfg.Architecture
	policyActs, err := activations(arch.Activation, len(arch.PolicyNet))
	if err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}
	mean, err := network.NewMLP(planDim, nEnv, driverCfg.CommandDim,
		arch.PolicyNet, policyActs, rand.NewSource(rng.Uint64()))
	if err != nil {
		return nil, fmt.Errorf("newsetup: policy: %w", err)
	}
	s.actor, err = ppo.NewGaussian(mean, arch.InitStd,
		rand.NewSource(rng.Uint64()))
	if err != nil {
		return nil, fmt.Errorf("newsetup: policy: %w", err)
	}

	valueActs, err := activations(arch.Activation, len(arch.ValueNet))
	if err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}
	value, err := network.NewMLP(planDim, nEnv, 1, arch.ValueNet, valueActs,
		rand.NewSource(rng.Uint64()))
	if err != nil {
		return nil, fmt.Errorf("newsetup: value: %w", err)
	}
	if s.critic, err = ppo.NewCritic(value); err != nil {
		return nil, fmt.Errorf("newsetup: value: %w", err)
	}

	s.opt, err = ppo.New(s.actor, s.critic, ppo.NoopLearner{}, nEnv,
		ppo.Config{
			Gamma:  cfg.PPO.Gamma,
			Lambda: cfg.PPO.Lambda,
			MinStd: arch.MinStd,
			Steps:  driverCfg.NSteps / driverCfg.CommandPeriod,
		})
	if err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}

	opts = append(opts, experiment.WithOptimizer(s.opt))
	if out != nil {
		opts = append(opts, experiment.WithLogger(log.New(out, "",
			log.LstdFlags)))
		if cfg.Logging.Progress {
			opts = append(opts, experiment.WithProgress(out))
		}
	}

	s.driver, err = experiment.NewDriver(driverCfg, env, s.actor, tracker,
		s.planNorm, s.trackNorm, opts...)
	if err != nil {
		return nil, fmt.Errorf("newsetup: %w", err)
	}
	return s, nil
}

// load loads a full checkpoint and the planning normalizer statistics
// saved alongside it
func (s *setup) load(weights string) (int, error) {
	iteration, err := checkpointer.IterationFromFilename(weights)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	if err := checkpointer.Load(weights, checkpointer.NewFull(s.actor,
		s.critic)); err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	if err := s.planNorm.Load(filepath.Dir(weights), iteration); err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	return iteration, nil
}

// arena returns the plotting arena of environment i
func (s *setup) arena(i int) plot.Arena {
	return plot.Arena{Size: s.env.ArenaSize(), Obstacles: s.env.Obstacles(i)}
}

// evaluationHook saves the planning normalizer statistics and plots the
// trajectories of each evaluation into dir
func (s *setup) evaluationHook(dir string) experiment.Hook {
	return func(iteration int, stats *experiment.RolloutStats) error {
		if err := s.planNorm.Save(dir, iteration); err != nil {
			return err
		}
		_, err := plot.Trajectories(dir, iteration, stats, s.arena)
		return err
	}
}
