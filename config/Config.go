// Package config loads the YAML configuration of a navigation training
// run and derives the tick based configuration of the rollout driver
// from it.
package config

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r1"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/lidarnav/environment"
	"github.com/samuelfneumann/lidarnav/experiment"
	"github.com/samuelfneumann/lidarnav/network"
	"github.com/samuelfneumann/lidarnav/utils/matutils"
)

// Config is the root configuration structure
type Config struct {
	Seed         uint64             `yaml:"seed"`
	DataDir      string             `yaml:"data_dir"`
	Environment  EnvironmentConfig  `yaml:"environment"`
	Architecture ArchitectureConfig `yaml:"architecture"`
	History      HistoryConfig      `yaml:"history"`
	Sensors      SensorConfig       `yaml:"sensors"`
	PPO          PPOConfig          `yaml:"ppo"`
	Logging      LogConfig          `yaml:"logging"`
}

// EnvironmentConfig defines the environments and the rollout schedule.
// Durations are in seconds.
type EnvironmentConfig struct {
	NumEnvs               int           `yaml:"num_envs"`
	ControlDt             float64       `yaml:"control_dt"`
	MaxTime               float64       `yaml:"max_time"`
	CommandPeriod         float64       `yaml:"command_period"`
	EvalEveryN            int           `yaml:"eval_every_n"`
	MaxNUpdate            int           `yaml:"max_n_update"`
	GoalDistanceThreshold float64       `yaml:"goal_distance_threshold"`
	Command               CommandConfig `yaml:"command"`
	Arena                 ArenaConfig   `yaml:"arena"`
	RealTime              bool          `yaml:"real_time"`
}

// Bound is a closed interval
type Bound struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Interval returns the bound as an r1.Interval
func (b Bound) Interval() r1.Interval {
	return r1.Interval{Min: b.Min, Max: b.Max}
}

// CommandConfig bounds each velocity command dimension
type CommandConfig struct {
	ForwardVel Bound `yaml:"forward_vel"`
	LateralVel Bound `yaml:"lateral_vel"`
	YawRate    Bound `yaml:"yaw_rate"`
}

// Bounds returns the command bounds in command column order
func (c CommandConfig) Bounds() []r1.Interval {
	return []r1.Interval{
		c.ForwardVel.Interval(),
		c.LateralVel.Interval(),
		c.YawRate.Interval(),
	}
}

// ArenaConfig defines the simulated arena
type ArenaConfig struct {
	Size           float64 `yaml:"size"`
	Obstacles      int     `yaml:"obstacles"`
	ObstacleRadius float64 `yaml:"obstacle_radius"`
	LidarRange     float64 `yaml:"lidar_range"`
	GoalRadius     float64 `yaml:"goal_radius"`
}

// ArchitectureConfig defines the networks of a run
type ArchitectureConfig struct {
	PolicyNet       []int         `yaml:"policy_net"`
	ValueNet        []int         `yaml:"value_net"`
	Activation      string        `yaml:"activation"`
	TrackingWeights string        `yaml:"tracking_weights"`
	UseLatentState  bool          `yaml:"use_latent_state"`
	StateEncoder    EncoderConfig `yaml:"state_encoder"`
	InitStd         float64       `yaml:"init_std"`
	MinStd          float64       `yaml:"min_std"`
}

// EncoderConfig defines the frozen state encoder
type EncoderConfig struct {
	Input   int    `yaml:"input"`
	Output  int    `yaml:"output"`
	Weights string `yaml:"weights"`
}

// HistoryConfig defines the centre of mass feature history
type HistoryConfig struct {
	FeatureSlices [][]int `yaml:"feature_slices"`
	Window        int     `yaml:"window"`
	UpdatePeriod  float64 `yaml:"update_period"`
}

// SensorConfig defines the widths of the observation blocks
type SensorConfig struct {
	Proprio int `yaml:"proprio"`
	Lidar   int `yaml:"lidar"`
}

// PPOConfig defines the return estimation of the planner's optimizer
type PPOConfig struct {
	Gamma  float64 `yaml:"gamma"`
	Lambda float64 `yaml:"lambda"`
}

// LogConfig defines what is reported and saved during a run
type LogConfig struct {
	Progress     bool `yaml:"progress"`
	Trajectories int  `yaml:"trajectories"`
}

// Load reads a YAML config file and returns a Config
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration and applies defaults to the fields
// that it leaves unset
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	env := &cfg.Environment
	if env.NumEnvs == 0 {
		env.NumEnvs = 64
	}
	if env.ControlDt == 0 {
		env.ControlDt = 0.01
	}
	if env.MaxTime == 0 {
		env.MaxTime = 6
	}
	if env.CommandPeriod == 0 {
		env.CommandPeriod = 0.5
	}
	if env.EvalEveryN == 0 {
		env.EvalEveryN = 50
	}
	if env.MaxNUpdate == 0 {
		env.MaxNUpdate = 1000
	}
	if env.GoalDistanceThreshold == 0 {
		env.GoalDistanceThreshold = 10
	}
	if env.Command == (CommandConfig{}) {
		env.Command = CommandConfig{
			ForwardVel: Bound{-1, 1},
			LateralVel: Bound{-0.4, 0.4},
			YawRate:    Bound{-1.2, 1.2},
		}
	}
	if env.Arena.Size == 0 {
		env.Arena.Size = 20
	}
	if env.Arena.Obstacles == 0 {
		env.Arena.Obstacles = 12
	}
	if env.Arena.ObstacleRadius == 0 {
		env.Arena.ObstacleRadius = 0.6
	}
	if env.Arena.LidarRange == 0 {
		env.Arena.LidarRange = 10
	}
	if env.Arena.GoalRadius == 0 {
		env.Arena.GoalRadius = 0.5
	}

	arch := &cfg.Architecture
	if len(arch.PolicyNet) == 0 {
		arch.PolicyNet = []int{256, 128}
	}
	if len(arch.ValueNet) == 0 {
		arch.ValueNet = []int{256, 128}
	}
	if arch.Activation == "" {
		arch.Activation = "leakyrelu"
	}
	if arch.InitStd == 0 {
		arch.InitStd = 1
	}
	if arch.MinStd == 0 {
		arch.MinStd = 0.1
	}

	if len(cfg.History.FeatureSlices) == 0 {
		cfg.History.FeatureSlices = [][]int{{0, 3}, {15, 21}}
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = 10
	}
	if cfg.History.UpdatePeriod == 0 {
		cfg.History.UpdatePeriod = 0.05
	}

	if cfg.Sensors.Proprio == 0 {
		cfg.Sensors.Proprio = 21
	}
	if cfg.Sensors.Lidar == 0 {
		cfg.Sensors.Lidar = 360
	}

	if cfg.PPO.Gamma == 0 {
		cfg.PPO.Gamma = 0.9988
	}
	if cfg.PPO.Lambda == 0 {
		cfg.PPO.Lambda = 0.95
	}
}

// ticks returns the number of whole control ticks in a duration
func (c *Config) ticks(seconds float64) int {
	return int(math.Floor(seconds/c.Environment.ControlDt + 1e-9))
}

// NSteps returns the number of ticks of a training rollout
func (c *Config) NSteps() int {
	return c.ticks(c.Environment.MaxTime)
}

// EvaluateNSteps returns the number of ticks of an evaluation rollout,
// twice that of a training rollout
func (c *Config) EvaluateNSteps() int {
	return 2 * c.NSteps()
}

// CommandPeriodSteps returns the number of ticks each command is held
func (c *Config) CommandPeriodSteps() int {
	return c.ticks(c.Environment.CommandPeriod)
}

// COMUpdatePeriodSteps returns the number of ticks between pushes to
// the centre of mass history
func (c *Config) COMUpdatePeriodSteps() int {
	return c.ticks(c.History.UpdatePeriod)
}

// COMSlices returns the configured centre of mass feature slices. A
// malformed slice is returned as an empty range, which fails
// validation.
func (c *Config) COMSlices() []matutils.ColumnRange {
	slices := make([]matutils.ColumnRange, len(c.History.FeatureSlices))
	for i, s := range c.History.FeatureSlices {
		if len(s) == 2 {
			slices[i] = matutils.ColumnRange{Start: s[0], End: s[1]}
		}
	}
	return slices
}

// Driver returns the tick based configuration of a rollout driver
func (c *Config) Driver() experiment.Config {
	encoderInput := 0
	if c.Architecture.UseLatentState {
		encoderInput = c.Architecture.StateEncoder.Input
	}

	return experiment.Config{
		NumEnvs: c.Environment.NumEnvs,
		Layout: environment.Layout{
			Proprio: c.Sensors.Proprio,
			Lidar:   c.Sensors.Lidar,
		},
		CommandDim:      3,
		ControlDt:       c.Environment.ControlDt,
		NSteps:          c.NSteps(),
		EvaluateNSteps:  c.EvaluateNSteps(),
		CommandPeriod:   c.CommandPeriodSteps(),
		COMUpdatePeriod: c.COMUpdatePeriodSteps(),
		COMSlices:       c.COMSlices(),
		WindowLen:       c.History.Window,
		GoalThreshold:   c.Environment.GoalDistanceThreshold,
		CommandBounds:   c.Environment.Command.Bounds(),
		EncoderInput:    encoderInput,
		RealTime:        c.Environment.RealTime,
		TrajectoryEnvs:  c.Logging.Trajectories,
	}
}

func invalid(field, format string, args ...interface{}) error {
	return &experiment.ConfigError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Validate checks the configuration. The returned error, if any, is an
// *experiment.ConfigError.
func (c *Config) Validate() error {
	env := c.Environment
	if env.ControlDt <= 0 {
		return invalid("environment.control_dt", "must be positive, have %v",
			env.ControlDt)
	}
	if env.MaxNUpdate <= 0 {
		return invalid("environment.max_n_update", "must be positive, have %v",
			env.MaxNUpdate)
	}
	if env.EvalEveryN < 0 {
		return invalid("environment.eval_every_n", "must be non-negative, "+
			"have %v", env.EvalEveryN)
	}
	if env.Arena.Size <= 0 || env.Arena.LidarRange <= 0 {
		return invalid("environment.arena", "size and lidar range must be "+
			"positive")
	}

	for i, s := range c.History.FeatureSlices {
		if len(s) != 2 {
			return invalid("history.feature_slices", "slice %v must be a "+
				"[start, end) pair, have %v", i, s)
		}
	}

	arch := c.Architecture
	if _, err := network.ParseActivation(arch.Activation); err != nil {
		return invalid("architecture.activation", "%v", err)
	}
	if arch.UseLatentState {
		if arch.StateEncoder.Output <= 0 {
			return invalid("architecture.state_encoder.output", "must be "+
				"positive, have %v", arch.StateEncoder.Output)
		}
		if arch.StateEncoder.Weights == "" {
			return invalid("architecture.state_encoder.weights", "required "+
				"with use_latent_state")
		}
	}
	if arch.InitStd <= 0 || arch.MinStd <= 0 {
		return invalid("architecture", "init_std and min_std must be "+
			"positive, have %v and %v", arch.InitStd, arch.MinStd)
	}

	if c.PPO.Gamma <= 0 || c.PPO.Gamma > 1 {
		return invalid("ppo.gamma", "must be in (0, 1], have %v", c.PPO.Gamma)
	}
	if c.PPO.Lambda < 0 || c.PPO.Lambda > 1 {
		return invalid("ppo.lambda", "must be in [0, 1], have %v",
			c.PPO.Lambda)
	}

	return c.Driver().Validate()
}
