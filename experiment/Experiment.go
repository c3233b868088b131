// Package experiment implements functionality for running hierarchical
// navigation rollouts: a planner issues velocity commands at a low
// frequency and a frozen command tracking policy executes them at the
// control frequency.
package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/lidarnav/environment"
	"github.com/samuelfneumann/lidarnav/utils/matutils"
)

// Mode determines how a rollout selects commands and whether it learns
type Mode int

const (
	// Train rollouts sample commands, update the planning normalizer
	// and record transitions with the optimizer
	Train Mode = iota

	// Evaluate rollouts take deterministic commands and never change
	// any statistics
	Evaluate
)

func (m Mode) String() string {
	switch m {
	case Train:
		return "Train"
	case Evaluate:
		return "Evaluate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ConfigError reports a configuration that a Driver cannot run with
type ConfigError struct {
	Field  string
	Reason string
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v: %v", c.Field, c.Reason)
}

func configErrorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config configures a Driver. All periods are measured in control ticks.
type Config struct {
	NumEnvs int

	// Layout is the layout of environment observations
	environment.Layout

	// CommandDim is the number of velocity command dimensions
	CommandDim int

	// ControlDt is the duration of a single control tick in seconds
	ControlDt float64

	// NSteps and EvaluateNSteps are the lengths of training and
	// evaluation rollouts
	NSteps         int
	EvaluateNSteps int

	// CommandPeriod is the number of ticks that each command is held
	CommandPeriod int

	// COMUpdatePeriod is the number of ticks between pushes to the
	// centre of mass feature history
	COMUpdatePeriod int

	// COMSlices are the proprioceptive columns that make up a centre of
	// mass feature vector
	COMSlices []matutils.ColumnRange

	// WindowLen is the number of feature vectors in the history
	WindowLen int

	// GoalThreshold is the distance that local goals are clamped to
	GoalThreshold float64

	// CommandBounds bounds each command dimension
	CommandBounds []r1.Interval

	// EncoderInput is the input width of the state encoder, or 0 if no
	// state encoder is used
	EncoderInput int

	// RealTime paces evaluation rollouts to the control frequency
	RealTime bool

	// TrajectoryEnvs is the number of environments, starting from 0,
	// whose poses are recorded during evaluation rollouts
	TrajectoryEnvs int
}

// FeatureDim returns the width of a centre of mass feature vector
func (c Config) FeatureDim() int {
	dim := 0
	for _, s := range c.COMSlices {
		dim += s.Len()
	}
	return dim
}

// RawPlanningDim returns the width of a planning observation before it
// is passed through a state encoder: [lidar | history | goal]
func (c Config) RawPlanningDim() int {
	return c.Lidar + c.FeatureDim()*c.WindowLen + goalDim
}

// TrackingDim returns the width of a tracking observation:
// [command | proprioception]
func (c Config) TrackingDim() int {
	return c.CommandDim + c.Proprio
}

// Steps returns the rollout length of the argument mode
func (c Config) Steps(m Mode) int {
	if m == Evaluate {
		return c.EvaluateNSteps
	}
	return c.NSteps
}

// Validate checks the preconditions that a Driver needs. The returned
// error, if any, is a *ConfigError.
func (c Config) Validate() error {
	if c.NumEnvs <= 0 {
		return configErrorf("num_envs", "must be positive, have %v", c.NumEnvs)
	}
	if c.Proprio <= 0 || c.Lidar <= 0 {
		return configErrorf("layout", "block widths must be positive, have "+
			"(proprio=%v, lidar=%v)", c.Proprio, c.Lidar)
	}
	if c.CommandDim <= 0 {
		return configErrorf("command_dim", "must be positive, have %v",
			c.CommandDim)
	}
	if c.ControlDt <= 0 {
		return configErrorf("control_dt", "must be positive, have %v",
			c.ControlDt)
	}
	if c.CommandPeriod <= 0 {
		return configErrorf("command_period", "must be at least one tick, "+
			"have %v", c.CommandPeriod)
	}
	if c.COMUpdatePeriod <= 0 {
		return configErrorf("com_update_period", "must be at least one "+
			"tick, have %v", c.COMUpdatePeriod)
	}

	for _, steps := range []struct {
		field string
		n     int
	}{{"n_steps", c.NSteps}, {"evaluate_n_steps", c.EvaluateNSteps}} {
		if steps.n <= 0 {
			return configErrorf(steps.field, "must be positive, have %v",
				steps.n)
		}
		if steps.n%c.CommandPeriod != 0 {
			return configErrorf(steps.field, "%v steps not divisible by the "+
				"command period of %v steps", steps.n, c.CommandPeriod)
		}
		if steps.n%c.COMUpdatePeriod != 0 {
			return configErrorf(steps.field, "%v steps not divisible by the "+
				"history update period of %v steps", steps.n,
				c.COMUpdatePeriod)
		}
	}

	if len(c.COMSlices) == 0 {
		return configErrorf("com_slices", "at least one slice is required")
	}
	for _, s := range c.COMSlices {
		if s.Start < 0 || s.End > c.Proprio || s.Start >= s.End {
			return configErrorf("com_slices", "slice [%v, %v) is not inside "+
				"the proprioceptive block [0, %v)", s.Start, s.End, c.Proprio)
		}
	}
	if c.WindowLen <= 0 {
		return configErrorf("window", "must be positive, have %v", c.WindowLen)
	}
	if c.GoalThreshold <= 0 {
		return configErrorf("goal_distance_threshold", "must be positive, "+
			"have %v", c.GoalThreshold)
	}

	if len(c.CommandBounds) != c.CommandDim {
		return configErrorf("command", "want %v bounds, have %v",
			c.CommandDim, len(c.CommandBounds))
	}
	for i, b := range c.CommandBounds {
		if b.Min > b.Max {
			return configErrorf("command", "bound %v has min %v > max %v", i,
				b.Min, b.Max)
		}
	}

	if c.EncoderInput != 0 && c.EncoderInput != c.RawPlanningDim()-goalDim {
		return configErrorf("state_encoder.input", "want lidar + history "+
			"width %v, have %v", c.RawPlanningDim()-goalDim, c.EncoderInput)
	}
	if c.TrajectoryEnvs < 0 || c.TrajectoryEnvs > c.NumEnvs {
		return configErrorf("trajectories", "must be in [0, %v], have %v",
			c.NumEnvs, c.TrajectoryEnvs)
	}
	return nil
}
