package experiment

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/lidarnav/agent"
	"github.com/samuelfneumann/lidarnav/frame"
	"github.com/samuelfneumann/lidarnav/utils/matutils"
)

// Trajectory is the sequence of poses of a single environment over a
// rollout, one per tick, with the goal that was active on each tick
type Trajectory struct {
	Env   int
	Poses []frame.Pose
	Goals []frame.Point
}

// RolloutStats summarises a single rollout
type RolloutStats struct {
	Mode  Mode
	Steps int

	// Statistics over environments of the reward credited to each
	// environment during the rollout
	MeanReward float64
	StdReward  float64
	MinReward  float64
	MaxReward  float64

	// Dones is the number of terminations over all command periods and
	// DoneRate is Dones divided by the number of (period, environment)
	// pairs of the rollout
	Dones    int
	DoneRate float64

	Elapsed        time.Duration
	FPS            float64
	RealTimeFactor float64

	// Mean and standard deviation over plan steps of the environment
	// averaged reward terms, when the environment reports them
	RewardTermNames []string
	RewardTermMean  []float64
	RewardTermStd   []float64

	TrackingQueries      int
	PlanningObservations int
	HistoryPushes        int

	// Trajectories of the first environments of evaluation rollouts
	Trajectories []Trajectory

	// Update holds the statistics of the optimizer update that ended a
	// training rollout
	Update *agent.UpdateStats
}

// finish computes the summary statistics of a completed rollout
func (d *Driver) finish(r *rollout, elapsed time.Duration) {
	s := r.stats
	nEnv := float64(d.cfg.NumEnvs)

	rewards := d.lifecycle.RolloutReward()
	s.MeanReward, s.StdReward = stat.PopMeanStdDev(rewards, nil)
	s.MinReward = floats.Min(rewards)
	s.MaxReward = floats.Max(rewards)

	periods := float64(r.steps / d.cfg.CommandPeriod)
	s.Dones = r.doneSum
	s.DoneRate = float64(r.doneSum) / (periods * nEnv)

	s.Elapsed = elapsed
	seconds := math.Max(elapsed.Seconds(), 1e-9)
	s.FPS = float64(r.steps) * nEnv / seconds
	s.RealTimeFactor = s.FPS * d.cfg.ControlDt

	if r.termSums != nil {
		perStep := mat.DenseCopyOf(r.termSums)
		perStep.Scale(1/nEnv, perStep)
		s.RewardTermMean, s.RewardTermStd = matutils.ColMeanStdDev(perStep)
	}

	d.logger.Printf("%v rollout: %v steps, mean reward %.6f, done rate %.6f",
		r.mode, r.steps, s.MeanReward, s.DoneRate)
}

const rule = "----------------------------------------------------"

// Report writes the statistics of a rollout as a text block. The
// iteration labels the block.
func (s *RolloutStats) Report(w io.Writer, iteration int) error {
	var b strings.Builder
	line := func(name, format string, v interface{}) {
		fmt.Fprintf(&b, "%-40v %6v\n", name+": ", fmt.Sprintf(format, v))
	}

	b.WriteString(rule + "\n")
	if s.Mode == Evaluate {
		fmt.Fprintf(&b, "%6vth evaluation\n", iteration)
	} else {
		fmt.Fprintf(&b, "%6vth iteration\n", iteration)
	}

	line("average reward", "%0.10f", s.MeanReward)
	if s.Mode == Evaluate {
		line("reward std", "%0.10f", s.StdReward)
		line("minimum reward", "%0.10f", s.MinReward)
		line("maximum reward", "%0.10f", s.MaxReward)
	}
	line("average dones", "%0.6f", s.DoneRate)
	line("elapsed time", "%6.4f", s.Elapsed.Seconds())
	line("fps", "%6.0f", s.FPS)
	line("real time factor", "%6.0f", s.RealTimeFactor)

	for k, name := range s.RewardTermNames {
		line("reward/"+name, "%0.6f", s.RewardTermMean[k])
	}
	if s.Update != nil {
		fmt.Fprintf(&b, "std: %v\n", s.Update.ActionStd)
	}
	b.WriteString(rule + "\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
