package experiment

import (
	"fmt"
	"io"
	"log"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/agent"
	"github.com/samuelfneumann/lidarnav/buffer/history"
	"github.com/samuelfneumann/lidarnav/environment"
	"github.com/samuelfneumann/lidarnav/frame"
	"github.com/samuelfneumann/lidarnav/lifecycle"
	"github.com/samuelfneumann/lidarnav/normalize"
	"github.com/samuelfneumann/lidarnav/utils/floatutils"
	"github.com/samuelfneumann/lidarnav/utils/matutils"
	"github.com/samuelfneumann/lidarnav/utils/progressbar"
)

// goalDim is the width of the local goal block of a planning
// observation
const goalDim = 2

// Sleeper pauses the calling goroutine
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to the Sleeper interface
type SleeperFunc func(d time.Duration)

// Sleep implements the Sleeper interface
func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// Option configures optional collaborators of a Driver
type Option func(*Driver)

// WithEncoder passes raw planning observations through a frozen state
// encoder before normalization
func WithEncoder(e agent.Encoder) Option {
	return func(d *Driver) { d.encoder = e }
}

// WithOptimizer sets the optimizer that training rollouts record
// transitions with. A Driver without an optimizer can only evaluate.
func WithOptimizer(o agent.Optimizer) Option {
	return func(d *Driver) { d.optimizer = o }
}

// WithSleeper sets the Sleeper used to pace real time rollouts
func WithSleeper(s Sleeper) Option {
	return func(d *Driver) { d.sleeper = s }
}

// WithLogger sets the logger that the Driver reports to
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithProgress displays a progress bar for each rollout on w
func WithProgress(w io.Writer) Option {
	return func(d *Driver) { d.progress = w }
}

// Driver runs fixed-length rollouts of a batch of environments. At the
// start of each command period it snapshots each robot's pose, builds a
// planning observation from the lidar scan, the centre of mass history
// and the goal in the snapshotted frame, and queries the planner for a
// command. On every tick the frozen tracking policy turns the held
// command into environment actions.
//
// A Driver is not safe for concurrent use.
type Driver struct {
	cfg Config

	env       environment.VecEnv
	planner   agent.Planner
	tracker   agent.FrozenPolicy
	optimizer agent.Optimizer
	encoder   agent.Encoder

	planNorm  *normalize.RunningMeanStd
	trackNorm *normalize.RunningMeanStd

	history   *history.Buffer
	lifecycle *lifecycle.Tracker

	sleeper  Sleeper
	logger   *log.Logger
	progress io.Writer
}

// NewDriver returns a new Driver. The configuration and the shapes of
// all collaborators are validated once here; a violated precondition
// is reported as a *ConfigError.
func NewDriver(cfg Config, env environment.VecEnv, planner agent.Planner,
	tracker agent.FrozenPolicy, planNorm,
	trackNorm *normalize.RunningMeanStd, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("newdriver: %w", err)
	}

	d := &Driver{
		cfg:       cfg,
		env:       env,
		planner:   planner,
		tracker:   tracker,
		planNorm:  planNorm,
		trackNorm: trackNorm,
		sleeper:   SleeperFunc(time.Sleep),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard, "", 0)
	}

	if err := d.validateCollaborators(); err != nil {
		return nil, fmt.Errorf("newdriver: %w", err)
	}

	d.history = history.New(cfg.NumEnvs, cfg.FeatureDim(), cfg.WindowLen)
	d.lifecycle = lifecycle.New(cfg.NumEnvs)

	return d, nil
}

// validateCollaborators checks the shapes of the Driver's collaborators
// against its configuration
func (d *Driver) validateCollaborators() error {
	cfg := d.cfg
	if d.env.NumEnvs() != cfg.NumEnvs {
		return configErrorf("num_envs", "environment has %v environments, "+
			"want %v", d.env.NumEnvs(), cfg.NumEnvs)
	}
	if d.env.ObservationDim() != cfg.Width() {
		return configErrorf("layout", "observation width %v != proprio %v "+
			"+ lidar %v", d.env.ObservationDim(), cfg.Proprio, cfg.Lidar)
	}

	if (d.encoder != nil) != (cfg.EncoderInput != 0) {
		return configErrorf("use_latent_state", "a state encoder is used "+
			"if and only if its input width is configured")
	}
	if d.planNorm.Features() != d.PlanningDim() {
		return configErrorf("planning", "normalizer has %v features, "+
			"planning observations have %v", d.planNorm.Features(),
			d.PlanningDim())
	}
	if d.trackNorm.Features() != cfg.TrackingDim() {
		return configErrorf("tracking", "normalizer has %v features, "+
			"tracking observations have %v", d.trackNorm.Features(),
			cfg.TrackingDim())
	}
	return nil
}

// Config returns the configuration of the Driver
func (d *Driver) Config() Config {
	return d.cfg
}

// PlanningDim returns the width of planning observations passed to the
// planner
func (d *Driver) PlanningDim() int {
	if d.encoder != nil {
		return d.encoder.OutputDim() + goalDim
	}
	return d.cfg.RawPlanningDim()
}

// rollout holds the running state of a single call to Run
type rollout struct {
	mode  Mode
	steps int
	stats *RolloutStats

	origins []frame.Pose
	goals   []frame.Point
	planObs *mat.Dense
	action  *mat.Dense // Planner output for the current period
	command *mat.Dense // Clipped action that the robot executes
	pending []int      // Environments to reset at the next command period

	doneSum int

	termer   environment.RewardTermer
	termSums *mat.Dense // (plan steps x terms)
}

// Run runs a single rollout in the argument mode and returns its
// statistics. Training rollouts end with an update of the optimizer.
func (d *Driver) Run(mode Mode) (*RolloutStats, error) {
	if mode == Train && d.optimizer == nil {
		return nil, fmt.Errorf("run: training requires an optimizer")
	}

	r := d.newRollout(mode)
	if err := d.env.Reset(); err != nil {
		return nil, fmt.Errorf("run: could not reset environments: %w", err)
	}
	d.history.Reset()
	d.lifecycle.Reset()

	var bar *progressbar.ManualProgressBar
	if d.progress != nil {
		bar = progressbar.NewManualProgressBarTo(d.progress, mode.String(), 40,
			r.steps)
	}

	start := time.Now()
	for step := 0; step < r.steps; step++ {
		tickStart := time.Now()
		if err := d.tick(r, step); err != nil {
			return nil, fmt.Errorf("run: step %v: %w", step, err)
		}

		if bar != nil {
			bar.Increment()
			bar.Display()
		}

		if mode == Evaluate && d.cfg.RealTime {
			wait := time.Duration(d.cfg.ControlDt*float64(time.Second)) -
				time.Since(tickStart)
			if wait > 0 {
				d.sleeper.Sleep(wait)
			}
		}
	}

	if mode == Train {
		if err := d.update(r); err != nil {
			return nil, fmt.Errorf("run: %w", err)
		}
	}
	if bar != nil {
		fmt.Fprintln(d.progress)
	}

	d.finish(r, time.Since(start))
	return r.stats, nil
}

func (d *Driver) newRollout(mode Mode) *rollout {
	steps := d.cfg.Steps(mode)
	r := &rollout{
		mode:  mode,
		steps: steps,
		stats: &RolloutStats{Mode: mode, Steps: steps},
	}

	if termer, ok := d.env.(environment.RewardTermer); ok {
		r.termer = termer
		r.stats.RewardTermNames = termer.RewardTermNames()
		r.termSums = mat.NewDense(steps/d.cfg.CommandPeriod,
			len(r.stats.RewardTermNames), nil)
	}

	if mode == Evaluate && d.cfg.TrajectoryEnvs > 0 {
		r.stats.Trajectories = make([]Trajectory, d.cfg.TrajectoryEnvs)
		for i := range r.stats.Trajectories {
			r.stats.Trajectories[i] = Trajectory{
				Env:   i,
				Poses: make([]frame.Pose, 0, steps),
				Goals: make([]frame.Point, 0, steps),
			}
		}
	}
	return r
}

// tick runs a single control tick of a rollout
func (d *Driver) tick(r *rollout, step int) error {
	newCommand := step%d.cfg.CommandPeriod == 0
	windowEnd := (step+1)%d.cfg.CommandPeriod == 0
	planStep := step / d.cfg.CommandPeriod

	if newCommand {
		if err := d.startPeriod(r); err != nil {
			return err
		}
	}

	obs, err := d.env.Observe()
	if err != nil {
		return fmt.Errorf("could not observe: %w", err)
	}
	if step%d.cfg.COMUpdatePeriod == 0 {
		d.pushHistory(r, obs)
	}

	if newCommand {
		if err := d.plan(r, obs); err != nil {
			return err
		}
	}

	proprio := matutils.Columns(obs, []matutils.ColumnRange{
		d.cfg.ProprioColumns(),
	})
	trackObs := d.trackNorm.Normalize(matutils.HStack(r.command, proprio))
	actions, err := d.tracker.Forward(trackObs)
	if err != nil {
		return fmt.Errorf("could not query tracking policy: %w", err)
	}
	r.stats.TrackingQueries++

	rewards, dones, err := d.env.Step(actions)
	if err != nil {
		return fmt.Errorf("could not step environments: %w", err)
	}
	if len(rewards) != d.cfg.NumEnvs || len(dones) != d.cfg.NumEnvs {
		return fmt.Errorf("step returned %v rewards and %v dones for %v "+
			"environments", len(rewards), len(dones), d.cfg.NumEnvs)
	}

	credited := d.lifecycle.Tick(dones, rewards)
	if r.termer != nil {
		d.logRewardTerms(r, planStep, credited)
	}
	if r.stats.Trajectories != nil {
		if err := d.recordTrajectories(r); err != nil {
			return err
		}
	}

	if windowEnd {
		w := d.lifecycle.CloseWindow()
		r.doneSum += w.DoneCount
		r.pending = w.Done

		if r.mode == Train {
			err := d.optimizer.RecordTransition(r.planObs, r.action, w.Reward,
				w.Terminal)
			if err != nil {
				return fmt.Errorf("could not record transition: %w", err)
			}
		}
	}

	// Terminated environments restart their history, whatever their
	// lifecycle state
	d.history.ResetSubset(doneIndices(dones))
	return nil
}

// startPeriod resets the environments that terminated during the
// previous command period and snapshots the poses and goals that the
// new period's planning observation is built from
func (d *Driver) startPeriod(r *rollout) error {
	if len(r.pending) > 0 {
		if err := d.env.PartialReset(r.pending); err != nil {
			return fmt.Errorf("could not reset environments %v: %w",
				r.pending, err)
		}
		r.pending = nil
	}

	origins, err := d.env.Poses()
	if err != nil {
		return fmt.Errorf("could not get poses: %w", err)
	}
	goals, err := d.env.Goals()
	if err != nil {
		return fmt.Errorf("could not get goals: %w", err)
	}
	if len(origins) != d.cfg.NumEnvs || len(goals) != d.cfg.NumEnvs {
		return fmt.Errorf("have %v poses and %v goals for %v environments",
			len(origins), len(goals), d.cfg.NumEnvs)
	}

	r.origins, r.goals = origins, goals
	return nil
}

// pushHistory pushes the centre of mass features of obs to the history
func (d *Driver) pushHistory(r *rollout, obs *mat.Dense) {
	d.history.Push(matutils.Columns(obs, d.cfg.COMSlices))
	r.stats.HistoryPushes++
}

// planningObservation builds the normalized planning observation
// [lidar | history | goal], or [encoded | goal] with a state encoder.
// The planning normalizer is only updated when update is true.
func (d *Driver) planningObservation(r *rollout, obs *mat.Dense,
	update bool) (*mat.Dense, error) {
	lidar := matutils.Columns(obs, []matutils.ColumnRange{
		d.cfg.LidarColumns(),
	})
	goal := frame.GoalFeatures(r.origins, r.goals, d.cfg.GoalThreshold)

	state := matutils.HStack(lidar, d.history.Read(true))
	if d.encoder != nil {
		var err error
		if state, err = d.encoder.Forward(state); err != nil {
			return nil, fmt.Errorf("could not encode state: %w", err)
		}
	}
	planObs := matutils.HStack(state, goal)
	r.stats.PlanningObservations++

	if update {
		d.planNorm.Update(planObs)
	}
	return d.planNorm.Normalize(planObs), nil
}

// plan queries the planner for the commands of a new command period
func (d *Driver) plan(r *rollout, obs *mat.Dense) error {
	planObs, err := d.planningObservation(r, obs, r.mode == Train)
	if err != nil {
		return err
	}

	var command *mat.Dense
	if r.mode == Train {
		command, err = d.planner.SampleAction(planObs)
	} else {
		command, err = d.planner.DeterministicAction(planObs)
	}
	if err != nil {
		return fmt.Errorf("could not query planner: %w", err)
	}
	if rows, cols := command.Dims(); rows != d.cfg.NumEnvs ||
		cols != d.cfg.CommandDim {
		return fmt.Errorf("planner returned (%v, %v) commands, want (%v, %v)",
			rows, cols, d.cfg.NumEnvs, d.cfg.CommandDim)
	}

	r.planObs = planObs
	r.action = command
	r.command = mat.DenseCopyOf(command)
	floatutils.ClipColumns(r.command, d.cfg.CommandBounds)
	return nil
}

// update bootstraps the rollout from the state after its last tick and
// updates the optimizer
func (d *Driver) update(r *rollout) error {
	if err := d.startPeriod(r); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	obs, err := d.env.Observe()
	if err != nil {
		return fmt.Errorf("bootstrap: could not observe: %w", err)
	}
	d.pushHistory(r, obs)

	lastObs, err := d.planningObservation(r, obs, true)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	stats, err := d.optimizer.Update(lastObs)
	if err != nil {
		return fmt.Errorf("could not update optimizer: %w", err)
	}
	r.stats.Update = &stats
	return nil
}

// logRewardTerms accumulates the reward terms of the credited
// environments into the current plan step
func (d *Driver) logRewardTerms(r *rollout, planStep int, credited []int) {
	terms := r.termer.RewardTerms()
	row := r.termSums.RawRowView(planStep)
	for _, i := range credited {
		for k := range row {
			row[k] += terms.At(i, k)
		}
	}
}

// recordTrajectories appends the current pose and goal of each tracked
// environment to its trajectory
func (d *Driver) recordTrajectories(r *rollout) error {
	poses, err := d.env.Poses()
	if err != nil {
		return fmt.Errorf("could not get poses: %w", err)
	}
	for i := range r.stats.Trajectories {
		traj := &r.stats.Trajectories[i]
		traj.Poses = append(traj.Poses, poses[traj.Env])
		traj.Goals = append(traj.Goals, r.goals[traj.Env])
	}
	return nil
}

// doneIndices returns the indices of the raised done flags
func doneIndices(dones []bool) []int {
	var indices []int
	for i, d := range dones {
		if d {
			indices = append(indices, i)
		}
	}
	return indices
}
