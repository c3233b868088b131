// Package planar implements a batch of simulated holonomic robots that
// navigate to goals in walled arenas with circular obstacles, sensing
// their surroundings with a planar lidar.
package planar

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/lidarnav/environment"
	"github.com/samuelfneumann/lidarnav/frame"
	"github.com/samuelfneumann/lidarnav/utils/floatutils"
)

const (
	// ProprioDim is the width of the proprioceptive block of an
	// observation:
	//
	//	[0, 3)   cos(heading), sin(heading), speed
	//	[3, 6)   body frame velocity (forward, lateral, yaw rate)
	//	[6, 9)   last action
	//	[9, 12)  goal in the body frame (x, y, distance)
	//	12       fraction of the episode's time limit used
	//	13       nearest lidar return
	//	14       bearing of the goal in the body frame
	//	[15, 18) world frame velocity (x, y, yaw rate)
	//	[18, 21) applied body frame acceleration
	ProprioDim = 21

	// ActionDim is the number of body frame acceleration dimensions:
	// forward, lateral and yaw
	ActionDim = 3

	robotRadius = 0.3
	maxAccel    = 4.0
	margin      = 1.0
	maxTries    = 100

	collisionPenalty = 1.0
	goalReward       = 1.0
)

// velocityLimits bounds the body frame velocity of the robots
var velocityLimits = []r1.Interval{
	{Min: -1.5, Max: 1.5},
	{Min: -0.8, Max: 0.8},
	{Min: -2.5, Max: 2.5},
}

// rewardTermNames names the columns of RewardTerms
var rewardTermNames = []string{"progress", "collision", "goal", "total"}

// Config configures a batch of planar navigation environments
type Config struct {
	NumEnvs        int
	Rays           int
	Dt             float64
	EpisodeSteps   int // Ticks before an episode times out; 0 never times out
	ArenaSize      float64
	Obstacles      int
	ObstacleRadius float64
	LidarRange     float64
	GoalRadius     float64
}

type circle struct {
	x, y, r float64
}

type robot struct {
	pose     frame.Pose
	goal     frame.Point
	vel      [3]float64
	accel    [3]float64
	action   [3]float64
	steps    int
	prevDist float64
}

// Env is a batch of planar navigation environments. Each environment
// has its own arena layout, which is resampled whenever the environment
// is reset. Once an environment terminates, its done flag stays raised
// and its robot stops moving until the environment is reset.
type Env struct {
	cfg       Config
	robots    []robot
	obstacles [][]circle
	done      []bool
	terms     *mat.Dense

	poseStarter     environment.UniformStarter
	goalStarter     environment.UniformStarter
	obstacleStarter environment.UniformStarter
	limit           environment.StepLimit
}

// New returns a new batch of environments. Arenas, start poses and
// goals are sampled using src. The environments must be reset before
// they are used.
func New(c Config, src rand.Source) (*Env, error) {
	if c.NumEnvs <= 0 || c.Rays <= 0 {
		return nil, fmt.Errorf("new: environments and rays must be positive, "+
			"have %v and %v", c.NumEnvs, c.Rays)
	}
	if c.Dt <= 0 || c.LidarRange <= 0 || c.GoalRadius <= 0 {
		return nil, fmt.Errorf("new: dt, lidar range and goal radius must be " +
			"positive")
	}
	if c.ArenaSize <= 2*margin {
		return nil, fmt.Errorf("new: arena size must be larger than %v, "+
			"have %v", 2*margin, c.ArenaSize)
	}

	rng := rand.New(src)
	inner := r1.Interval{Min: margin, Max: c.ArenaSize - margin}
	heading := r1.Interval{Min: -math.Pi, Max: math.Pi}

	return &Env{
		cfg:       c,
		robots:    make([]robot, c.NumEnvs),
		obstacles: make([][]circle, c.NumEnvs),
		done:      make([]bool, c.NumEnvs),
		terms:     mat.NewDense(c.NumEnvs, len(rewardTermNames), nil),

		poseStarter: environment.NewUniformStarter(
			[]r1.Interval{inner, inner, heading}, rand.NewSource(rng.Uint64()),
		),
		goalStarter: environment.NewUniformStarter(
			[]r1.Interval{inner, inner}, rand.NewSource(rng.Uint64()),
		),
		obstacleStarter: environment.NewUniformStarter(
			[]r1.Interval{inner, inner}, rand.NewSource(rng.Uint64()),
		),
		limit: environment.NewStepLimit(c.EpisodeSteps),
	}, nil
}

// NumEnvs returns the number of environments in the batch
func (e *Env) NumEnvs() int { return e.cfg.NumEnvs }

// ObservationDim returns the width of an observation: [proprio | lidar]
func (e *Env) ObservationDim() int { return ProprioDim + e.cfg.Rays }

// ActionDim returns the width of an action
func (e *Env) ActionDim() int { return ActionDim }

// Layout returns the layout of the environment's observations
func (e *Env) Layout() environment.Layout {
	return environment.NewLayout(ProprioDim, e.cfg.Rays)
}

// Reset resets all environments
func (e *Env) Reset() error {
	for i := range e.robots {
		e.reset(i)
	}
	return nil
}

// PartialReset resets the environments at the argument indices
func (e *Env) PartialReset(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= e.cfg.NumEnvs {
			return fmt.Errorf("partialreset: index %v out of range [0, %v)", i,
				e.cfg.NumEnvs)
		}
	}
	for _, i := range indices {
		e.reset(i)
	}
	return nil
}

// reset samples a new arena, start pose and goal for environment i
func (e *Env) reset(i int) {
	obstacles := make([]circle, 0, e.cfg.Obstacles)
	for len(obstacles) < e.cfg.Obstacles {
		p := e.obstacleStarter.Start(nil)
		obstacles = append(obstacles, circle{p[0], p[1], e.cfg.ObstacleRadius})
	}
	e.obstacles[i] = obstacles

	var pose frame.Pose
	for try := 0; try < maxTries; try++ {
		p := e.poseStarter.Start(nil)
		pose = frame.Pose{X: p[0], Y: p[1], Heading: p[2]}
		if e.clearance(i, pose.X, pose.Y) > robotRadius {
			break
		}
	}

	var goal frame.Point
	for try := 0; try < maxTries; try++ {
		g := e.goalStarter.Start(nil)
		goal = frame.Point{X: g[0], Y: g[1]}
		far := math.Hypot(goal.X-pose.X, goal.Y-pose.Y) > 2*e.cfg.GoalRadius
		if far && e.clearance(i, goal.X, goal.Y) > robotRadius {
			break
		}
	}

	e.robots[i] = robot{
		pose:     pose,
		goal:     goal,
		prevDist: math.Hypot(goal.X-pose.X, goal.Y-pose.Y),
	}
	e.done[i] = false
}

// clearance returns the distance from a point to the nearest obstacle
// or wall of environment i
func (e *Env) clearance(i int, x, y float64) float64 {
	size := e.cfg.ArenaSize
	d := math.Min(math.Min(x, size-x), math.Min(y, size-y))
	for _, c := range e.obstacles[i] {
		d = math.Min(d, math.Hypot(x-c.x, y-c.y)-c.r)
	}
	return d
}

// Step applies a body frame acceleration to each robot for a single
// tick and returns the rewards and done flags of the environments.
// Robots of terminated environments do not move and receive no reward.
func (e *Env) Step(actions *mat.Dense) ([]float64, []bool, error) {
	if r, c := actions.Dims(); r != e.cfg.NumEnvs || c != ActionDim {
		return nil, nil, fmt.Errorf("step: illegal action shape"+
			"\n\twant(%v, %v)\n\thave(%v, %v)", e.cfg.NumEnvs, ActionDim, r, c)
	}

	rewards := make([]float64, e.cfg.NumEnvs)
	e.terms.Zero()
	dt := e.cfg.Dt

	for i := range e.robots {
		if e.done[i] {
			continue
		}
		r := &e.robots[i]

		for k := 0; k < ActionDim; k++ {
			a := actions.At(i, k)
			r.action[k] = a
			v := floatutils.ClipInterval(r.vel[k]+
				floatutils.Clip(a, -maxAccel, maxAccel)*dt, velocityLimits[k])
			r.accel[k] = (v - r.vel[k]) / dt
			r.vel[k] = v
		}

		vx, vy := r.worldVelocity()
		r.pose.X += vx * dt
		r.pose.Y += vy * dt
		r.pose.Heading = frame.WrapAngle(r.pose.Heading + r.vel[2]*dt)
		r.steps++

		dist := math.Hypot(r.goal.X-r.pose.X, r.goal.Y-r.pose.Y)
		progress := r.prevDist - dist
		r.prevDist = dist

		collided := e.clearance(i, r.pose.X, r.pose.Y) < robotRadius
		reached := dist < e.cfg.GoalRadius

		row := e.terms.RawRowView(i)
		row[0] = progress
		if collided {
			row[1] = -collisionPenalty
		}
		if reached {
			row[2] = goalReward
		}
		row[3] = row[0] + row[1] + row[2]
		rewards[i] = row[3]

		e.done[i] = collided || reached || e.limit.End(r.steps)
	}

	return rewards, append([]bool(nil), e.done...), nil
}

// worldVelocity returns the world frame linear velocity of the robot
func (r *robot) worldVelocity() (float64, float64) {
	cos, sin := math.Cos(r.pose.Heading), math.Sin(r.pose.Heading)
	return cos*r.vel[0] - sin*r.vel[1], sin*r.vel[0] + cos*r.vel[1]
}

// RewardTermNames returns the names of the reward terms. The last term
// is the total reward.
func (e *Env) RewardTermNames() []string {
	return append([]string(nil), rewardTermNames...)
}

// RewardTerms returns the reward terms of the last Step, one row per
// environment
func (e *Env) RewardTerms() *mat.Dense {
	return mat.DenseCopyOf(e.terms)
}

// Observe returns the current observation of each environment
func (e *Env) Observe() (*mat.Dense, error) {
	obs := mat.NewDense(e.cfg.NumEnvs, e.ObservationDim(), nil)

	for i := range e.robots {
		r := &e.robots[i]
		row := obs.RawRowView(i)
		lidar := row[ProprioDim:]
		e.scan(i, lidar)

		local := frame.WorldToLocal(r.pose, r.goal)
		vx, vy := r.worldVelocity()
		limitFrac := 0.0
		if e.cfg.EpisodeSteps > 0 {
			limitFrac = float64(r.steps) / float64(e.cfg.EpisodeSteps)
		}
		nearest := lidar[0]
		for _, d := range lidar {
			nearest = math.Min(nearest, d)
		}

		copy(row, []float64{
			math.Cos(r.pose.Heading), math.Sin(r.pose.Heading),
			math.Hypot(r.vel[0], r.vel[1]),
			r.vel[0], r.vel[1], r.vel[2],
			r.action[0], r.action[1], r.action[2],
			local.X, local.Y, local.Norm(),
			limitFrac,
			nearest,
			math.Atan2(local.Y, local.X),
			vx, vy, r.vel[2],
			r.accel[0], r.accel[1], r.accel[2],
		})
	}
	return obs, nil
}

// Poses returns the current pose of each robot
func (e *Env) Poses() ([]frame.Pose, error) {
	poses := make([]frame.Pose, len(e.robots))
	for i := range e.robots {
		poses[i] = e.robots[i].pose
	}
	return poses, nil
}

// Goals returns the current goal of each environment
func (e *Env) Goals() ([]frame.Point, error) {
	goals := make([]frame.Point, len(e.robots))
	for i := range e.robots {
		goals[i] = e.robots[i].goal
	}
	return goals, nil
}

// Obstacles returns the obstacles of environment i as (x, y, radius)
// rows
func (e *Env) Obstacles(i int) *mat.Dense {
	if len(e.obstacles[i]) == 0 {
		return nil
	}
	m := mat.NewDense(len(e.obstacles[i]), 3, nil)
	for j, c := range e.obstacles[i] {
		m.SetRow(j, []float64{c.x, c.y, c.r})
	}
	return m
}

// ArenaSize returns the side length of the square arenas
func (e *Env) ArenaSize() float64 { return e.cfg.ArenaSize }
