package planar

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/environment"
	"github.com/samuelfneumann/lidarnav/frame"
	"github.com/samuelfneumann/lidarnav/utils/matutils"
)

var (
	_ environment.VecEnv       = (*Env)(nil)
	_ environment.RewardTermer = (*Env)(nil)
)

func newEnv(t *testing.T, c Config) *Env {
	t.Helper()
	e, err := New(c, rand.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	return e
}

func emptyConfig(n int) Config {
	return Config{
		NumEnvs:    n,
		Rays:       4,
		Dt:         0.1,
		ArenaSize:  10,
		LidarRange: 10,
		GoalRadius: 0.5,
	}
}

func TestResetClearance(t *testing.T) {
	c := emptyConfig(16)
	c.Obstacles, c.ObstacleRadius = 5, 0.5
	e := newEnv(t, c)

	poses, _ := e.Poses()
	goals, _ := e.Goals()
	for i := range poses {
		if d := e.clearance(i, poses[i].X, poses[i].Y); d <= robotRadius {
			t.Errorf("env %v starts in collision (clearance %v)", i, d)
		}
		if d := e.clearance(i, goals[i].X, goals[i].Y); d <= robotRadius {
			t.Errorf("env %v goal in collision (clearance %v)", i, d)
		}
		if r, _ := e.Obstacles(i).Dims(); r != 5 {
			t.Errorf("env %v: want 5 obstacles, have %v", i, r)
		}
	}

	obs, err := e.Observe()
	if err != nil {
		t.Fatal(err)
	}
	if r, c := obs.Dims(); r != 16 || c != ProprioDim+4 {
		t.Errorf("observation shape: want (16, %v), have (%v, %v)",
			ProprioDim+4, r, c)
	}
}

func TestCastRay(t *testing.T) {
	obstacle := []circle{{8, 5, 1}}
	tests := []struct {
		name                   string
		ox, oy, dx, dy         float64
		obstacles              []circle
		size, maxRange, expect float64
	}{
		{"wall", 5, 5, 1, 0, nil, 10, 20, 5},
		{"wall behind", 5, 5, -1, 0, nil, 10, 20, 5},
		{"obstacle", 5, 5, 1, 0, obstacle, 10, 20, 2},
		{"inside obstacle", 8, 5, 0, 1, obstacle, 10, 20, 1},
		{"missed obstacle", 5, 5, 0, 1, obstacle, 10, 20, 5},
		{"range", 5, 5, 1, 0, nil, 100, 3, 3},
	}

	for _, test := range tests {
		have := castRay(test.ox, test.oy, test.dx, test.dy, test.obstacles,
			test.size, test.maxRange)
		if math.Abs(have-test.expect) > 1e-12 {
			t.Errorf("%v:\n\twant(%v)\n\thave(%v)", test.name, test.expect, have)
		}
	}
}

func TestScanFollowsHeading(t *testing.T) {
	e := newEnv(t, emptyConfig(1))
	e.robots[0].pose = frame.Pose{X: 2, Y: 5, Heading: math.Pi / 2}

	obs, err := e.Observe()
	if err != nil {
		t.Fatal(err)
	}
	lidar := obs.RawRowView(0)[ProprioDim:]
	if want := []float64{5, 2, 5, 8}; !floats.EqualApprox(lidar, want, 1e-9) {
		t.Errorf("\n\twant(%v)\n\thave(%v)", want, lidar)
	}
	if nearest := obs.At(0, 13); math.Abs(nearest-2) > 1e-9 {
		t.Errorf("nearest return: want 2, have %v", nearest)
	}
}

func TestStickyDoneAndPartialReset(t *testing.T) {
	c := emptyConfig(2)
	c.EpisodeSteps = 3
	e := newEnv(t, c)
	zero := mat.NewDense(2, ActionDim, nil)

	var dones []bool
	for s := 0; s < 3; s++ {
		var err error
		if _, dones, err = e.Step(zero); err != nil {
			t.Fatal(err)
		}
	}
	if !dones[0] || !dones[1] {
		t.Fatalf("episodes should time out after 3 steps, have %v", dones)
	}

	before, _ := e.Poses()
	rewards, dones, err := e.Step(mat.NewDense(2, ActionDim,
		[]float64{4, 4, 4, 4, 4, 4}))
	if err != nil {
		t.Fatal(err)
	}
	after, _ := e.Poses()
	if !dones[0] || !dones[1] {
		t.Error("done flags should stay raised until reset")
	}
	if rewards[0] != 0 || before[0] != after[0] {
		t.Error("terminated robots should not move or receive reward")
	}

	if err := e.PartialReset([]int{1}); err != nil {
		t.Fatal(err)
	}
	_, dones, _ = e.Step(zero)
	if !dones[0] || dones[1] {
		t.Errorf("only env 1 should be reset, have %v", dones)
	}
	if e.robots[1].steps != 1 {
		t.Errorf("reset env steps: want 1, have %v", e.robots[1].steps)
	}

	if err := e.PartialReset([]int{2}); err == nil {
		t.Error("resetting an out of range environment should fail")
	}
}

func TestRewardTerms(t *testing.T) {
	e := newEnv(t, emptyConfig(2))

	// Env 0 sits next to its goal, env 1 against a wall
	e.robots[0] = robot{
		pose:     frame.Pose{X: 5.05, Y: 5},
		goal:     frame.Point{X: 5, Y: 5},
		prevDist: 0.05,
	}
	e.robots[1] = robot{
		pose:     frame.Pose{X: 0.1, Y: 5},
		goal:     frame.Point{X: 9, Y: 5},
		prevDist: 8.9,
	}

	rewards, dones, err := e.Step(mat.NewDense(2, ActionDim, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !dones[0] || !dones[1] {
		t.Fatalf("both environments should terminate, have %v", dones)
	}

	terms := e.RewardTerms()
	if want := []float64{0, 0, goalReward, goalReward}; !floats.EqualApprox(
		terms.RawRowView(0), want, 1e-12) {
		t.Errorf("goal terms:\n\twant(%v)\n\thave(%v)", want,
			terms.RawRowView(0))
	}
	if want := []float64{0, -collisionPenalty, 0, -collisionPenalty}; !floats.EqualApprox(
		terms.RawRowView(1), want, 1e-12) {
		t.Errorf("collision terms:\n\twant(%v)\n\thave(%v)", want,
			terms.RawRowView(1))
	}
	for i := 0; i < 2; i++ {
		row := terms.RawRowView(i)
		if rewards[i] != row[len(row)-1] {
			t.Errorf("env %v: reward %v != total term %v", i, rewards[i],
				row[len(row)-1])
		}
	}
	if names := e.RewardTermNames(); names[len(names)-1] != "total" {
		t.Errorf("last term should be the total, have %v", names)
	}
}

func TestDynamics(t *testing.T) {
	e := newEnv(t, emptyConfig(1))
	e.robots[0] = robot{
		pose:     frame.Pose{X: 5, Y: 5, Heading: math.Pi / 2},
		goal:     frame.Point{X: 5, Y: 8},
		prevDist: 3,
	}

	rewards, _, err := e.Step(mat.NewDense(1, ActionDim, []float64{1, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}

	// Forward is +y at this heading: v = 0.1, dy = 0.01
	pose := e.robots[0].pose
	if math.Abs(pose.X-5) > 1e-12 || math.Abs(pose.Y-5.01) > 1e-12 {
		t.Errorf("pose: want (5, 5.01), have (%v, %v)", pose.X, pose.Y)
	}
	if math.Abs(rewards[0]-0.01) > 1e-12 {
		t.Errorf("progress reward: want 0.01, have %v", rewards[0])
	}

	if _, _, err := e.Step(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("step with the wrong action width should fail")
	}
}

func TestCommandFollower(t *testing.T) {
	c := emptyConfig(1)
	c.ArenaSize = 1000
	e := newEnv(t, c)
	e.robots[0] = robot{
		pose:     frame.Pose{X: 500, Y: 500},
		goal:     frame.Point{X: 900, Y: 900},
		prevDist: 400 * math.Sqrt2,
	}
	follower := NewCommandFollower(5)
	command := mat.NewDense(1, ActionDim, []float64{1, -0.5, 0.5})

	for s := 0; s < 100; s++ {
		obs, err := e.Observe()
		if err != nil {
			t.Fatal(err)
		}
		proprio := matutils.Columns(obs, []matutils.ColumnRange{
			e.Layout().ProprioColumns(),
		})
		actions, err := follower.Forward(matutils.HStack(command, proprio))
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := e.Step(actions); err != nil {
			t.Fatal(err)
		}
	}

	vel := e.robots[0].vel[:]
	if !floats.EqualApprox(vel, command.RawRowView(0), 1e-6) {
		t.Errorf("velocity:\n\twant(%v)\n\thave(%v)", command.RawRowView(0), vel)
	}

	if _, err := follower.Forward(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("forward with the wrong width should fail")
	}
}
