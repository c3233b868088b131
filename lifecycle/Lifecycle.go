// Package lifecycle tracks episode termination across a batch of
// environments over a command window, so that rewards and terminations
// are credited exactly once per episode end.
//
// A command window is a fixed number of control ticks during which the
// planner's command is held. An environment's done flag usually stays
// raised from the tick it terminates until it is reset at the start of
// the next window. Tracker keeps a small state machine per environment
// so that such an environment is counted as done once and stops
// accumulating reward after the tick it terminated on.
package lifecycle

import (
	"fmt"
)

// State is the lifecycle state of a single environment within a window
type State int

const (
	// Running environments have not terminated in the current window
	Running State = iota

	// JustTerminated environments raised their done flag on the most
	// recent tick
	JustTerminated

	// TerminatedAwaitingReset environments terminated on an earlier tick
	// of the current window and wait for a reset at the next window
	TerminatedAwaitingReset
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case JustTerminated:
		return "JustTerminated"
	case TerminatedAwaitingReset:
		return "TerminatedAwaitingReset"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Window summarises a closed command window
type Window struct {
	// DoneCount is the number of environments that terminated within
	// the window
	DoneCount int

	// Done lists the environments that terminated within the window in
	// ascending order. These are the environments to reset before the
	// next window begins.
	Done []int

	// Reward is the reward credited to each environment over the window
	Reward []float64

	// Terminal flags the environments that terminated within the window
	Terminal []bool
}

// Tracker implements the per-environment lifecycle state machines:
//
//	Running --done--> JustTerminated --> TerminatedAwaitingReset
//	   ^                                          |
//	   +---------------- CloseWindow -------------+
//
// Running environments are credited the reward of every tick, including
// the tick on which they terminate. Terminated environments are not
// credited again until the window is closed.
type Tracker struct {
	states []State

	windowReward  []float64
	rolloutReward []float64
	doneCount     int

	credited []int // Scratch space reused by Tick
}

// New returns a new Tracker for nEnv environments, all Running
func New(nEnv int) *Tracker {
	if nEnv <= 0 {
		panic(fmt.Sprintf("new: number of environments must be positive, "+
			"have %v", nEnv))
	}

	return &Tracker{
		states:        make([]State, nEnv),
		windowReward:  make([]float64, nEnv),
		rolloutReward: make([]float64, nEnv),
		credited:      make([]int, 0, nEnv),
	}
}

// NumEnvs returns the number of tracked environments
func (t *Tracker) NumEnvs() int { return len(t.states) }

// State returns the state of environment i
func (t *Tracker) State(i int) State { return t.states[i] }

// DoneCount returns the number of environments that have terminated in
// the current window so far
func (t *Tracker) DoneCount() int { return t.doneCount }

// Tick advances every state machine by one control tick given the done
// flags and rewards that the environments produced on that tick. It
// returns, in ascending order, the environments credited with this
// tick's reward: those still running and those that terminated on this
// tick. The returned slice is only valid until the next call to Tick.
//
// A terminated environment is not credited again until CloseWindow,
// even if its done flag drops before then.
func (t *Tracker) Tick(dones []bool, rewards []float64) []int {
	if len(dones) != len(t.states) || len(rewards) != len(t.states) {
		panic(fmt.Sprintf("tick: want %v dones and rewards, have %v and %v",
			len(t.states), len(dones), len(rewards)))
	}

	t.credited = t.credited[:0]
	for i, state := range t.states {
		switch state {
		case Running:
			if dones[i] {
				t.states[i] = JustTerminated
				t.doneCount++
			}
			t.credited = append(t.credited, i)
			t.windowReward[i] += rewards[i]
			t.rolloutReward[i] += rewards[i]

		case JustTerminated:
			t.states[i] = TerminatedAwaitingReset

		case TerminatedAwaitingReset:
		}
	}
	return t.credited
}

// CloseWindow finalises the current window and returns its summary.
// Every environment is returned to Running and the window reward is
// cleared, ready for the next window.
func (t *Tracker) CloseWindow() Window {
	w := Window{
		DoneCount: t.doneCount,
		Done:      make([]int, 0, t.doneCount),
		Reward:    make([]float64, len(t.states)),
		Terminal:  make([]bool, len(t.states)),
	}
	copy(w.Reward, t.windowReward)

	for i, state := range t.states {
		if state != Running {
			w.Done = append(w.Done, i)
			w.Terminal[i] = true
		}
		t.states[i] = Running
		t.windowReward[i] = 0
	}
	t.doneCount = 0

	return w
}

// RolloutReward returns a copy of the reward credited to each
// environment since the last call to Reset
func (t *Tracker) RolloutReward() []float64 {
	r := make([]float64, len(t.rolloutReward))
	copy(r, t.rolloutReward)
	return r
}

// Reset returns every environment to Running and clears all window and
// rollout statistics
func (t *Tracker) Reset() {
	for i := range t.states {
		t.states[i] = Running
		t.windowReward[i] = 0
		t.rolloutReward[i] = 0
	}
	t.doneCount = 0
}
