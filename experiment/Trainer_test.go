package experiment

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

type countingTracker struct {
	modes []Mode
	saved bool
}

func (c *countingTracker) Track(s *RolloutStats) { c.modes = append(c.modes, s.Mode) }
func (c *countingTracker) Save() error           { c.saved = true; return nil }

type checkpointRecorder []int

func (c *checkpointRecorder) Checkpoint(iteration int) error {
	*c = append(*c, iteration)
	return nil
}

func TestTrainerSchedule(t *testing.T) {
	cfg := testConfig()
	f := newFixture(cfg)
	d := f.driver(t, cfg, f.env)

	var checkpoints checkpointRecorder
	var hooked []int
	hook := func(iteration int, s *RolloutStats) error {
		if s.Mode != Evaluate {
			t.Errorf("hook called with a %v rollout", s.Mode)
		}
		hooked = append(hooked, iteration)
		return nil
	}
	tracker := &countingTracker{}
	var out bytes.Buffer

	tr, err := NewTrainer(d, 5, 2, WithCheckpointer(&checkpoints),
		WithHooks(hook), WithTrackers(tracker),
		WithReporter(NewReporter(log.New(&out, "", 0))))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Save(); err != nil {
		t.Fatal(err)
	}

	want := []int{0, 2, 4}
	if !equalInts(checkpoints, want) || !equalInts(hooked, want) {
		t.Errorf("evaluations: want %v, have checkpoints %v hooks %v", want,
			checkpoints, hooked)
	}

	wantModes := []Mode{Evaluate, Train, Train, Evaluate, Train, Train,
		Evaluate, Train}
	if len(tracker.modes) != len(wantModes) {
		t.Fatalf("tracked rollouts:\n\twant(%v)\n\thave(%v)", wantModes,
			tracker.modes)
	}
	for i := range wantModes {
		if tracker.modes[i] != wantModes[i] {
			t.Errorf("rollout %v: want %v, have %v", i, wantModes[i],
				tracker.modes[i])
		}
	}
	if !tracker.saved {
		t.Error("tracker was not saved")
	}

	if len(f.optimizer.lastObs) != 5 {
		t.Errorf("updates: want 5, have %v", len(f.optimizer.lastObs))
	}
	if n := strings.Count(out.String(), "th evaluation"); n != 3 {
		t.Errorf("reported evaluations: want 3, have %v", n)
	}
}

func TestTrainerHookError(t *testing.T) {
	cfg := testConfig()
	f := newFixture(cfg)
	d := f.driver(t, cfg, f.env)

	errHook := errors.New("hook failed")
	tr, err := NewTrainer(d, 3, 1, WithHooks(func(int, *RolloutStats) error {
		return errHook
	}))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); !errors.Is(err, errHook) {
		t.Errorf("want the hook's error, have %v", err)
	}
}

func TestNewTrainerErrors(t *testing.T) {
	cfg := testConfig()
	f := newFixture(cfg)
	d := f.driver(t, cfg, f.env)

	var cfgErr *ConfigError
	if _, err := NewTrainer(d, 0, 1); !errors.As(err, &cfgErr) {
		t.Errorf("zero updates: want a *ConfigError, have %v", err)
	}
	if _, err := NewTrainer(d, 1, -1); !errors.As(err, &cfgErr) {
		t.Errorf("negative evaluation interval: want a *ConfigError, have %v",
			err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
