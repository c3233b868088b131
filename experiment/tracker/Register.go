package tracker

import "github.com/samuelfneumann/lidarnav/experiment"

// registeredTracker registers a Mode with some Tracker so that the
// Tracker tracks rollouts of the registered Mode only. The Save()
// method calls that of the embedded Tracker.
//
// This is useful since a Trainer hands both training and evaluation
// rollouts to its Trackers, but most statistics are only meaningful
// for one of the two.
type registeredTracker struct {
	experiment.Tracker
	mode experiment.Mode
}

// Register registers a new Tracker with a Mode, to track rollouts of
// that Mode only.
//
// Note: the underlying concrete type of the registered Tracker is
// lost when registering a Mode with a Tracker.
func Register(t experiment.Tracker, mode experiment.Mode) experiment.Tracker {
	return &registeredTracker{t, mode}
}

// Track calls Track() on the embedded Tracker if the rollout is of the
// registered Mode
func (r *registeredTracker) Track(s *experiment.RolloutStats) {
	if s.Mode == r.mode {
		r.Tracker.Track(s)
	}
}
