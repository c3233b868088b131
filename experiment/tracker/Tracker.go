// Package tracker implements Trackers, which track and save statistics
// of the rollouts of a training run
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/lidarnav/experiment"
)

// Func tracks a single value per rollout and gob encodes the tracked
// values as a []float64 when saved
type Func struct {
	filename string
	value    func(*experiment.RolloutStats) float64
	data     []float64
}

// NewFunc returns a new Tracker which tracks the value that f computes
// from each rollout and saves the values to filename
func NewFunc(filename string,
	f func(*experiment.RolloutStats) float64) *Func {
	return &Func{filename: filename, value: f}
}

// NewMeanReward returns a Tracker of the mean rollout reward over
// environments
func NewMeanReward(filename string) *Func {
	return NewFunc(filename, func(s *experiment.RolloutStats) float64 {
		return s.MeanReward
	})
}

// NewDoneRate returns a Tracker of the fraction of command periods that
// ended in a termination
func NewDoneRate(filename string) *Func {
	return NewFunc(filename, func(s *experiment.RolloutStats) float64 {
		return s.DoneRate
	})
}

// Track records the value of a rollout
func (f *Func) Track(s *experiment.RolloutStats) {
	f.data = append(f.data, f.value(s))
}

// Data returns the tracked values
func (f *Func) Data() []float64 {
	return append([]float64(nil), f.data...)
}

// Save saves the tracked values to the Tracker's file
func (f *Func) Save() error {
	file, err := os.Create(f.filename)
	if err != nil {
		return fmt.Errorf("save: could not create data file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(f.data); err != nil {
		return fmt.Errorf("save: could not encode data: %w", err)
	}
	return file.Close()
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loaddata: could not open data file: %w", err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loaddata: could not decode data: %w", err)
	}
	return data, nil
}
