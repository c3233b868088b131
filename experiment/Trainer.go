package experiment

import (
	"fmt"
	"io"
	"log"

	"github.com/samuelfneumann/lidarnav/experiment/checkpointer"
)

// Tracker keeps track of rollout statistics and saves them after the
// experiment has finished
type Tracker interface {
	Track(s *RolloutStats)
	Save() error
}

// Hook is called after each evaluation rollout with the update
// iteration that the evaluation precedes
type Hook func(iteration int, s *RolloutStats) error

// Reporter writes the statistics block of each rollout to a logger
type Reporter struct {
	logger *log.Logger
}

// NewReporter returns a Reporter which writes to l. A nil logger
// discards all reports.
func NewReporter(l *log.Logger) *Reporter {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &Reporter{l}
}

// Report writes the statistics of a single rollout
func (r *Reporter) Report(s *RolloutStats, iteration int) error {
	return s.Report(r.logger.Writer(), iteration)
}

// Trainer alternates training rollouts, each of which ends in an update
// of the planner, with periodic evaluation rollouts. Before every
// evaluation, the Trainer checkpoints the planner.
type Trainer struct {
	driver     *Driver
	maxUpdates int
	evalEvery  int

	checkpointer checkpointer.Checkpointer
	hooks        []Hook
	trackers     []Tracker
	reporter     *Reporter
}

// TrainerOption configures optional collaborators of a Trainer
type TrainerOption func(*Trainer)

// WithCheckpointer sets the Checkpointer called before each evaluation
func WithCheckpointer(c checkpointer.Checkpointer) TrainerOption {
	return func(t *Trainer) { t.checkpointer = c }
}

// WithHooks adds hooks that run after each evaluation
func WithHooks(hooks ...Hook) TrainerOption {
	return func(t *Trainer) { t.hooks = append(t.hooks, hooks...) }
}

// WithTrackers adds Trackers which are handed every rollout
func WithTrackers(trackers ...Tracker) TrainerOption {
	return func(t *Trainer) { t.trackers = append(t.trackers, trackers...) }
}

// WithReporter sets the Reporter of rollout statistics
func WithReporter(r *Reporter) TrainerOption {
	return func(t *Trainer) { t.reporter = r }
}

// NewTrainer returns a new Trainer that runs maxUpdates training
// rollouts, evaluating before every evalEvery'th update. If evalEvery
// is 0, no evaluation is performed.
func NewTrainer(d *Driver, maxUpdates, evalEvery int,
	opts ...TrainerOption) (*Trainer, error) {
	if maxUpdates <= 0 {
		return nil, fmt.Errorf("newtrainer: %w", configErrorf("max_n_update",
			"must be positive, have %v", maxUpdates))
	}
	if evalEvery < 0 {
		return nil, fmt.Errorf("newtrainer: %w", configErrorf("eval_every_n",
			"must be non-negative, have %v", evalEvery))
	}
	if d.optimizer == nil {
		return nil, fmt.Errorf("newtrainer: driver has no optimizer")
	}

	t := &Trainer{
		driver:     d,
		maxUpdates: maxUpdates,
		evalEvery:  evalEvery,
		reporter:   NewReporter(nil),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register registers a Tracker with the Trainer so that rollout
// statistics can be tracked and saved
func (t *Trainer) Register(tr Tracker) {
	t.trackers = append(t.trackers, tr)
}

// Run runs the entire experiment for all updates
func (t *Trainer) Run() error {
	for update := 0; update < t.maxUpdates; update++ {
		if t.evalEvery > 0 && update%t.evalEvery == 0 {
			if err := t.Evaluate(update); err != nil {
				return fmt.Errorf("run: %w", err)
			}
		}

		stats, err := t.driver.Run(Train)
		if err != nil {
			return fmt.Errorf("run: update %v: %w", update, err)
		}
		if err := t.reporter.Report(stats, update); err != nil {
			return fmt.Errorf("run: update %v: %w", update, err)
		}
		t.track(stats)
	}
	return nil
}

// Evaluate checkpoints the planner at the argument iteration, runs an
// evaluation rollout and calls each hook with its statistics
func (t *Trainer) Evaluate(iteration int) error {
	if t.checkpointer != nil {
		if err := t.checkpointer.Checkpoint(iteration); err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
	}

	stats, err := t.driver.Run(Evaluate)
	if err != nil {
		return fmt.Errorf("evaluate: iteration %v: %w", iteration, err)
	}
	if err := t.reporter.Report(stats, iteration); err != nil {
		return fmt.Errorf("evaluate: iteration %v: %w", iteration, err)
	}
	t.track(stats)

	for _, hook := range t.hooks {
		if err := hook(iteration, stats); err != nil {
			return fmt.Errorf("evaluate: iteration %v: %w", iteration, err)
		}
	}
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (t *Trainer) Save() error {
	for _, tr := range t.trackers {
		if err := tr.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track caches the statistics of a rollout in each Tracker
func (t *Trainer) track(s *RolloutStats) {
	for _, tr := range t.trackers {
		tr.Track(s)
	}
}
