package environment

// StepLimit ends episodes once they reach a fixed number of ticks
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit. A non-positive
// limit never ends an episode.
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End returns whether an episode that has run for steps ticks should
// be ended
func (s StepLimit) End(steps int) bool {
	return s.episodeSteps > 0 && steps >= s.episodeSteps
}
