package planar

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CommandFollower is a proportional velocity controller that tracks
// velocity commands on the robots of an Env. It consumes tracking
// observations [command | proprio] and can stand in for a learned
// command tracking policy when tracking observations are not
// normalized.
type CommandFollower struct {
	gain float64
}

// NewCommandFollower returns a new CommandFollower with the argument
// proportional gain
func NewCommandFollower(gain float64) *CommandFollower {
	return &CommandFollower{gain}
}

// Forward returns the acceleration that drives each robot's body frame
// velocity towards its command
func (c *CommandFollower) Forward(obs *mat.Dense) (*mat.Dense, error) {
	rows, cols := obs.Dims()
	if cols != ActionDim+ProprioDim {
		return nil, fmt.Errorf("forward: illegal observation width"+
			"\n\twant(%v)\n\thave(%v)", ActionDim+ProprioDim, cols)
	}

	// Body frame velocity is at proprio columns [3, 6)
	const velocity = ActionDim + 3

	actions := mat.NewDense(rows, ActionDim, nil)
	for i := 0; i < rows; i++ {
		row := obs.RawRowView(i)
		for k := 0; k < ActionDim; k++ {
			actions.Set(i, k, c.gain*(row[k]-row[velocity+k]))
		}
	}
	return actions, nil
}
