package ppo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/network"
)

// Critic estimates state values with a single output network
type Critic struct {
	net *network.MLP
}

// NewCritic returns a new Critic over the argument network
func NewCritic(net *network.MLP) (*Critic, error) {
	if net.Outputs() != 1 {
		return nil, fmt.Errorf("newcritic: value network must have a single "+
			"output, have %v", net.Outputs())
	}
	return &Critic{net}, nil
}

// Network returns the value network
func (c *Critic) Network() *network.MLP {
	return c.net
}

// Value returns the value estimate of each row of obs
func (c *Critic) Value(obs *mat.Dense) ([]float64, error) {
	v, err := c.net.Forward(obs)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	r, _ := v.Dims()
	values := make([]float64, r)
	mat.Col(values, 0, v)
	return values, nil
}
