package checkpointer

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/samuelfneumann/lidarnav/agent/ppo"
	"github.com/samuelfneumann/lidarnav/network"
)

// FullPrefix is the filename prefix of full checkpoints
const FullPrefix = "full"

// Full is a checkpoint of the planner and critic of a training run.
// Decoding a Full sets the weights of the networks it was created with,
// so a decoded checkpoint keeps the batch sizes of the running networks.
type Full struct {
	Actor  *ppo.Gaussian
	Critic *ppo.Critic
}

// NewFull returns a new full checkpoint of actor and critic
func NewFull(actor *ppo.Gaussian, critic *ppo.Critic) *Full {
	return &Full{Actor: actor, Critic: critic}
}

type fullGob struct {
	Actor  *network.MLP
	LogStd []float64
	Critic *network.MLP
}

// GobEncode implements the gob.GobEncoder interface
func (f *Full) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(fullGob{
		Actor:  f.Actor.Network(),
		LogStd: f.Actor.LogStd(),
		Critic: f.Critic.Network(),
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode checkpoint: %w",
			err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (f *Full) GobDecode(in []byte) error {
	var decoded fullGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode checkpoint: %w", err)
	}
	defer decoded.Actor.Close()
	defer decoded.Critic.Close()

	if err := f.Actor.Network().SetWeights(decoded.Actor.Weights()); err != nil {
		return fmt.Errorf("gobdecode: actor: %w", err)
	}
	if err := f.Actor.SetLogStd(decoded.LogStd); err != nil {
		return fmt.Errorf("gobdecode: actor: %w", err)
	}
	if err := f.Critic.Network().SetWeights(decoded.Critic.Weights()); err != nil {
		return fmt.Errorf("gobdecode: critic: %w", err)
	}
	return nil
}

// LoadMLP loads a gob encoded network from a file and returns a copy of
// it that takes batches of the argument size
func LoadMLP(filename string, batch int) (*network.MLP, error) {
	net := &network.MLP{}
	if err := Load(filename, net); err != nil {
		return nil, fmt.Errorf("loadmlp: %w", err)
	}
	if net.BatchSize() == batch {
		return net, nil
	}
	defer net.Close()

	clone, err := net.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("loadmlp: %w", err)
	}
	return clone, nil
}
