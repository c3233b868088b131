// Package network implements feed forward neural networks whose
// forward pass is computed with a Gorgonia tape machine
package network

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP implements a multi-layered perceptron over a fixed batch size.
// Weights are only ever changed through SetWeights, so the same MLP
// can serve as a frozen policy or as the mean of a trainable policy
// whose weights are managed elsewhere.
type MLP struct {
	g      *G.ExprGraph
	vm     G.VM
	input  *G.Node
	layers []fcLayer

	features int
	outputs  int
	batch    int

	// Data needed for gobbing
	hiddenSizes []int
	activations []*Activation

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new MLP which maps batches of batch
// rows of features inputs to outputs values each.
//
// The MLP has len(hiddenSizes) hidden layers, where hidden layer i has
// hiddenSizes[i] units followed by activations[i]. A final linear layer
// produces the outputs. Every layer has a bias unit. Weights are
// initialized with Glorot uniform initialization sampled from src and
// biases are initialized to zero.
func NewMLP(features, batch, outputs int, hiddenSizes []int,
	activations []*Activation, src rand.Source) (*MLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmlp: invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if features <= 0 || batch <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newmlp: sizes must be positive, have "+
			"(features=%v, batch=%v, outputs=%v)", features, batch, outputs)
	}

	net, err := newMLP(features, batch, outputs, hiddenSizes, activations)
	if err != nil {
		return nil, err
	}

	weights := net.Weights()
	for i := range net.layers {
		in, out := net.layerShape(i)
		limit := math.Sqrt(6.0 / float64(in+out))
		uniform := distuv.Uniform{Min: -limit, Max: limit, Src: src}

		w := weights[2*i]
		for j := range w {
			w[j] = uniform.Rand()
		}
	}
	if err := net.SetWeights(weights); err != nil {
		return nil, fmt.Errorf("newmlp: could not initialize weights: %v", err)
	}

	return net, nil
}

// newMLP builds the computational graph of an MLP with all weights
// set to zero
func newMLP(features, batch, outputs int, hiddenSizes []int,
	activations []*Activation) (*MLP, error) {
	net := &MLP{}
	if err := net.build(features, batch, outputs, hiddenSizes,
		activations); err != nil {
		return nil, err
	}
	return net, nil
}

// build constructs the graph and VM of the MLP in place. The VM writes
// the prediction into m.predVal, so an MLP must never be copied by
// value after it is built.
func (m *MLP) build(features, batch, outputs int, hiddenSizes []int,
	activations []*Activation) error {
	g := G.NewGraph()

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	sizes := append(append([]int{features}, hiddenSizes...), outputs)
	acts := append(append([]*Activation(nil), activations...), Identity())

	layers := make([]fcLayer, len(sizes)-1)
	for i := range layers {
		layers[i] = fcLayer{
			weights: G.NewMatrix(g, tensor.Float64,
				G.WithShape(sizes[i], sizes[i+1]),
				G.WithName(fmt.Sprintf("L%dW", i)),
				G.WithInit(G.Zeroes())),
			bias: G.NewMatrix(g, tensor.Float64,
				G.WithShape(1, sizes[i+1]),
				G.WithName(fmt.Sprintf("L%dB", i)),
				G.WithInit(G.Zeroes())),
			act: acts[i],
		}
	}

	m.g = g
	m.input = input
	m.layers = layers
	m.features = features
	m.outputs = outputs
	m.batch = batch
	m.hiddenSizes = append([]int(nil), hiddenSizes...)
	m.activations = append([]*Activation(nil), activations...)
	m.predVal = nil

	if _, err := m.fwd(input); err != nil {
		return fmt.Errorf("newmlp: could not compute forward pass: %v", err)
	}
	m.vm = G.NewTapeMachine(g)

	return nil
}

// fwd performs the forward pass of the MLP on the input node
func (m *MLP) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i := range m.layers {
		if pred, err = m.layers[i].fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// layerShape returns the number of inputs and outputs of layer i
func (m *MLP) layerShape(i int) (in, out int) {
	shape := m.layers[i].weights.Shape()
	return shape[0], shape[1]
}

// BatchSize returns the batch size of inputs to the MLP
func (m *MLP) BatchSize() int { return m.batch }

// Features returns the number of features in a single input row
func (m *MLP) Features() int { return m.features }

// Outputs returns the number of outputs per input row
func (m *MLP) Outputs() int { return m.outputs }

// OutputDim is an alias of Outputs so that an MLP can serve as a
// state encoder
func (m *MLP) OutputDim() int { return m.outputs }

// Forward computes the output of the MLP on a (BatchSize() x
// Features()) input
func (m *MLP) Forward(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	if r != m.batch || c != m.features {
		return nil, fmt.Errorf("forward: illegal input shape\n\twant(%v, %v)"+
			"\n\thave(%v, %v)", m.batch, m.features, r, c)
	}

	backing := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(backing[i*c:(i+1)*c], x.RawRowView(i))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(backing),
		tensor.WithShape(m.batch, m.features),
	)
	if err := G.Let(m.input, inputTensor); err != nil {
		return nil, fmt.Errorf("forward: could not set input: %v", err)
	}

	if err := m.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: could not run vm: %v", err)
	}
	defer m.vm.Reset()

	out := make([]float64, m.batch*m.outputs)
	copy(out, m.predVal.Data().([]float64))
	return mat.NewDense(m.batch, m.outputs, out), nil
}

// Learnables returns the learnable nodes of the MLP, ordered as the
// weights then bias of each layer in turn
func (m *MLP) Learnables() G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(m.layers))
	for i := range m.layers {
		learnables = append(learnables, m.layers[i].learnables()...)
	}
	return learnables
}

// Weights returns a copy of the values of each learnable node, in the
// order of Learnables
func (m *MLP) Weights() [][]float64 {
	learnables := m.Learnables()
	weights := make([][]float64, len(learnables))
	for i, node := range learnables {
		data := node.Value().Data().([]float64)
		weights[i] = append([]float64(nil), data...)
	}
	return weights
}

// SetWeights sets the value of each learnable node, in the order of
// Learnables
func (m *MLP) SetWeights(weights [][]float64) error {
	learnables := m.Learnables()
	if len(weights) != len(learnables) {
		return fmt.Errorf("setweights: illegal number of weight tensors"+
			"\n\twant(%v)\n\thave(%v)", len(learnables), len(weights))
	}

	for i, node := range learnables {
		shape := node.Shape()
		if len(weights[i]) != shape.TotalSize() {
			return fmt.Errorf("setweights: illegal size of tensor %v (%v)"+
				"\n\twant(%v)\n\thave(%v)", i, node.Name(), shape.TotalSize(),
				len(weights[i]))
		}
		t := tensor.New(
			tensor.WithBacking(append([]float64(nil), weights[i]...)),
			tensor.WithShape(shape.Clone()...),
		)
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("setweights: could not set %v: %v", node.Name(),
				err)
		}
	}
	return nil
}

// CloneWithBatch returns a copy of the MLP with the same weights which
// takes inputs with a new batch size
func (m *MLP) CloneWithBatch(batch int) (*MLP, error) {
	clone, err := newMLP(m.features, batch, m.outputs, m.hiddenSizes,
		m.activations)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}
	if err := clone.SetWeights(m.Weights()); err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}
	return clone, nil
}

// Close releases the resources of the MLP's VM
func (m *MLP) Close() error {
	return m.vm.Close()
}

// mlpGob is the serialized form of an MLP
type mlpGob struct {
	Features    int
	Outputs     int
	Batch       int
	HiddenSizes []int
	Activations []*Activation
	Weights     [][]float64
}

// GobEncode implements the gob.GobEncoder interface
func (m *MLP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	err := enc.Encode(mlpGob{
		Features:    m.features,
		Outputs:     m.outputs,
		Batch:       m.batch,
		HiddenSizes: m.hiddenSizes,
		Activations: m.activations,
		Weights:     m.Weights(),
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode mlp: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (m *MLP) GobDecode(in []byte) error {
	var decoded mlpGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode mlp: %v", err)
	}

	err := m.build(decoded.Features, decoded.Batch, decoded.Outputs,
		decoded.HiddenSizes, decoded.Activations)
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct mlp: %v", err)
	}
	if err := m.SetWeights(decoded.Weights); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	return nil
}
