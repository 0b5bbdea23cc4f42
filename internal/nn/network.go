package nn

import (
	"fmt"
	"math/rand"
)

// Topology lists layer widths from input to output. A population shares one
// topology for its whole lifetime.
type Topology []int

func (t Topology) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("topology requires at least input and output layers, got %d", len(t))
	}
	for i, width := range t {
		if width <= 0 {
			return fmt.Errorf("topology layer %d width must be > 0, got %d", i, width)
		}
	}
	return nil
}

func (t Topology) In() int {
	return t[0]
}

func (t Topology) Out() int {
	return t[len(t)-1]
}

func (t Topology) Clone() Topology {
	out := make(Topology, len(t))
	copy(out, t)
	return out
}

// Network is a fixed-topology feedforward policy. Parameters are frozen at
// construction; MutatedClone is the only way to derive new ones, which keeps
// concurrent evaluation free of locks.
type Network struct {
	topology Topology
	weights  [][][]float64
	biases   [][]float64

	activation     ActivationFunc
	activationName string
}

// NewNetwork draws every weight from the standard normal distribution and
// zeroes every bias.
func NewNetwork(topology Topology, rng *rand.Rand) (*Network, error) {
	return NewNetworkWithActivation(topology, DefaultActivation, rng)
}

func NewNetworkWithActivation(topology Topology, activation string, rng *rand.Rand) (*Network, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	fn, err := GetActivation(activation)
	if err != nil {
		return nil, err
	}

	layers := len(topology) - 1
	weights := make([][][]float64, layers)
	biases := make([][]float64, layers)
	for l := 0; l < layers; l++ {
		in, out := topology[l], topology[l+1]
		weights[l] = make([][]float64, in)
		for i := 0; i < in; i++ {
			row := make([]float64, out)
			for j := range row {
				row[j] = rng.NormFloat64()
			}
			weights[l][i] = row
		}
		biases[l] = make([]float64, out)
	}

	return &Network{
		topology:       topology.Clone(),
		weights:        weights,
		biases:         biases,
		activation:     fn,
		activationName: activation,
	}, nil
}

// NewNetworkFromParameters rebuilds a network from explicit parameters,
// validating every shape against the topology.
func NewNetworkFromParameters(topology Topology, activation string, weights [][][]float64, biases [][]float64) (*Network, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	fn, err := GetActivation(activation)
	if err != nil {
		return nil, err
	}

	layers := len(topology) - 1
	if len(weights) != layers {
		return nil, fmt.Errorf("weight layer count mismatch: got=%d want=%d", len(weights), layers)
	}
	if len(biases) != layers {
		return nil, fmt.Errorf("bias layer count mismatch: got=%d want=%d", len(biases), layers)
	}

	copiedWeights := make([][][]float64, layers)
	copiedBiases := make([][]float64, layers)
	for l := 0; l < layers; l++ {
		in, out := topology[l], topology[l+1]
		if len(weights[l]) != in {
			return nil, fmt.Errorf("weight matrix %d row count mismatch: got=%d want=%d", l, len(weights[l]), in)
		}
		copiedWeights[l] = make([][]float64, in)
		for i := 0; i < in; i++ {
			if len(weights[l][i]) != out {
				return nil, fmt.Errorf("weight matrix %d column count mismatch at row %d: got=%d want=%d", l, i, len(weights[l][i]), out)
			}
			copiedWeights[l][i] = append([]float64(nil), weights[l][i]...)
		}
		if len(biases[l]) != out {
			return nil, fmt.Errorf("bias vector %d length mismatch: got=%d want=%d", l, len(biases[l]), out)
		}
		copiedBiases[l] = append([]float64(nil), biases[l]...)
	}

	return &Network{
		topology:       topology.Clone(),
		weights:        copiedWeights,
		biases:         copiedBiases,
		activation:     fn,
		activationName: activation,
	}, nil
}

// MutatedClone deep-copies the parameters and perturbs every weight and bias
// with independent N(0, sigma) noise. sigma=0 yields an exact copy. The
// receiver is never touched.
func (n *Network) MutatedClone(sigma float64, rng *rand.Rand) (*Network, error) {
	if sigma < 0 {
		return nil, fmt.Errorf("mutation sigma must be >= 0, got %f", sigma)
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	weights := make([][][]float64, len(n.weights))
	for l := range n.weights {
		weights[l] = make([][]float64, len(n.weights[l]))
		for i := range n.weights[l] {
			row := append([]float64(nil), n.weights[l][i]...)
			if sigma > 0 {
				for j := range row {
					row[j] += rng.NormFloat64() * sigma
				}
			}
			weights[l][i] = row
		}
	}
	biases := make([][]float64, len(n.biases))
	for l := range n.biases {
		row := append([]float64(nil), n.biases[l]...)
		if sigma > 0 {
			for j := range row {
				row[j] += rng.NormFloat64() * sigma
			}
		}
		biases[l] = row
	}

	return &Network{
		topology:       n.topology.Clone(),
		weights:        weights,
		biases:         biases,
		activation:     n.activation,
		activationName: n.activationName,
	}, nil
}

// Act maps an observation to a discrete action index: every weight layer is
// followed by the network activation, the final layer output goes through
// softmax, and the argmax of the distribution is returned.
func (n *Network) Act(observation []float64) (int, error) {
	if len(observation) != n.topology.In() {
		return 0, fmt.Errorf("observation size mismatch: got=%d want=%d", len(observation), n.topology.In())
	}

	x := observation
	for l := range n.weights {
		out := len(n.biases[l])
		next := make([]float64, out)
		for j := 0; j < out; j++ {
			sum := n.biases[l][j]
			for i, value := range x {
				sum += value * n.weights[l][i][j]
			}
			next[j] = n.activation(sum)
		}
		x = next
	}

	distribution, err := Softmax(x)
	if err != nil {
		return 0, err
	}
	return ArgMax(distribution)
}

func (n *Network) Topology() Topology {
	return n.topology.Clone()
}

func (n *Network) ActivationName() string {
	return n.activationName
}

// Weights returns a deep copy of the weight matrices.
func (n *Network) Weights() [][][]float64 {
	out := make([][][]float64, len(n.weights))
	for l := range n.weights {
		out[l] = make([][]float64, len(n.weights[l]))
		for i := range n.weights[l] {
			out[l][i] = append([]float64(nil), n.weights[l][i]...)
		}
	}
	return out
}

// Biases returns a deep copy of the bias vectors.
func (n *Network) Biases() [][]float64 {
	out := make([][]float64, len(n.biases))
	for l := range n.biases {
		out[l] = append([]float64(nil), n.biases[l]...)
	}
	return out
}
