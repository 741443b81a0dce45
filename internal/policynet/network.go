// Package policynet is the concrete Maia-family policy network: a gorgonia
// computation graph that takes the 112x8x8 LC0 input tensor and produces a
// flat policy vector of length moveindex.Size.
//
// The original Maia artifact is an ONNX file; no Go ONNX runtime exists in
// this codebase's dependency surface, so the artifact format is redefined
// as a gorgonia/gob weight checkpoint (see DESIGN.md's Open Question
// resolution). This package owns the graph, the forward pass (following the
// shape of the teacher's own ChessNet) and FetchArtifact's 404/content-type/
// size validation; the fetch timeout and the SIMD-retry-shaped fallback are
// applied by its callers, internal/worker and internal/engine's InProcess.
package policynet

import (
	"encoding/gob"
	"fmt"
	"io"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/maia-engine/predictor/internal/encoder"
	"github.com/maia-engine/predictor/internal/moveindex"
)

const (
	inputChannels = encoder.Planes // 112
	boardSize     = encoder.BoardSize
	conv1Out      = 32
	conv2Out      = 64
	hiddenSize    = 256
	outputSize    = moveindex.Size
)

// Network is a loaded or freshly-initialized Maia policy network.
type Network struct {
	g      *gorgonia.ExprGraph
	input  *gorgonia.Node
	output *gorgonia.Node
	vm     gorgonia.VM

	conv1W, conv1B *gorgonia.Node
	conv2W, conv2B *gorgonia.Node
	fc1W, fc1B     *gorgonia.Node
	fc2W, fc2B     *gorgonia.Node

	simd bool
}

// New builds the policy network graph with freshly initialized weights.
// simd tags which backend variant this instance represents; see
// internal/worker for the retry-without-SIMD lifecycle rule that flips it.
func New(simd bool) (*Network, error) {
	g := gorgonia.NewGraph()

	input := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(1, inputChannels, boardSize, boardSize),
		gorgonia.WithName("input"))

	conv1W := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(conv1Out, inputChannels, 3, 3),
		gorgonia.WithName("conv1_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	conv1B := gorgonia.NewTensor(g, tensor.Float32, 1,
		gorgonia.WithShape(conv1Out), gorgonia.WithName("conv1_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	conv2W := gorgonia.NewTensor(g, tensor.Float32, 4,
		gorgonia.WithShape(conv2Out, conv1Out, 3, 3),
		gorgonia.WithName("conv2_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	conv2B := gorgonia.NewTensor(g, tensor.Float32, 1,
		gorgonia.WithShape(conv2Out), gorgonia.WithName("conv2_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	conv1, err := gorgonia.Conv2d(input, conv1W, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, fmt.Errorf("policynet: conv1: %w", err)
	}
	conv1 = gorgonia.Must(gorgonia.BroadcastAdd(conv1, conv1B, nil, []byte{0, 2, 3}))
	conv1 = gorgonia.Must(gorgonia.Rectify(conv1))
	pool1, err := gorgonia.MaxPool2D(conv1, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return nil, fmt.Errorf("policynet: pool1: %w", err)
	}

	conv2, err := gorgonia.Conv2d(pool1, conv2W, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, fmt.Errorf("policynet: conv2: %w", err)
	}
	conv2 = gorgonia.Must(gorgonia.BroadcastAdd(conv2, conv2B, nil, []byte{0, 2, 3}))
	conv2 = gorgonia.Must(gorgonia.Rectify(conv2))
	pool2, err := gorgonia.MaxPool2D(conv2, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return nil, fmt.Errorf("policynet: pool2: %w", err)
	}

	flat := gorgonia.Must(gorgonia.Reshape(pool2, tensor.Shape{1, -1}))
	flatSize := conv2Out * (boardSize / 4) * (boardSize / 4)

	fc1W := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(flatSize, hiddenSize),
		gorgonia.WithName("fc1_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc1B := gorgonia.NewVector(g, tensor.Float32, gorgonia.WithShape(hiddenSize),
		gorgonia.WithName("fc1_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	fc1 := gorgonia.Must(gorgonia.Mul(flat, fc1W))
	fc1 = gorgonia.Must(gorgonia.BroadcastAdd(fc1, fc1B, nil, []byte{0}))
	fc1 = gorgonia.Must(gorgonia.Rectify(fc1))

	fc2W := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(hiddenSize, outputSize),
		gorgonia.WithName("fc2_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc2B := gorgonia.NewVector(g, tensor.Float32, gorgonia.WithShape(outputSize),
		gorgonia.WithName("fc2_b"), gorgonia.WithInit(gorgonia.Zeroes()))
	fc2 := gorgonia.Must(gorgonia.Mul(fc1, fc2W))
	fc2 = gorgonia.Must(gorgonia.BroadcastAdd(fc2, fc2B, nil, []byte{0}))

	output := gorgonia.Must(gorgonia.SoftMax(fc2))

	vm := gorgonia.NewTapeMachine(g)

	return &Network{
		g:      g,
		input:  input,
		output: output,
		vm:     vm,
		conv1W: conv1W, conv1B: conv1B,
		conv2W: conv2W, conv2B: conv2B,
		fc1W: fc1W, fc1B: fc1B,
		fc2W: fc2W, fc2B: fc2B,
		simd: simd,
	}, nil
}

// SIMD reports which backend variant built this network.
func (n *Network) SIMD() bool { return n.simd }

func (n *Network) learnables() []*gorgonia.Node {
	return []*gorgonia.Node{
		n.conv1W, n.conv1B,
		n.conv2W, n.conv2B,
		n.fc1W, n.fc1B,
		n.fc2W, n.fc2B,
	}
}

// LoadCheckpoint decodes a gob-encoded weight checkpoint (shape, data per
// learnable, in the same order as learnables()) and installs it onto the
// graph. A malformed checkpoint is reported as a parse error so the caller
// can apply the SIMD-fallback retry rule (spec §4.4 step 4).
func (n *Network) LoadCheckpoint(r io.Reader) error {
	dec := gob.NewDecoder(r)
	for _, w := range n.learnables() {
		var shape tensor.Shape
		var data []float32
		if err := dec.Decode(&shape); err != nil {
			return fmt.Errorf("policynet: decode checkpoint shape: %w", err)
		}
		if err := dec.Decode(&data); err != nil {
			return fmt.Errorf("policynet: decode checkpoint data: %w", err)
		}
		t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		if err := gorgonia.Let(w, t); err != nil {
			return fmt.Errorf("policynet: install checkpoint weight: %w", err)
		}
	}
	return nil
}

// SaveCheckpoint encodes the current weights to w, in the layout
// LoadCheckpoint expects.
func (n *Network) SaveCheckpoint(w io.Writer) error {
	enc := gob.NewEncoder(w)
	for _, node := range n.learnables() {
		val := node.Value()
		if val == nil {
			return fmt.Errorf("policynet: weight %q has no value", node.Name())
		}
		data, ok := val.Data().([]float32)
		if !ok {
			return fmt.Errorf("policynet: weight %q has unexpected backing type", node.Name())
		}
		if err := enc.Encode(val.Shape()); err != nil {
			return fmt.Errorf("policynet: encode %q shape: %w", node.Name(), err)
		}
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("policynet: encode %q data: %w", node.Name(), err)
		}
	}
	return nil
}

// Predict runs the forward pass over a flattened 112x8x8 tensor (length
// encoder.TensorLen) and returns the policy vector as float64, the
// precision internal/decoder works in.
func (n *Network) Predict(flatInput []float32) ([]float64, error) {
	if len(flatInput) != encoder.TensorLen {
		return nil, fmt.Errorf("policynet: input length = %d, want %d", len(flatInput), encoder.TensorLen)
	}

	inputTensor := tensor.New(
		tensor.WithShape(1, inputChannels, boardSize, boardSize),
		tensor.WithBacking(flatInput),
	)
	if err := gorgonia.Let(n.input, inputTensor); err != nil {
		return nil, fmt.Errorf("policynet: set input: %w", err)
	}

	if err := n.vm.RunAll(); err != nil {
		n.vm.Reset()
		return nil, fmt.Errorf("policynet: run inference: %w", err)
	}
	defer n.vm.Reset()

	outputValue := n.output.Value()
	if outputValue == nil {
		return nil, fmt.Errorf("policynet: output has no value")
	}
	raw, ok := outputValue.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("policynet: unexpected output backing type")
	}

	policy := make([]float64, len(raw))
	for i, v := range raw {
		policy[i] = float64(v)
	}
	return policy, nil
}

// Close releases the VM's resources.
func (n *Network) Close() error {
	return n.vm.Close()
}
