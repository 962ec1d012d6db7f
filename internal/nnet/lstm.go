package nnet

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Output layer activations.
const (
	ActivationSigmoid = "sigmoid"
	ActivationSoftmax = "softmax"
)

// LSTMLayer holds the immutable weights of one recurrent layer. Gate
// matrices are stored row-major, hidden x input for the input weights and
// hidden x hidden for the recurrent weights. Gate order throughout is
// input, forget, output, candidate.
type LSTMLayer struct {
	InputDim  int
	HiddenDim int

	Wi, Wf, Wo, Wg [][]float64
	Ri, Rf, Ro, Rg [][]float64
	Bi, Bf, Bo, Bg []float64
}

// DenseLayer is the affine output layer with its element-wise activation.
type DenseLayer struct {
	InputDim   int
	OutputDim  int
	W          [][]float64 // output x input
	B          []float64
	Activation string
}

// Network is the full recurrent classifier: a stack of LSTM layers followed
// by one dense output layer. Weights are loaded once and never mutated.
type Network struct {
	Layers []*LSTMLayer
	Output *DenseLayer
}

// State carries the per-layer hidden and cell vectors of one utterance.
// It is owned exclusively by the classifier stage, zero-initialized at
// stream start and carried forward across every frame until the stream
// ends.
type State struct {
	h [][]float64
	c [][]float64
}

// InputDim returns the feature dimension the network consumes.
func (n *Network) InputDim() int { return n.Layers[0].InputDim }

// OutputDim returns the activation vector length the network emits.
func (n *Network) OutputDim() int { return n.Output.OutputDim }

// Validate checks that layer dimensions chain correctly and that every
// weight matrix matches its declared shape.
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("%w: network has no recurrent layers", pipeline.ErrConfig)
	}
	if n.Output == nil {
		return fmt.Errorf("%w: network has no output layer", pipeline.ErrConfig)
	}
	prev := n.Layers[0].InputDim
	for i, l := range n.Layers {
		if l.InputDim != prev {
			return fmt.Errorf("%w: layer %d input dimension %d does not match previous output %d",
				pipeline.ErrConfig, i, l.InputDim, prev)
		}
		for name, m := range map[string][][]float64{"Wi": l.Wi, "Wf": l.Wf, "Wo": l.Wo, "Wg": l.Wg} {
			if err := checkShape(name, m, l.HiddenDim, l.InputDim); err != nil {
				return fmt.Errorf("%w: layer %d: %v", pipeline.ErrConfig, i, err)
			}
		}
		for name, m := range map[string][][]float64{"Ri": l.Ri, "Rf": l.Rf, "Ro": l.Ro, "Rg": l.Rg} {
			if err := checkShape(name, m, l.HiddenDim, l.HiddenDim); err != nil {
				return fmt.Errorf("%w: layer %d: %v", pipeline.ErrConfig, i, err)
			}
		}
		for name, v := range map[string][]float64{"bi": l.Bi, "bf": l.Bf, "bo": l.Bo, "bg": l.Bg} {
			if len(v) != l.HiddenDim {
				return fmt.Errorf("%w: layer %d: bias %s has length %d, want %d",
					pipeline.ErrConfig, i, name, len(v), l.HiddenDim)
			}
		}
		prev = l.HiddenDim
	}
	if n.Output.InputDim != prev {
		return fmt.Errorf("%w: output layer input dimension %d does not match last hidden dimension %d",
			pipeline.ErrConfig, n.Output.InputDim, prev)
	}
	if err := checkShape("W", n.Output.W, n.Output.OutputDim, n.Output.InputDim); err != nil {
		return fmt.Errorf("%w: output layer: %v", pipeline.ErrConfig, err)
	}
	if len(n.Output.B) != n.Output.OutputDim {
		return fmt.Errorf("%w: output layer bias has length %d, want %d",
			pipeline.ErrConfig, len(n.Output.B), n.Output.OutputDim)
	}
	switch n.Output.Activation {
	case ActivationSigmoid, ActivationSoftmax:
	default:
		return fmt.Errorf("%w: unsupported output activation %q", pipeline.ErrConfig, n.Output.Activation)
	}
	return nil
}

func checkShape(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("matrix %s has %d rows, want %d", name, len(m), rows)
	}
	for r, row := range m {
		if len(row) != cols {
			return fmt.Errorf("matrix %s row %d has %d columns, want %d", name, r, len(row), cols)
		}
	}
	return nil
}

// NewState allocates zeroed hidden and cell vectors for every layer.
func (n *Network) NewState() *State {
	st := &State{
		h: make([][]float64, len(n.Layers)),
		c: make([][]float64, len(n.Layers)),
	}
	for i, l := range n.Layers {
		st.h[i] = make([]float64, l.HiddenDim)
		st.c[i] = make([]float64, l.HiddenDim)
	}
	return st
}

// Forward runs one frame through every layer, mutating the state in place,
// and returns a freshly allocated activation vector. Accumulation order is
// fixed, so identical inputs and weights reproduce bit-identical outputs.
func (n *Network) Forward(x []float64, st *State) ([]float64, error) {
	if len(x) != n.InputDim() {
		return nil, fmt.Errorf("%w: input dimension %d does not match network input %d",
			pipeline.ErrStreamState, len(x), n.InputDim())
	}
	in := x
	for li, l := range n.Layers {
		in = l.step(in, st.h[li], st.c[li])
	}
	out := make([]float64, n.Output.OutputDim)
	for o := range out {
		acc := n.Output.B[o]
		row := n.Output.W[o]
		for j, v := range in {
			acc += row[j] * v
		}
		out[o] = acc
	}
	switch n.Output.Activation {
	case ActivationSigmoid:
		for i, v := range out {
			out[i] = sigmoid(v)
		}
	case ActivationSoftmax:
		softmax(out)
	}
	return out, nil
}

// step performs one LSTM cell update, overwriting h and c, and returns h.
func (l *LSTMLayer) step(x, h, c []float64) []float64 {
	hPrev := make([]float64, len(h))
	copy(hPrev, h)
	for u := 0; u < l.HiddenDim; u++ {
		i := sigmoid(affine(l.Wi[u], l.Ri[u], l.Bi[u], x, hPrev))
		f := sigmoid(affine(l.Wf[u], l.Rf[u], l.Bf[u], x, hPrev))
		o := sigmoid(affine(l.Wo[u], l.Ro[u], l.Bo[u], x, hPrev))
		g := math.Tanh(affine(l.Wg[u], l.Rg[u], l.Bg[u], x, hPrev))
		c[u] = f*c[u] + i*g
		h[u] = o * math.Tanh(c[u])
	}
	return h
}

// affine computes w.x + r.h + b with a fixed accumulation order.
func affine(w, r []float64, b float64, x, h []float64) float64 {
	acc := b
	for j, v := range x {
		acc += w[j] * v
	}
	for j, v := range h {
		acc += r[j] * v
	}
	return acc
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func softmax(v []float64) {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	for i, x := range v {
		v[i] = math.Exp(x - max)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}
