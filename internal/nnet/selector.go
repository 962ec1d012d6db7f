package nnet

import (
	"fmt"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// DecisionSelector extracts one configured dimension of the classifier
// activation vector and thresholds it into the binary voice flag. Output
// frames carry a single value, 0 or 1, in input frame order.
type DecisionSelector struct {
	in        *pipeline.Cursor
	out       *pipeline.Stream
	index     int
	threshold float64
	dim       int
	done      bool
}

// NewDecisionSelector creates the selector for activation vectors of the
// given dimension.
func NewDecisionSelector(in *pipeline.Stream, out *pipeline.Stream, dim, index int, threshold float64) (*DecisionSelector, error) {
	if index < 0 || index >= dim {
		return nil, fmt.Errorf("%w: decision output index %d outside activation vector of length %d",
			pipeline.ErrConfig, index, dim)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: decision threshold must be in [0, 1], got %g",
			pipeline.ErrConfig, threshold)
	}
	return &DecisionSelector{in: in.NewCursor(0), out: out, index: index, threshold: threshold, dim: dim}, nil
}

// Name implements pipeline.Stage.
func (d *DecisionSelector) Name() string { return "decision" }

// Done implements pipeline.Stage.
func (d *DecisionSelector) Done() bool { return d.done }

// Reset implements pipeline.Stage.
func (d *DecisionSelector) Reset() { d.done = false }

// Step implements pipeline.Stage.
func (d *DecisionSelector) Step() (int, error) {
	produced := 0
	for d.in.Pending() > 0 && !d.out.Full() {
		f, err := d.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != d.dim {
			return produced, fmt.Errorf("%w: activation vector has length %d, selector expects %d",
				pipeline.ErrStreamState, len(f.Data), d.dim)
		}
		decision := 0.0
		if f.Data[d.index] >= d.threshold {
			decision = 1
		}
		if err := d.out.Write(pipeline.Frame{Time: f.Time, Data: []float64{decision}}); err != nil {
			return produced, err
		}
		produced++
	}
	if d.in.AtEnd() && !d.done {
		d.out.Close()
		d.done = true
	}
	return produced, nil
}
