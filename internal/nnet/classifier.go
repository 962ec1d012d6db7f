package nnet

import (
	"fmt"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// RecurrentClassifier is the pipeline stage running the network over the
// normalized feature stream. Hidden and cell state persist across every
// frame of the utterance; Reset is the only way to clear them.
type RecurrentClassifier struct {
	in    *pipeline.Cursor
	out   *pipeline.Stream
	net   *Network
	state *State
	done  bool
}

// NewRecurrentClassifier creates the classifier stage. The feature
// dimension must match the network input exactly.
func NewRecurrentClassifier(in *pipeline.Stream, out *pipeline.Stream, net *Network, featureDim int) (*RecurrentClassifier, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if net.InputDim() != featureDim {
		return nil, fmt.Errorf("%w: classifier input dimension %d does not match feature dimension %d",
			pipeline.ErrConfig, net.InputDim(), featureDim)
	}
	return &RecurrentClassifier{in: in.NewCursor(0), out: out, net: net, state: net.NewState()}, nil
}

// Name implements pipeline.Stage.
func (r *RecurrentClassifier) Name() string { return "classifier" }

// Done implements pipeline.Stage.
func (r *RecurrentClassifier) Done() bool { return r.done }

// Reset implements pipeline.Stage, zeroing all hidden and cell vectors.
func (r *RecurrentClassifier) Reset() {
	r.state = r.net.NewState()
	r.done = false
}

// Step implements pipeline.Stage.
func (r *RecurrentClassifier) Step() (int, error) {
	produced := 0
	for r.in.Pending() > 0 && !r.out.Full() {
		f, err := r.in.Next()
		if err != nil {
			return produced, err
		}
		act, err := r.net.Forward(f.Data, r.state)
		if err != nil {
			return produced, err
		}
		if err := r.out.Write(pipeline.Frame{Time: f.Time, Data: act}); err != nil {
			return produced, err
		}
		produced++
	}
	if r.in.AtEnd() && !r.done {
		r.out.Close()
		r.done = true
	}
	return produced, nil
}
