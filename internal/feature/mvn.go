package feature

import (
	"fmt"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Normalizer applies fixed mean/variance normalization in transform mode:
// output = (input - mean) / std per enabled component. Mean subtraction and
// variance scaling are independently togglable; a disabled component acts as
// identity. Statistics are immutable model parameters; no online estimation
// takes place.
type Normalizer struct {
	in      *pipeline.Cursor
	out     *pipeline.Stream
	stats   *Stats
	useMean bool
	useStd  bool
	done    bool
}

// NewNormalizer creates the MVN stage. The statistics dimension must equal
// the incoming feature dimension exactly; a mismatch is a fatal
// configuration error detected here, before any frame flows.
func NewNormalizer(in *pipeline.Stream, out *pipeline.Stream, stats *Stats, featureDim int, useMean, useStd bool) (*Normalizer, error) {
	if stats == nil {
		return nil, fmt.Errorf("%w: normalizer requires loaded statistics", pipeline.ErrConfig)
	}
	if stats.Dim() != featureDim {
		return nil, fmt.Errorf("%w: normalization stats dimension %d does not match feature dimension %d",
			pipeline.ErrConfig, stats.Dim(), featureDim)
	}
	if len(stats.Std) != stats.Dim() {
		return nil, fmt.Errorf("%w: normalization mean and std dimensions differ (%d vs %d)",
			pipeline.ErrConfig, len(stats.Mean), len(stats.Std))
	}
	return &Normalizer{in: in.NewCursor(0), out: out, stats: stats, useMean: useMean, useStd: useStd}, nil
}

// Name implements pipeline.Stage.
func (n *Normalizer) Name() string { return "normalize" }

// Done implements pipeline.Stage.
func (n *Normalizer) Done() bool { return n.done }

// Reset implements pipeline.Stage.
func (n *Normalizer) Reset() { n.done = false }

// Step implements pipeline.Stage.
func (n *Normalizer) Step() (int, error) {
	produced := 0
	for n.in.Pending() > 0 && !n.out.Full() {
		f, err := n.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != n.stats.Dim() {
			return produced, fmt.Errorf("%w: frame dimension %d does not match stats dimension %d",
				pipeline.ErrStreamState, len(f.Data), n.stats.Dim())
		}
		y := make([]float64, len(f.Data))
		for i, v := range f.Data {
			if n.useMean {
				v -= n.stats.Mean[i]
			}
			if n.useStd {
				v /= n.stats.Std[i]
			}
			y[i] = v
		}
		if err := n.out.Write(pipeline.Frame{Time: f.Time, Data: y}); err != nil {
			return produced, err
		}
		produced++
	}
	if n.in.AtEnd() && !n.done {
		n.out.Close()
		n.done = true
	}
	return produced, nil
}
