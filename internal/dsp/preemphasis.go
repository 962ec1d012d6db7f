package dsp

import (
	"fmt"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Preemphasis applies the first-order high-pass recurrence
// y[i] = x[i] - k*x[i-1] per frame, carrying x[-1] from the last sample of
// the previous input frame. The filter warm-starts on the first sample of
// the stream, so the very first output is x[0]*(1-k).
type Preemphasis struct {
	in     *pipeline.Cursor
	out    *pipeline.Stream
	k      float64
	carry  float64
	primed bool
	done   bool
}

// NewPreemphasis creates the preemphasis stage. The coefficient must lie in
// [0, 1); zero disables the filter.
func NewPreemphasis(in *pipeline.Stream, out *pipeline.Stream, k float64) (*Preemphasis, error) {
	if k < 0 || k >= 1 {
		return nil, fmt.Errorf("%w: preemphasis coefficient must be in [0, 1), got %g", pipeline.ErrConfig, k)
	}
	return &Preemphasis{in: in.NewCursor(0), out: out, k: k}, nil
}

// Name implements pipeline.Stage.
func (p *Preemphasis) Name() string { return "preemphasis" }

// Done implements pipeline.Stage.
func (p *Preemphasis) Done() bool { return p.done }

// Reset implements pipeline.Stage.
func (p *Preemphasis) Reset() {
	p.carry = 0
	p.primed = false
	p.done = false
}

// Step implements pipeline.Stage.
func (p *Preemphasis) Step() (int, error) {
	produced := 0
	for p.in.Pending() > 0 && !p.out.Full() {
		f, err := p.in.Next()
		if err != nil {
			return produced, err
		}
		x := f.Data
		if !p.primed {
			p.carry = x[0]
			p.primed = true
		}
		y := make([]float64, len(x))
		prev := p.carry
		for i, v := range x {
			y[i] = v - p.k*prev
			prev = v
		}
		p.carry = x[len(x)-1]
		if err := p.out.Write(pipeline.Frame{Time: f.Time, Data: y}); err != nil {
			return produced, err
		}
		produced++
	}
	if p.in.AtEnd() && !p.done {
		p.out.Close()
		p.done = true
	}
	return produced, nil
}
