package feature

import (
	"fmt"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// DeltaRegression computes first-derivative coefficients over a sliding
// window and emits each static vector concatenated with its deltas. The
// delta at frame t is the linear-regression slope estimator
//
//	d[t] = sum_{n=1..w} n*(c[t+n] - c[t-n]) / (2 * sum_{n=1..w} n^2)
//
// with edge replication: at both stream boundaries the nearest valid frame
// stands in for missing neighbours, so exactly one output frame is emitted
// per input frame.
type DeltaRegression struct {
	in    *pipeline.Cursor
	out   *pipeline.Stream
	w     int
	denom float64
	done  bool
}

// NewDeltaRegression creates the delta stage with window half-width w.
func NewDeltaRegression(in *pipeline.Stream, out *pipeline.Stream, w int) (*DeltaRegression, error) {
	if w < 1 {
		return nil, fmt.Errorf("%w: delta window half-width must be positive, got %d", pipeline.ErrConfig, w)
	}
	denom := 0.0
	for n := 1; n <= w; n++ {
		denom += float64(n * n)
	}
	return &DeltaRegression{in: in.NewCursor(w), out: out, w: w, denom: 2 * denom}, nil
}

// Name implements pipeline.Stage.
func (d *DeltaRegression) Name() string { return "delta" }

// Done implements pipeline.Stage.
func (d *DeltaRegression) Done() bool { return d.done }

// Reset implements pipeline.Stage.
func (d *DeltaRegression) Reset() { d.done = false }

// Step implements pipeline.Stage. Frame t is emitted once its forward
// lookahead t+w has been produced, or upstream has closed and the trailing
// window is served by replication.
func (d *DeltaRegression) Step() (int, error) {
	produced := 0
	for !d.out.Full() {
		t := d.in.Pos()
		if t >= d.in.End() {
			break
		}
		if !d.in.Closed() && d.in.End() <= t+d.w {
			// Forward lookahead not yet available.
			break
		}
		last := d.in.End() - 1

		cur, err := d.in.Peek(0)
		if err != nil {
			return produced, err
		}
		dim := len(cur.Data)
		out := make([]float64, 2*dim)
		copy(out, cur.Data)

		for n := 1; n <= d.w; n++ {
			fwd := t + n
			if fwd > last {
				fwd = last
			}
			bwd := t - n
			if bwd < 0 {
				bwd = 0
			}
			ff, err := d.in.Peek(fwd - t)
			if err != nil {
				return produced, err
			}
			fb, err := d.in.Peek(bwd - t)
			if err != nil {
				return produced, err
			}
			if len(ff.Data) != dim || len(fb.Data) != dim {
				return produced, fmt.Errorf("%w: inconsistent feature dimension in delta window",
					pipeline.ErrStreamState)
			}
			for i := 0; i < dim; i++ {
				out[dim+i] += float64(n) * (ff.Data[i] - fb.Data[i])
			}
		}
		for i := dim; i < 2*dim; i++ {
			out[i] /= d.denom
		}

		if err := d.out.Write(pipeline.Frame{Time: cur.Time, Data: out}); err != nil {
			return produced, err
		}
		d.in.Advance()
		produced++
	}
	if d.in.AtEnd() && !d.done {
		d.out.Close()
		d.done = true
	}
	return produced, nil
}
