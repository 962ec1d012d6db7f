package dsp

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Supported analysis window functions.
const (
	WindowHamming     = "hamming"
	WindowHann        = "hann"
	WindowRectangular = "rectangular"
)

// Windower multiplies each frame sample by a precomputed window coefficient,
// then applies a linear gain and an additive offset. The window length is
// fixed at construction and must match every incoming frame exactly.
type Windower struct {
	in     *pipeline.Cursor
	out    *pipeline.Stream
	coeffs []float64
	gain   float64
	offset float64
	done   bool
}

// NewWindower creates the windowing stage for the given function name and
// frame length.
func NewWindower(in *pipeline.Stream, out *pipeline.Stream, function string, frameLen int, gain, offset float64) (*Windower, error) {
	if frameLen < 2 {
		return nil, fmt.Errorf("%w: window length must be at least 2, got %d", pipeline.ErrConfig, frameLen)
	}
	coeffs, err := WindowCoefficients(function, frameLen)
	if err != nil {
		return nil, err
	}
	return &Windower{in: in.NewCursor(0), out: out, coeffs: coeffs, gain: gain, offset: offset}, nil
}

// WindowCoefficients returns the coefficient vector for a named window
// function.
func WindowCoefficients(function string, n int) ([]float64, error) {
	w := make([]float64, n)
	switch function {
	case WindowHamming:
		for i := range w {
			w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case WindowHann:
		for i := range w {
			w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		}
	case WindowRectangular:
		for i := range w {
			w[i] = 1
		}
	default:
		return nil, fmt.Errorf("%w: unsupported window function %q", pipeline.ErrConfig, function)
	}
	return w, nil
}

// Name implements pipeline.Stage.
func (w *Windower) Name() string { return "windower" }

// Done implements pipeline.Stage.
func (w *Windower) Done() bool { return w.done }

// Reset implements pipeline.Stage.
func (w *Windower) Reset() { w.done = false }

// Step implements pipeline.Stage.
func (w *Windower) Step() (int, error) {
	produced := 0
	for w.in.Pending() > 0 && !w.out.Full() {
		f, err := w.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != len(w.coeffs) {
			return produced, fmt.Errorf("%w: frame length %d does not match window length %d",
				pipeline.ErrStreamState, len(f.Data), len(w.coeffs))
		}
		y := make([]float64, len(f.Data))
		for i, v := range f.Data {
			y[i] = v*w.coeffs[i]*w.gain + w.offset
		}
		if err := w.out.Write(pipeline.Frame{Time: f.Time, Data: y}); err != nil {
			return produced, err
		}
		produced++
	}
	if w.in.AtEnd() && !w.done {
		w.out.Close()
		w.done = true
	}
	return produced, nil
}
