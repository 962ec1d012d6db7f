package plp

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// rastaNumerator is the 5-tap FIR differentiator of the RASTA bandpass,
// a regression slope over the last five frames. Together with the single
// IIR pole it suppresses both slow channel drift and fast frame-to-frame
// noise in each band trajectory.
var rastaNumerator = [5]float64{0.2, 0.1, 0, -0.1, -0.2}

// Rasta is a bank of identical bandpass IIR filters, one persistent state
// per critical band, applied across time.
type Rasta struct {
	pole  float64
	x     [][5]float64 // input history per band, x[band][0] is the newest
	y     []float64    // previous output per band
	seen  int          // frames observed since reset
	bands int
}

// NewRasta builds the filter bank for the given number of bands. The IIR
// pole is derived from the lower cutoff frequency and the frame rate; the
// upper passband edge is fixed by the FIR differentiator and the configured
// upper cutoff is validated against the usable range.
func NewRasta(bands int, lowerCutoff, upperCutoff, frameRate float64) (*Rasta, error) {
	if bands < 1 {
		return nil, fmt.Errorf("%w: rasta band count must be positive, got %d", pipeline.ErrConfig, bands)
	}
	if lowerCutoff <= 0 {
		return nil, fmt.Errorf("%w: rasta lower cutoff must be positive, got %g", pipeline.ErrConfig, lowerCutoff)
	}
	if upperCutoff <= lowerCutoff || upperCutoff > frameRate/2 {
		return nil, fmt.Errorf("%w: rasta upper cutoff %g outside (%g, %g]",
			pipeline.ErrConfig, upperCutoff, lowerCutoff, frameRate/2)
	}
	pole := math.Exp(-2 * math.Pi * lowerCutoff / frameRate)
	return &Rasta{
		pole:  pole,
		x:     make([][5]float64, bands),
		y:     make([]float64, bands),
		bands: bands,
	}, nil
}

// Pole returns the IIR pole of the filter.
func (r *Rasta) Pole() float64 { return r.pole }

// Filter advances every band filter by one frame in place. The first four
// frames after a reset are the FIR warmup and produce zero output.
func (r *Rasta) Filter(bands []float64) error {
	if len(bands) != r.bands {
		return fmt.Errorf("%w: rasta filter has %d bands, frame has %d",
			pipeline.ErrStreamState, r.bands, len(bands))
	}
	r.seen++
	for b := range bands {
		h := &r.x[b]
		h[4], h[3], h[2], h[1], h[0] = h[3], h[2], h[1], h[0], bands[b]
		if r.seen < len(rastaNumerator) {
			bands[b] = 0
			continue
		}
		out := r.pole * r.y[b]
		for i, c := range rastaNumerator {
			out += c * h[i]
		}
		r.y[b] = out
		bands[b] = out
	}
	return nil
}

// Reset clears all per-band filter memory.
func (r *Rasta) Reset() {
	for b := range r.x {
		r.x[b] = [5]float64{}
		r.y[b] = 0
	}
	r.seen = 0
}
