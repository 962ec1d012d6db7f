package dsp

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// MelBank is a fixed bank of triangular weighting filters spaced on the mel
// scale. It operates on the power spectrum (magnitude squared) and produces
// one energy per band. Band edges are a pure function of
// {sampleRate, nfft, nBands, loFreq, hiFreq} and reproducible bit for bit.
type MelBank struct {
	sampleRate int
	nfft       int
	edges      []float64   // nBands+2 edge frequencies in Hz
	weights    [][]float64 // per band, one weight per spectrum bin
}

// NewMelBank computes the filter bank. The frequency bounds must satisfy
// 0 <= loFreq < hiFreq <= sampleRate/2.
func NewMelBank(sampleRate, nfft, nBands int, loFreq, hiFreq float64) (*MelBank, error) {
	if nBands < 1 {
		return nil, fmt.Errorf("%w: mel band count must be positive, got %d", pipeline.ErrConfig, nBands)
	}
	if loFreq < 0 || hiFreq <= loFreq {
		return nil, fmt.Errorf("%w: invalid mel frequency range [%g, %g]", pipeline.ErrConfig, loFreq, hiFreq)
	}
	nyquist := float64(sampleRate) / 2
	if hiFreq > nyquist {
		return nil, fmt.Errorf("%w: mel high frequency %g exceeds Nyquist %g", pipeline.ErrConfig, hiFreq, nyquist)
	}

	edges := make([]float64, nBands+2)
	melLo := HzToMel(loFreq)
	melHi := HzToMel(hiFreq)
	for i := range edges {
		edges[i] = MelToHz(melLo + (melHi-melLo)*float64(i)/float64(nBands+1))
	}

	bins := nfft/2 + 1
	binHz := float64(sampleRate) / float64(nfft)
	weights := make([][]float64, nBands)
	for m := 0; m < nBands; m++ {
		w := make([]float64, bins)
		left, center, right := edges[m], edges[m+1], edges[m+2]
		for k := 0; k < bins; k++ {
			f := float64(k) * binHz
			switch {
			case f <= left || f >= right:
				// outside the triangle
			case f <= center:
				w[k] = (f - left) / (center - left)
			default:
				w[k] = (right - f) / (right - center)
			}
		}
		weights[m] = w
	}

	return &MelBank{sampleRate: sampleRate, nfft: nfft, edges: edges, weights: weights}, nil
}

// HzToMel maps a frequency in Hz onto the mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz is the inverse mel mapping.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// Edges returns the nBands+2 band edge frequencies in Hz.
func (b *MelBank) Edges() []float64 { return b.edges }

// Centers returns the nBands band center frequencies in Hz.
func (b *MelBank) Centers() []float64 { return b.edges[1 : len(b.edges)-1] }

// Bands returns the number of bands.
func (b *MelBank) Bands() int { return len(b.weights) }

// Apply maps a magnitude spectrum onto per-band energies of the power
// spectrum.
func (b *MelBank) Apply(magnitude []float64, bands []float64) {
	for m, w := range b.weights {
		sum := 0.0
		for k, wk := range w {
			if wk != 0 {
				sum += wk * magnitude[k] * magnitude[k]
			}
		}
		bands[m] = sum
	}
}

// CriticalBandAnalyzer is the pipeline stage applying a MelBank per frame.
type CriticalBandAnalyzer struct {
	in   *pipeline.Cursor
	out  *pipeline.Stream
	bank *MelBank
	bins int
	done bool
}

// NewCriticalBandAnalyzer creates the mel analysis stage.
func NewCriticalBandAnalyzer(in *pipeline.Stream, out *pipeline.Stream, bank *MelBank) *CriticalBandAnalyzer {
	return &CriticalBandAnalyzer{in: in.NewCursor(0), out: out, bank: bank, bins: bank.nfft/2 + 1}
}

// Name implements pipeline.Stage.
func (c *CriticalBandAnalyzer) Name() string { return "melbank" }

// Done implements pipeline.Stage.
func (c *CriticalBandAnalyzer) Done() bool { return c.done }

// Reset implements pipeline.Stage.
func (c *CriticalBandAnalyzer) Reset() { c.done = false }

// Step implements pipeline.Stage.
func (c *CriticalBandAnalyzer) Step() (int, error) {
	produced := 0
	for c.in.Pending() > 0 && !c.out.Full() {
		f, err := c.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != c.bins {
			return produced, fmt.Errorf("%w: spectrum has %d bins, filter bank expects %d",
				pipeline.ErrStreamState, len(f.Data), c.bins)
		}
		bands := make([]float64, c.bank.Bands())
		c.bank.Apply(f.Data, bands)
		if err := c.out.Write(pipeline.Frame{Time: f.Time, Data: bands}); err != nil {
			return produced, err
		}
		produced++
	}
	if c.in.AtEnd() && !c.done {
		c.out.Close()
		c.done = true
	}
	return produced, nil
}
