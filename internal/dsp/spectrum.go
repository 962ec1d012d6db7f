package dsp

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// SpectralTransform computes the discrete Fourier transform of each windowed
// frame, zero-padding to the next power of two, and emits the magnitude
// spectrum (nfft/2+1 bins). Phase is not materialized: the critical-band
// analyzer, the only consumer in this configuration, discards it.
type SpectralTransform struct {
	in       *pipeline.Cursor
	out      *pipeline.Stream
	frameLen int
	nfft     int
	plan     *fftPlan
	re, im   []float64
	done     bool
}

// NewSpectralTransform creates the forward transform stage for frames of
// the given length.
func NewSpectralTransform(in *pipeline.Stream, out *pipeline.Stream, frameLen int) (*SpectralTransform, error) {
	if frameLen <= 0 {
		return nil, fmt.Errorf("%w: frame length must be positive, got %d", pipeline.ErrConfig, frameLen)
	}
	nfft := nextPowerOfTwo(frameLen)
	plan, err := newFFTPlan(nfft)
	if err != nil {
		return nil, err
	}
	return &SpectralTransform{
		in:       in.NewCursor(0),
		out:      out,
		frameLen: frameLen,
		nfft:     nfft,
		plan:     plan,
		re:       make([]float64, nfft),
		im:       make([]float64, nfft),
	}, nil
}

// NFFT returns the transform length after zero padding.
func (s *SpectralTransform) NFFT() int { return s.nfft }

// Bins returns the number of magnitude bins per output frame.
func (s *SpectralTransform) Bins() int { return s.nfft/2 + 1 }

// Name implements pipeline.Stage.
func (s *SpectralTransform) Name() string { return "spectrum" }

// Done implements pipeline.Stage.
func (s *SpectralTransform) Done() bool { return s.done }

// Reset implements pipeline.Stage.
func (s *SpectralTransform) Reset() { s.done = false }

// Step implements pipeline.Stage.
func (s *SpectralTransform) Step() (int, error) {
	produced := 0
	for s.in.Pending() > 0 && !s.out.Full() {
		f, err := s.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != s.frameLen {
			return produced, fmt.Errorf("%w: frame length %d does not match transform input length %d",
				pipeline.ErrStreamState, len(f.Data), s.frameLen)
		}
		copy(s.re, f.Data)
		for i := s.frameLen; i < s.nfft; i++ {
			s.re[i] = 0
		}
		for i := range s.im {
			s.im[i] = 0
		}
		s.plan.transform(s.re, s.im)

		mag := make([]float64, s.nfft/2+1)
		for i := range mag {
			mag[i] = math.Hypot(s.re[i], s.im[i])
		}
		if err := s.out.Write(pipeline.Frame{Time: f.Time, Data: mag}); err != nil {
			return produced, err
		}
		produced++
	}
	if s.in.AtEnd() && !s.done {
		s.out.Close()
		s.done = true
	}
	return produced, nil
}
