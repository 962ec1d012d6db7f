package dsp

import (
	"errors"
	"math"
	"testing"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// naiveDFT computes the reference transform directly from the definition.
func naiveDFT(x []float64) (re, im []float64) {
	n := len(x)
	re = make([]float64, n)
	im = make([]float64, n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			phi := -2 * math.Pi * float64(k) * float64(j) / float64(n)
			re[k] += x[j] * math.Cos(phi)
			im[k] += x[j] * math.Sin(phi)
		}
	}
	return re, im
}

// lcg is a tiny deterministic generator for reproducible test signals.
type lcg uint64

func (r *lcg) next() float64 {
	*r = *r*6364136223846793005 + 1442695040888963407
	return float64(uint32(*r>>32))/float64(1<<32)*2 - 1
}

func TestFFTMatchesNaiveDFT(t *testing.T) {
	const n = 64
	rng := lcg(1)
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.next()
	}

	plan, err := newFFTPlan(n)
	if err != nil {
		t.Fatalf("newFFTPlan: %v", err)
	}
	re := make([]float64, n)
	im := make([]float64, n)
	copy(re, x)
	plan.transform(re, im)

	wantRe, wantIm := naiveDFT(x)
	for k := 0; k < n; k++ {
		if math.Abs(re[k]-wantRe[k]) > 1e-9 || math.Abs(im[k]-wantIm[k]) > 1e-9 {
			t.Fatalf("bin %d: FFT (%g, %g) differs from DFT (%g, %g)",
				k, re[k], im[k], wantRe[k], wantIm[k])
		}
	}
}

func TestFFTPlanValidation(t *testing.T) {
	for _, n := range []int{0, 1, 3, 12, 100} {
		if _, err := newFFTPlan(n); !errors.Is(err, pipeline.ErrConfig) {
			t.Errorf("n=%d: expected ErrConfig, got %v", n, err)
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 400: 512, 512: 512, 513: 1024}
	for n, want := range cases {
		if got := nextPowerOfTwo(n); got != want {
			t.Errorf("nextPowerOfTwo(%d): expected %d, got %d", n, want, got)
		}
	}
}

func TestSpectralTransformSinePeak(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)
	cur := out.NewCursor(0)

	const n = 256
	st, err := NewSpectralTransform(in, out, n)
	if err != nil {
		t.Fatalf("NewSpectralTransform: %v", err)
	}
	if st.NFFT() != n {
		t.Fatalf("expected nfft %d, got %d", n, st.NFFT())
	}

	// A sine landing exactly on bin 16 concentrates all energy there.
	const bin = 16
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * bin * float64(i) / n)
	}
	feedFrames(t, in, x)
	frames := drainStage(t, st, cur)

	mag := frames[0].Data
	if len(mag) != n/2+1 {
		t.Fatalf("expected %d magnitude bins, got %d", n/2+1, len(mag))
	}
	if math.Abs(mag[bin]-n/2) > 1e-9 {
		t.Errorf("expected peak magnitude %d at bin %d, got %g", n/2, bin, mag[bin])
	}
	for k, v := range mag {
		if k != bin && v > 1e-8 {
			t.Errorf("bin %d: expected ~0 leakage, got %g", k, v)
		}
	}
}

func TestSpectralTransformZeroPadding(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)
	cur := out.NewCursor(0)

	st, err := NewSpectralTransform(in, out, 400)
	if err != nil {
		t.Fatalf("NewSpectralTransform: %v", err)
	}
	if st.NFFT() != 512 {
		t.Errorf("expected zero padding to 512, got %d", st.NFFT())
	}
	if st.Bins() != 257 {
		t.Errorf("expected 257 bins, got %d", st.Bins())
	}

	// DC frame: bin 0 carries the sample sum.
	x := make([]float64, 400)
	for i := range x {
		x[i] = 1
	}
	feedFrames(t, in, x)
	frames := drainStage(t, st, cur)
	if got := frames[0].Data[0]; math.Abs(got-400) > 1e-9 {
		t.Errorf("expected DC magnitude 400, got %g", got)
	}
}

func TestSpectralTransformLengthMismatch(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)
	out.NewCursor(0)

	st, err := NewSpectralTransform(in, out, 256)
	if err != nil {
		t.Fatalf("NewSpectralTransform: %v", err)
	}
	feedFrames(t, in, make([]float64, 100))

	if _, err := st.Step(); !errors.Is(err, pipeline.ErrStreamState) {
		t.Errorf("expected ErrStreamState for frame length mismatch, got %v", err)
	}
}
