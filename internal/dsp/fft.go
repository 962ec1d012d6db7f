package dsp

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// fftPlan holds the precomputed twiddle factors and bit-reversal table for
// an in-place radix-2 decimation-in-time FFT of a fixed power-of-two size.
type fftPlan struct {
	n   int
	rev []int
	cos []float64
	sin []float64
}

// newFFTPlan creates a plan for size n, which must be a power of two.
func newFFTPlan(n int) (*fftPlan, error) {
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: FFT size must be a power of two, got %d", pipeline.ErrConfig, n)
	}
	p := &fftPlan{
		n:   n,
		rev: make([]int, n),
		cos: make([]float64, n/2),
		sin: make([]float64, n/2),
	}
	shift := bits.UintSize - uint(bits.Len(uint(n-1)))
	for i := 0; i < n; i++ {
		p.rev[i] = int(bits.Reverse(uint(i)) >> shift)
	}
	for k := 0; k < n/2; k++ {
		phi := -2 * math.Pi * float64(k) / float64(n)
		p.cos[k] = math.Cos(phi)
		p.sin[k] = math.Sin(phi)
	}
	return p, nil
}

// transform runs the FFT in place over the real and imaginary parts, which
// must both have length n.
func (p *fftPlan) transform(re, im []float64) {
	n := p.n
	for i, j := range p.rev {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := n / size
		for start := 0; start < n; start += size {
			k := 0
			for j := start; j < start+half; j++ {
				l := j + half
				tr := re[l]*p.cos[k] - im[l]*p.sin[k]
				ti := re[l]*p.sin[k] + im[l]*p.cos[k]
				re[l] = re[j] - tr
				im[l] = im[j] - ti
				re[j] += tr
				im[j] += ti
				k += step
			}
		}
	}
}

// nextPowerOfTwo returns the smallest power of two that is >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
