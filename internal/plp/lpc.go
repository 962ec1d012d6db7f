package plp

import (
	"math"
)

// autocorrelation converts a critical-band power vector into the first
// order+1 autocorrelation lags via the inverse cosine transform of the
// even-symmetric spectrum. The band vector is extended with duplicated
// endpoints, following the standard PLP construction.
func autocorrelation(bands []float64, order int) []float64 {
	nb := len(bands)
	m := nb + 1 // half-length of the symmetric spectrum
	r := make([]float64, order+1)
	for k := 0; k <= order; k++ {
		// y = [bands[0], bands[0..nb-1], bands[nb-1]], indices 0..m.
		sum := bands[0] + bands[nb-1]*math.Cos(math.Pi*float64(k))
		for j := 1; j < m; j++ {
			sum += 2 * bands[j-1] * math.Cos(math.Pi*float64(k)*float64(j)/float64(m))
		}
		r[k] = sum / float64(2*m)
	}
	return r
}

// levinson runs the Levinson-Durbin recursion on autocorrelation lags
// r[0..order] and returns the prediction error filter coefficients a[1..order]
// (A(z) = 1 + sum a_i z^-i) together with the final prediction error energy.
// A degenerate all-zero frame (r[0] == 0) yields a zero predictor.
func levinson(r []float64, order int) (a []float64, gain float64) {
	a = make([]float64, order+1)
	if r[0] == 0 {
		return a, 0
	}
	gain = r[0]
	tmp := make([]float64, order+1)
	for i := 1; i <= order; i++ {
		acc := r[i]
		for j := 1; j < i; j++ {
			acc += a[j] * r[i-j]
		}
		k := -acc / gain
		copy(tmp, a[:i])
		for j := 1; j < i; j++ {
			a[j] = tmp[j] + k*tmp[i-j]
		}
		a[i] = k
		gain *= 1 - k*k
		if gain <= 0 {
			// Numerically singular autocorrelation; stop the recursion with
			// the predictor built so far.
			gain = 0
			break
		}
	}
	return a, gain
}

// lpcToCepstrum converts prediction coefficients to cepstral coefficients
// c[0..order] via the standard recursion, with c[0] = ln of the prediction
// error energy.
func lpcToCepstrum(a []float64, gain float64, order int) []float64 {
	c := make([]float64, order+1)
	if gain > 0 {
		c[0] = math.Log(gain)
	}
	for n := 1; n <= order; n++ {
		acc := -a[n] * float64(n)
		for k := 1; k < n; k++ {
			acc -= float64(k) * c[k] * a[n-k]
		}
		c[n] = acc / float64(n)
	}
	return c
}

// lifterCoefficients returns the sinusoidal cepstral lifter values for the
// true coefficient indices first..last inclusive.
func lifterCoefficients(lifter, first, last int) []float64 {
	w := make([]float64, last-first+1)
	l := float64(lifter)
	for i := range w {
		n := float64(first + i)
		w[i] = 1 + l/2*math.Sin(math.Pi*n/l)
	}
	return w
}

// equalLoudness returns the classic PLP equal-loudness weight for a band
// center frequency in Hz.
func equalLoudness(hz float64) float64 {
	w := 2 * math.Pi * hz
	w2 := w * w
	num := (w2 + 56.8e6) * w2 * w2
	den := (w2 + 6.3e6) * (w2 + 6.3e6) * (w2 + 0.38e9)
	return num / den
}
