// Package dsp contains the waveform-domain pipeline stages: framing,
// preemphasis, windowing, the forward spectral transform and critical-band
// (mel) analysis.
package dsp
