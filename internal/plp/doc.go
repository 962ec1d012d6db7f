// Package plp implements perceptual linear prediction feature extraction:
// equal-loudness weighting, intensity-loudness power-law compression,
// optional RASTA temporal filtering, autocorrelation via inverse cosine
// transform, Levinson-Durbin recursion, LPC-to-cepstrum conversion and
// cepstral liftering.
package plp
