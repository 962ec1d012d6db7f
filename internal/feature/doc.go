// Package feature contains the cepstral-domain stages: regression-based
// delta coefficients and fixed mean/variance normalization with pretrained
// statistics.
package feature
