// Package audio decodes WAV input into the mono float64 sample stream the
// detection pipeline consumes. Multi-channel files are mixed down by
// averaging and integer PCM is scaled to [-1, 1).
package audio
