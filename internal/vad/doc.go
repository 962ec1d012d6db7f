// Package vad assembles the full voice activity detection pipeline from the
// configuration and the pretrained model files, runs it over a waveform and
// collects run statistics for logging and the monitoring endpoints.
package vad
