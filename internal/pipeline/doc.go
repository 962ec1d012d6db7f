// Package pipeline provides the streaming frame pipeline engine: frames,
// named ring-buffered streams, the stage contract, and the pull-loop
// scheduler that drives a validated stage graph from waveform to decision.
package pipeline
