package pipeline

import "time"

// Frame is the atomic unit of pipeline processing: a fixed-length numeric
// vector with a monotonically increasing index and the start time of the
// signal region it was derived from. All frames within one stream share
// vector length and field semantics.
type Frame struct {
	Index int           // position within the stream, starting at 0
	Time  time.Duration // start time of the underlying signal region
	Data  []float64     // feature or sample values
}
