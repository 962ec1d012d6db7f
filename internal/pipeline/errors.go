package pipeline

import "errors"

// Error taxonomy for the pipeline. Construction-time problems wrap ErrConfig
// or ErrResource and abort before any frame is processed. Runtime invariant
// violations wrap ErrStreamState and abort the run; there is no per-frame
// recovery. Callers classify with errors.Is.
var (
	// ErrConfig marks a malformed parameter or a dimension mismatch detected
	// at pipeline construction.
	ErrConfig = errors.New("configuration error")

	// ErrResource marks a missing or unreadable audio source, stats file or
	// weight file.
	ErrResource = errors.New("resource error")

	// ErrStreamState marks an internal invariant violation at run time, such
	// as a read of an evicted frame or a stalled scheduler pass.
	ErrStreamState = errors.New("stream state error")

	// ErrEmptyOutput marks a completed run that produced zero decision
	// records.
	ErrEmptyOutput = errors.New("no output records produced")

	// ErrNotYetAvailable is returned by Stream.Read for a frame index that
	// has not been written yet.
	ErrNotYetAvailable = errors.New("frame not yet available")

	// ErrEvicted is returned by Stream.Read for a frame index that has
	// already been discarded from the ring buffer.
	ErrEvicted = errors.New("frame already evicted")
)
