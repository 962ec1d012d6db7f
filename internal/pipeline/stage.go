package pipeline

// Stage is one node of the pipeline graph. The scheduler calls Step
// repeatedly in topological order; each call produces as many output frames
// as input availability and output ring room currently allow and returns the
// number produced.
//
// End of input propagates through the graph as drain semantics: a stage that
// has consumed every frame of its closed input stream emits whatever
// trailing frames it can still derive from buffered state, closes its output
// stream, and from then on reports Done. A stage never drops buffered frames
// when draining.
type Stage interface {
	// Name identifies the stage in logs, metrics and errors.
	Name() string

	// Step makes as much progress as currently possible and returns the
	// number of frames produced.
	Step() (int, error)

	// Done reports whether the stage has closed its output and will make no
	// further progress.
	Done() bool

	// Reset returns all persistent filter state (preemphasis carry, IIR
	// memory, recurrent hidden state) to its initial value. Invoked only at
	// utterance boundaries, never mid-stream.
	Reset()
}
