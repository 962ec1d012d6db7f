package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// State describes the pipeline lifecycle. No stage emits output while Idle
// or after Terminated.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateTerminated
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// node is a stage together with its declared stream wiring.
type node struct {
	stage   Stage
	inputs  []*Stream
	outputs []*Stream
}

// Builder assembles and validates a pipeline graph before the first frame
// flows. Streams and stages are declared explicitly; Build checks that every
// stream has exactly one producer and at least one consumer and that the
// stage order is topological.
type Builder struct {
	log     *slog.Logger
	streams []*Stream
	nodes   []node
	err     error
}

// NewBuilder creates an empty pipeline builder.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// Stream declares a new stream with the given name and ring capacity.
func (b *Builder) Stream(name string, capacity int) *Stream {
	s, err := NewStream(name, capacity)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return nil
	}
	for _, existing := range b.streams {
		if existing.Name() == name {
			if b.err == nil {
				b.err = fmt.Errorf("%w: duplicate stream %q", ErrConfig, name)
			}
			return existing
		}
	}
	b.streams = append(b.streams, s)
	return s
}

// Add appends a stage with its input and output streams. Stages must be
// added in processing order; a source passes no inputs, a sink no outputs.
func (b *Builder) Add(stage Stage, inputs, outputs []*Stream) *Builder {
	b.nodes = append(b.nodes, node{stage: stage, inputs: inputs, outputs: outputs})
	return b
}

// Build validates the graph and returns a runnable pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("%w: pipeline has no stages", ErrConfig)
	}

	producers := make(map[*Stream]string)
	produced := make(map[*Stream]bool)
	for _, n := range b.nodes {
		for _, in := range n.inputs {
			if in == nil {
				return nil, fmt.Errorf("%w: stage %q has a nil input stream", ErrConfig, n.stage.Name())
			}
			if !produced[in] {
				return nil, fmt.Errorf("%w: stage %q consumes stream %q before any producer",
					ErrConfig, n.stage.Name(), in.Name())
			}
		}
		for _, out := range n.outputs {
			if out == nil {
				return nil, fmt.Errorf("%w: stage %q has a nil output stream", ErrConfig, n.stage.Name())
			}
			if owner, ok := producers[out]; ok {
				return nil, fmt.Errorf("%w: stream %q produced by both %q and %q",
					ErrConfig, out.Name(), owner, n.stage.Name())
			}
			producers[out] = n.stage.Name()
			produced[out] = true
		}
	}
	for _, s := range b.streams {
		if _, ok := producers[s]; !ok {
			return nil, fmt.Errorf("%w: stream %q has no producer", ErrConfig, s.Name())
		}
		if len(s.cursors) == 0 {
			return nil, fmt.Errorf("%w: stream %q has no consumer", ErrConfig, s.Name())
		}
		// The ring must hold every consumer's retention window plus the
		// frame being written.
		for _, c := range s.cursors {
			if c.keep+1 > s.capacity {
				return nil, fmt.Errorf("%w: stream %q capacity %d below consumer window %d",
					ErrConfig, s.Name(), s.capacity, c.keep+1)
			}
		}
	}

	return &Pipeline{log: b.log, nodes: b.nodes, streams: b.streams, state: StateIdle}, nil
}

// Pipeline is a validated stage graph driven by a single-threaded pull loop.
type Pipeline struct {
	log      *slog.Logger
	nodes    []node
	streams  []*Stream
	state    State
	observer func(stage string, frames int)
	produced map[string]int
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// SetObserver installs a callback invoked after every scheduler pass with
// the number of frames each stage produced. Used for metrics wiring.
func (p *Pipeline) SetObserver(fn func(stage string, frames int)) { p.observer = fn }

// FramesProduced returns the per-stage frame counts of the last run.
func (p *Pipeline) FramesProduced() map[string]int { return p.produced }

// Run drives the pipeline until every stage has drained. Processing is
// frame-driven: each pass steps the stages in topological order, letting
// each produce as many frames as its input window and output room allow. A
// full pass with no progress before termination indicates a wiring bug and
// aborts with ErrStreamState.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.state != StateIdle {
		return fmt.Errorf("%w: run invoked in state %s", ErrStreamState, p.state)
	}
	p.state = StateRunning
	p.produced = make(map[string]int, len(p.nodes))

	for {
		if err := ctx.Err(); err != nil {
			p.state = StateTerminated
			return fmt.Errorf("pipeline cancelled: %w", err)
		}

		progress := 0
		for _, n := range p.nodes {
			if n.stage.Done() {
				continue
			}
			k, err := n.stage.Step()
			if err != nil {
				p.state = StateTerminated
				return fmt.Errorf("stage %q: %w", n.stage.Name(), err)
			}
			if k > 0 {
				p.produced[n.stage.Name()] += k
				if p.observer != nil {
					p.observer(n.stage.Name(), k)
				}
				progress += k
			}
			if n.stage.Done() {
				progress++
				p.log.Debug("stage drained", slog.String("stage", n.stage.Name()),
					slog.Int("frames", p.produced[n.stage.Name()]))
			}
		}

		if p.state == StateRunning && p.nodes[0].stage.Done() {
			p.state = StateDraining
			p.log.Debug("end of input reached, draining pipeline")
		}

		done := true
		for _, n := range p.nodes {
			if !n.stage.Done() {
				done = false
				break
			}
		}
		if done {
			break
		}
		if progress == 0 {
			p.state = StateTerminated
			return fmt.Errorf("%w: pipeline stalled with incomplete stages", ErrStreamState)
		}
	}

	p.state = StateTerminated
	return nil
}

// Reset rewinds every stream and stage so the pipeline can process a new,
// independent utterance. Persistent model parameters are untouched; all
// filter and recurrent state is zeroed.
func (p *Pipeline) Reset() {
	for _, s := range p.streams {
		s.reset()
	}
	for _, n := range p.nodes {
		n.stage.Reset()
	}
	p.state = StateIdle
}
