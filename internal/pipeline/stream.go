package pipeline

import (
	"fmt"
)

// Stream is a named, append-only, logically infinite sequence of frames
// backed by a bounded ring buffer. One stage produces into a stream; one or
// more downstream stages consume from it through cursors. Frames are evicted
// only once every registered cursor has advanced past its retention window.
//
// Streams are not safe for concurrent use; the scheduler drives all stages
// from a single goroutine.
type Stream struct {
	name     string
	capacity int
	frames   []Frame
	base     int // logical index of the oldest retained frame
	next     int // logical index of the next write
	closed   bool
	cursors  []*Cursor
}

// NewStream creates a stream with the given name and ring capacity. The
// capacity must cover the largest lookbehind+lookahead window of any consumer
// plus one; the pipeline builder validates this before the first frame flows.
func NewStream(name string, capacity int) (*Stream, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: stream name cannot be empty", ErrConfig)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: stream %q capacity must be positive, got %d", ErrConfig, name, capacity)
	}
	return &Stream{
		name:     name,
		capacity: capacity,
		frames:   make([]Frame, capacity),
	}, nil
}

// Name returns the stream identifier.
func (s *Stream) Name() string { return s.name }

// End returns the logical index one past the last written frame.
func (s *Stream) End() int { return s.next }

// Closed reports whether the end-of-input marker has been set.
func (s *Stream) Closed() bool { return s.closed }

// Close marks end of input. It is one-way and irreversible; writes after
// Close are invariant violations.
func (s *Stream) Close() { s.closed = true }

// Full reports whether a write would currently overflow the ring. It first
// evicts every frame no registered cursor can still need, so a true result
// means the slowest consumer genuinely holds the buffer.
func (s *Stream) Full() bool {
	s.evict()
	return s.next-s.base >= s.capacity
}

// Write appends a frame, assigning its index. The producing stage must check
// Full before writing; a write into a full ring or after Close is an
// ErrStreamState violation.
func (s *Stream) Write(f Frame) error {
	if s.closed {
		return fmt.Errorf("%w: write to closed stream %q", ErrStreamState, s.name)
	}
	if s.Full() {
		return fmt.Errorf("%w: write to full stream %q (capacity %d, slowest consumer at %d)",
			ErrStreamState, s.name, s.capacity, s.minWatermark())
	}
	f.Index = s.next
	s.frames[s.next%s.capacity] = f
	s.next++
	return nil
}

// Read returns the frame at logical index i. It reports ErrEvicted for
// indices below the retention window and ErrNotYetAvailable for indices not
// written yet.
func (s *Stream) Read(i int) (Frame, error) {
	if i < s.base {
		return Frame{}, fmt.Errorf("%w: stream %q index %d (oldest retained %d)", ErrEvicted, s.name, i, s.base)
	}
	if i >= s.next {
		return Frame{}, fmt.Errorf("%w: stream %q index %d (end %d)", ErrNotYetAvailable, s.name, i, s.next)
	}
	return s.frames[i%s.capacity], nil
}

// NewCursor registers a consumer with the given lookbehind: the number of
// frames before the cursor position that must remain readable.
func (s *Stream) NewCursor(lookbehind int) *Cursor {
	c := &Cursor{stream: s, keep: lookbehind}
	s.cursors = append(s.cursors, c)
	return c
}

// evict advances the ring base past every frame all cursors have released.
func (s *Stream) evict() {
	if len(s.cursors) == 0 {
		return
	}
	w := s.minWatermark()
	if w > s.next {
		w = s.next
	}
	if w > s.base {
		s.base = w
	}
}

// minWatermark returns the lowest index any cursor may still read.
func (s *Stream) minWatermark() int {
	min := int(^uint(0) >> 1)
	for _, c := range s.cursors {
		w := c.pos - c.keep
		if w < 0 {
			w = 0
		}
		if w < min {
			min = w
		}
	}
	return min
}

// reset returns the stream to its initial empty state. Cursor registrations
// survive; positions are rewound to zero.
func (s *Stream) reset() {
	s.base = 0
	s.next = 0
	s.closed = false
	for _, c := range s.cursors {
		c.pos = 0
	}
}

// Cursor is a single consumer's position within a stream. The cursor
// position is the index of the next frame the consumer will process; frames
// within the lookbehind window behind it stay readable until it advances.
type Cursor struct {
	stream *Stream
	pos    int
	keep   int
}

// Pos returns the index of the next frame the cursor will consume.
func (c *Cursor) Pos() int { return c.pos }

// Pending returns the number of written frames the cursor has not consumed.
func (c *Cursor) Pending() int { return c.stream.End() - c.pos }

// End returns the logical end of the underlying stream.
func (c *Cursor) End() int { return c.stream.End() }

// Closed reports whether the underlying stream has its end-of-input marker.
func (c *Cursor) Closed() bool { return c.stream.Closed() }

// AtEnd reports whether the cursor has consumed every frame of a closed
// stream, i.e. upstream end of input has been fully observed.
func (c *Cursor) AtEnd() bool { return c.stream.Closed() && c.pos >= c.stream.End() }

// Next reads the frame at the cursor position and advances past it.
func (c *Cursor) Next() (Frame, error) {
	f, err := c.stream.Read(c.pos)
	if err != nil {
		return Frame{}, err
	}
	c.pos++
	return f, nil
}

// Peek reads the frame at the given offset from the cursor position without
// advancing. Negative offsets reach into the lookbehind window.
func (c *Cursor) Peek(offset int) (Frame, error) {
	return c.stream.Read(c.pos + offset)
}

// Advance moves the cursor forward without reading.
func (c *Cursor) Advance() { c.pos++ }
