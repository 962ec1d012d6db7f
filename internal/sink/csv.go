package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Record is one output row: the frame start time and the binary voice flag.
type Record struct {
	Time     time.Duration
	Decision int
}

// Writer serializes records in frame order.
type Writer interface {
	WriteRecord(Record) error
	Flush() error
}

// CSVWriter writes "timestamp_seconds,decision" rows.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter wraps the destination in a CSV record writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteRecord implements Writer.
func (c *CSVWriter) WriteRecord(r Record) error {
	return c.w.Write([]string{
		strconv.FormatFloat(r.Time.Seconds(), 'f', 3, 64),
		strconv.Itoa(r.Decision),
	})
}

// Flush implements Writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// Sink is the terminal pipeline stage delivering decision frames to a
// record writer. It enforces strictly increasing timestamps and the
// no-silent-empty-output policy: a run that drains with zero records fails
// with ErrEmptyOutput.
type Sink struct {
	in      *pipeline.Cursor
	w       Writer
	records int
	voiced  int
	last    time.Duration
	done    bool
}

// NewSink creates the sink stage over the decision stream.
func NewSink(in *pipeline.Stream, w Writer) (*Sink, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: sink requires a record writer", pipeline.ErrConfig)
	}
	return &Sink{in: in.NewCursor(0), w: w, last: -1}, nil
}

// Records returns the number of records written so far.
func (s *Sink) Records() int { return s.records }

// VoicedRecords returns the number of records with a voice decision.
func (s *Sink) VoicedRecords() int { return s.voiced }

// Name implements pipeline.Stage.
func (s *Sink) Name() string { return "sink" }

// Done implements pipeline.Stage.
func (s *Sink) Done() bool { return s.done }

// Reset implements pipeline.Stage.
func (s *Sink) Reset() {
	s.records = 0
	s.voiced = 0
	s.last = -1
	s.done = false
}

// Step implements pipeline.Stage.
func (s *Sink) Step() (int, error) {
	produced := 0
	for s.in.Pending() > 0 {
		f, err := s.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != 1 {
			return produced, fmt.Errorf("%w: decision frame has %d values, want 1",
				pipeline.ErrStreamState, len(f.Data))
		}
		if f.Time <= s.last && s.records > 0 {
			return produced, fmt.Errorf("%w: non-increasing timestamp %v after %v",
				pipeline.ErrStreamState, f.Time, s.last)
		}
		decision := 0
		if f.Data[0] >= 0.5 {
			decision = 1
			s.voiced++
		}
		if err := s.w.WriteRecord(Record{Time: f.Time, Decision: decision}); err != nil {
			return produced, fmt.Errorf("%w: writing record: %v", pipeline.ErrResource, err)
		}
		s.last = f.Time
		s.records++
		produced++
	}
	if s.in.AtEnd() && !s.done {
		if err := s.w.Flush(); err != nil {
			return produced, fmt.Errorf("%w: flushing output: %v", pipeline.ErrResource, err)
		}
		if s.records == 0 {
			return produced, pipeline.ErrEmptyOutput
		}
		s.done = true
	}
	return produced, nil
}
