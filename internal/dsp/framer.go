package dsp

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// readBlock is the number of samples pulled from the source per read.
const readBlock = 4096

// SampleSource delivers blocks of decoded mono samples in [-1, 1).
type SampleSource interface {
	// ReadSamples fills buf with up to len(buf) samples and returns the
	// number delivered. End of input is io.EOF.
	ReadSamples(buf []float64) (int, error)
}

// Framer slices a continuous waveform into fixed-size, fixed-step
// overlapping frames. Centering is "left": frame n covers samples
// [n*step, n*step+size). On end of input a frame is emitted only if it is
// fully covered by available samples; no trailing zero padding is applied.
type Framer struct {
	src        SampleSource
	out        *pipeline.Stream
	size       int // frame length in samples
	step       int // frame advance in samples
	sampleRate int

	buf      []float64 // pending samples, buf[0] is absolute index bufStart
	bufStart int
	next     int // index of the next frame to emit
	eof      bool
	done     bool
}

// NewFramer creates the framing source stage. Frame size and step are given
// in samples; both must be positive and the step must not exceed the size.
func NewFramer(src SampleSource, out *pipeline.Stream, size, step, sampleRate int) (*Framer, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: framer requires a sample source", pipeline.ErrConfig)
	}
	if size <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: frame size and step must be positive, got size=%d step=%d",
			pipeline.ErrConfig, size, step)
	}
	if step > size {
		return nil, fmt.Errorf("%w: frame step %d exceeds frame size %d", pipeline.ErrConfig, step, size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", pipeline.ErrConfig, sampleRate)
	}
	return &Framer{src: src, out: out, size: size, step: step, sampleRate: sampleRate}, nil
}

// Name implements pipeline.Stage.
func (f *Framer) Name() string { return "framer" }

// Done implements pipeline.Stage.
func (f *Framer) Done() bool { return f.done }

// Reset implements pipeline.Stage. The sample source itself is positioned
// externally; Reset only clears the framing state.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.bufStart = 0
	f.next = 0
	f.eof = false
	f.done = false
}

// Step pulls samples from the source and emits every frame that is fully
// covered, stopping early when the output ring has no room.
func (f *Framer) Step() (int, error) {
	produced := 0
	for !f.done && !f.out.Full() {
		start := f.next * f.step
		end := start + f.size

		for !f.eof && f.bufStart+len(f.buf) < end {
			if err := f.fill(); err != nil {
				return produced, err
			}
		}

		if f.bufStart+len(f.buf) < end {
			// Trailing samples cannot cover a full frame; drop them and
			// propagate end of input.
			f.out.Close()
			f.done = true
			break
		}

		data := make([]float64, f.size)
		copy(data, f.buf[start-f.bufStart:end-f.bufStart])
		frame := pipeline.Frame{
			Time: time.Duration(start) * time.Second / time.Duration(f.sampleRate),
			Data: data,
		}
		if err := f.out.Write(frame); err != nil {
			return produced, err
		}
		f.next++
		produced++
		f.trim()
	}
	return produced, nil
}

// fill reads one block from the source into the pending buffer.
func (f *Framer) fill() error {
	block := make([]float64, readBlock)
	n, err := f.src.ReadSamples(block)
	if n > 0 {
		f.buf = append(f.buf, block[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			f.eof = true
			return nil
		}
		return fmt.Errorf("%w: reading audio source: %v", pipeline.ErrResource, err)
	}
	if n == 0 {
		f.eof = true
	}
	return nil
}

// trim discards samples no future frame can reach.
func (f *Framer) trim() {
	needed := f.next * f.step
	if drop := needed - f.bufStart; drop > 0 {
		if drop > len(f.buf) {
			drop = len(f.buf)
		}
		f.buf = f.buf[:copy(f.buf, f.buf[drop:])]
		f.bufStart += drop
	}
}

// SamplesToFrames returns the number of frames a waveform of n samples
// yields under the no-trailing-frame policy.
func SamplesToFrames(n, size, step int) int {
	if n < size {
		return 0
	}
	return (n-size)/step + 1
}
