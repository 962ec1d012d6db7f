package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Reader decodes a WAV file into a stream of mono float64 samples in
// [-1, 1). Multi-channel material is mixed down by averaging the channels.
type Reader struct {
	f          *os.File
	dec        *wav.Decoder
	sampleRate int
	channels   int
	scale      float64
	buf        *gaudio.IntBuffer
}

// Open opens and validates a WAV file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening audio file: %v", pipeline.ErrResource, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", pipeline.ErrResource, path)
	}
	// 8-bit WAV is unsigned and would need midpoint re-centering; only
	// signed 16/24/32-bit PCM is accepted.
	if dec.BitDepth < 16 || dec.BitDepth > 32 {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported bit depth %d in %s", pipeline.ErrResource, dec.BitDepth, path)
	}
	if dec.NumChans < 1 {
		f.Close()
		return nil, fmt.Errorf("%w: no audio channels in %s", pipeline.ErrResource, path)
	}
	return &Reader{
		f:          f,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		scale:      float64(int64(1) << (dec.BitDepth - 1)),
	}, nil
}

// SampleRate returns the sample rate declared in the WAV header.
func (r *Reader) SampleRate() int { return r.sampleRate }

// Channels returns the channel count of the source file.
func (r *Reader) Channels() int { return r.channels }

// Duration returns the total duration of the audio data.
func (r *Reader) Duration() (time.Duration, error) {
	d, err := r.dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: reading WAV duration: %v", pipeline.ErrResource, err)
	}
	return d, nil
}

// ReadSamples fills out with mixed-down mono samples and returns the number
// delivered. End of data is io.EOF.
func (r *Reader) ReadSamples(out []float64) (int, error) {
	want := len(out) * r.channels
	if r.buf == nil || len(r.buf.Data) != want {
		r.buf = &gaudio.IntBuffer{Data: make([]int, want)}
	}
	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return 0, fmt.Errorf("%w: decoding PCM data: %v", pipeline.ErrResource, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	frames := n / r.channels
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < r.channels; c++ {
			sum += float64(r.buf.Data[i*r.channels+c])
		}
		out[i] = sum / float64(r.channels) / r.scale
	}
	return frames, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// SliceSource serves an in-memory waveform as a sample source. Used by
// tests and synthetic inputs.
type SliceSource struct {
	samples []float64
	pos     int
}

// NewSliceSource wraps the given samples.
func NewSliceSource(samples []float64) *SliceSource {
	return &SliceSource{samples: samples}
}

// ReadSamples implements the sample source contract over the slice.
func (s *SliceSource) ReadSamples(out []float64) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(out, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

// Rewind restarts the source from the first sample.
func (s *SliceSource) Rewind() { s.pos = 0 }
