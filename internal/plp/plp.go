package plp

import (
	"fmt"
	"math"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// Config selects and parameterizes the PLP sub-steps. Every sub-step is
// individually togglable; with LPC disabled the extractor emits the
// processed critical-band energies instead of cepstra.
type Config struct {
	EqualLoudness bool    // equal-loudness preemphasis of band energies
	Compress      bool    // intensity-loudness power-law compression
	Compression   float64 // compression exponent, conventionally 0.33
	LPC           bool    // autocorrelation + Levinson-Durbin + cepstral recursion
	LPOrder       int     // linear prediction order
	FirstCC       int     // first retained cepstral coefficient (1 drops c0)
	Lifter        bool    // sinusoidal cepstral liftering
	CepLifter     int     // lifter constant, conventionally 22
}

// Extractor is the PLP feature extraction stage. The optional RASTA filter
// holds the only persistent state; everything else is a pure per-frame
// function of the critical-band energies.
type Extractor struct {
	in     *pipeline.Cursor
	out    *pipeline.Stream
	cfg    Config
	bands  int
	eql    []float64 // equal-loudness weight per band
	rasta  *Rasta    // nil when disabled
	lifter []float64 // nil when disabled
	done   bool
}

// NewExtractor creates the PLP stage for the given band center frequencies.
// The RASTA filter may be nil to disable temporal filtering.
func NewExtractor(in *pipeline.Stream, out *pipeline.Stream, centers []float64, rasta *Rasta, cfg Config) (*Extractor, error) {
	bands := len(centers)
	if bands < 2 {
		return nil, fmt.Errorf("%w: PLP needs at least 2 critical bands, got %d", pipeline.ErrConfig, bands)
	}
	if cfg.Compress && (cfg.Compression <= 0 || cfg.Compression > 1) {
		return nil, fmt.Errorf("%w: compression exponent must be in (0, 1], got %g",
			pipeline.ErrConfig, cfg.Compression)
	}
	if cfg.LPC {
		if cfg.LPOrder < 1 || cfg.LPOrder > bands {
			return nil, fmt.Errorf("%w: LP order must be in [1, %d], got %d",
				pipeline.ErrConfig, bands, cfg.LPOrder)
		}
		if cfg.FirstCC < 0 || cfg.FirstCC > cfg.LPOrder {
			return nil, fmt.Errorf("%w: first cepstral coefficient must be in [0, %d], got %d",
				pipeline.ErrConfig, cfg.LPOrder, cfg.FirstCC)
		}
	}
	if cfg.Lifter && cfg.CepLifter < 1 {
		return nil, fmt.Errorf("%w: cepstral lifter constant must be positive, got %d",
			pipeline.ErrConfig, cfg.CepLifter)
	}
	if rasta != nil && rasta.bands != bands {
		return nil, fmt.Errorf("%w: rasta filter has %d bands, analyzer produces %d",
			pipeline.ErrConfig, rasta.bands, bands)
	}

	e := &Extractor{in: in.NewCursor(0), out: out, cfg: cfg, bands: bands, rasta: rasta}
	if cfg.EqualLoudness {
		e.eql = make([]float64, bands)
		for i, hz := range centers {
			e.eql[i] = equalLoudness(hz)
		}
	}
	if cfg.Lifter && cfg.LPC {
		e.lifter = lifterCoefficients(cfg.CepLifter, cfg.FirstCC, cfg.LPOrder)
	}
	return e, nil
}

// OutputDim returns the feature vector length the extractor emits.
func (e *Extractor) OutputDim() int {
	if e.cfg.LPC {
		return e.cfg.LPOrder - e.cfg.FirstCC + 1
	}
	return e.bands
}

// Name implements pipeline.Stage.
func (e *Extractor) Name() string { return "plp" }

// Done implements pipeline.Stage.
func (e *Extractor) Done() bool { return e.done }

// Reset implements pipeline.Stage.
func (e *Extractor) Reset() {
	if e.rasta != nil {
		e.rasta.Reset()
	}
	e.done = false
}

// Step implements pipeline.Stage.
func (e *Extractor) Step() (int, error) {
	produced := 0
	for e.in.Pending() > 0 && !e.out.Full() {
		f, err := e.in.Next()
		if err != nil {
			return produced, err
		}
		if len(f.Data) != e.bands {
			return produced, fmt.Errorf("%w: frame has %d bands, extractor expects %d",
				pipeline.ErrStreamState, len(f.Data), e.bands)
		}
		feat, err := e.process(f.Data)
		if err != nil {
			return produced, err
		}
		if err := e.out.Write(pipeline.Frame{Time: f.Time, Data: feat}); err != nil {
			return produced, err
		}
		produced++
	}
	if e.in.AtEnd() && !e.done {
		e.out.Close()
		e.done = true
	}
	return produced, nil
}

// process runs the configured sub-steps over one critical-band frame.
func (e *Extractor) process(in []float64) ([]float64, error) {
	bands := make([]float64, len(in))
	copy(bands, in)

	if e.eql != nil {
		for i := range bands {
			bands[i] *= e.eql[i]
		}
	}
	if e.cfg.Compress {
		for i := range bands {
			bands[i] = math.Pow(bands[i], e.cfg.Compression)
		}
	}
	if e.rasta != nil {
		if err := e.rasta.Filter(bands); err != nil {
			return nil, err
		}
	}
	if !e.cfg.LPC {
		return bands, nil
	}

	r := autocorrelation(bands, e.cfg.LPOrder)
	a, gain := levinson(r, e.cfg.LPOrder)
	c := lpcToCepstrum(a, gain, e.cfg.LPOrder)

	feat := make([]float64, e.OutputDim())
	copy(feat, c[e.cfg.FirstCC:])
	if e.lifter != nil {
		for i := range feat {
			feat[i] *= e.lifter[i]
		}
	}
	return feat, nil
}
