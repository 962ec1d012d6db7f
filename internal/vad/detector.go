package vad

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/plp-vad/internal/config"
	"github.com/skypro1111/plp-vad/internal/dsp"
	"github.com/skypro1111/plp-vad/internal/feature"
	"github.com/skypro1111/plp-vad/internal/metrics"
	"github.com/skypro1111/plp-vad/internal/nnet"
	"github.com/skypro1111/plp-vad/internal/pipeline"
	"github.com/skypro1111/plp-vad/internal/plp"
	"github.com/skypro1111/plp-vad/internal/sink"
)

// streamCapacity is the ring size of every inter-stage stream. It comfortably
// exceeds the largest consumer lookbehind (the delta half-width).
const streamCapacity = 64

// Detector assembles and runs the full analysis pipeline: framing,
// preemphasis, windowing, spectrum, critical bands, PLP, deltas,
// normalization, the recurrent classifier, decision thresholding and the
// record sink. Model parameters are loaded once at construction and
// dimension-checked before any audio flows.
type Detector struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	stats *feature.Stats
	net   *nnet.Network

	mu   sync.RWMutex
	last RunStats
}

// RunStats summarizes one completed detection run.
type RunStats struct {
	State          string        `json:"state"`
	Frames         int           `json:"frames"`
	VoiceFrames    int           `json:"voice_frames"`
	VoiceRatio     float64       `json:"voice_ratio"`
	AudioDuration  time.Duration `json:"audio_duration_ns"`
	WallDuration   time.Duration `json:"wall_duration_ns"`
	RealtimeFactor float64       `json:"realtime_factor"`
}

// NewDetector loads the model files named in the configuration and verifies
// that their dimensions chain: PLP output × 2 (static + delta) must match the
// normalization stats and the network input. The metrics handle may be nil.
func NewDetector(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrConfig, err)
	}

	d := &Detector{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		last:    RunStats{State: pipeline.StateIdle.String()},
	}

	featureDim := 2 * d.plpDim()

	if cfg.Normalize.UseMean || cfg.Normalize.UseStd {
		stats, err := feature.LoadStats(cfg.Normalize.StatsPath)
		if err != nil {
			return nil, err
		}
		if stats.Dim() != featureDim {
			return nil, fmt.Errorf("%w: stats dimension %d does not match feature dimension %d",
				pipeline.ErrConfig, stats.Dim(), featureDim)
		}
		d.stats = stats
	}

	net, err := nnet.LoadNetwork(cfg.Classifier.WeightsPath)
	if err != nil {
		return nil, err
	}
	if net.InputDim() != featureDim {
		return nil, fmt.Errorf("%w: network input dimension %d does not match feature dimension %d",
			pipeline.ErrConfig, net.InputDim(), featureDim)
	}
	if cfg.Decision.OutputIndex >= net.OutputDim() {
		return nil, fmt.Errorf("%w: decision output_index %d outside network output of length %d",
			pipeline.ErrConfig, cfg.Decision.OutputIndex, net.OutputDim())
	}
	d.net = net

	logger.Info("Detector ready",
		slog.Int("feature_dim", featureDim),
		slog.Int("network_output_dim", net.OutputDim()),
		slog.Int("lstm_layers", len(net.Layers)),
	)

	return d, nil
}

// plpDim returns the static feature dimension the PLP stage will emit.
func (d *Detector) plpDim() int {
	if d.cfg.PLP.LPC {
		return d.cfg.PLP.LPOrder - d.cfg.PLP.FirstCC + 1
	}
	return d.cfg.Mel.Bands
}

// FeatureDim returns the static + delta feature dimension.
func (d *Detector) FeatureDim() int { return 2 * d.plpDim() }

// Run processes one waveform from src through the full pipeline, writing
// decision records to w. It returns the run statistics. The context cancels
// the run between scheduler passes.
func (d *Detector) Run(ctx context.Context, src dsp.SampleSource, sampleRate int, w sink.Writer) (RunStats, error) {
	start := time.Now()

	p, snk, err := d.build(src, sampleRate, w)
	if err != nil {
		return RunStats{}, err
	}

	if d.metrics != nil {
		p.SetObserver(func(stage string, frames int) {
			d.metrics.RecordFrames(stage, frames)
		})
	}

	d.setState(pipeline.StateRunning.String())

	runErr := p.Run(ctx)
	wall := time.Since(start)

	stats := RunStats{
		State:        p.State().String(),
		Frames:       snk.Records(),
		VoiceFrames:  snk.VoicedRecords(),
		WallDuration: wall,
	}
	if stats.Frames > 0 {
		stats.VoiceRatio = float64(stats.VoiceFrames) / float64(stats.Frames)
		step := d.cfg.Framing.GetFrameStepDuration()
		size := d.cfg.Framing.GetFrameSizeDuration()
		stats.AudioDuration = time.Duration(stats.Frames-1)*step + size
		if wall > 0 {
			stats.RealtimeFactor = stats.AudioDuration.Seconds() / wall.Seconds()
		}
	}

	d.mu.Lock()
	d.last = stats
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RecordRun(wall.Seconds())
		d.metrics.RecordDecisionCounts(stats.VoiceFrames, stats.Frames-stats.VoiceFrames)
		d.metrics.SetVoiceRatio(stats.VoiceRatio)
		if runErr != nil {
			d.metrics.RecordStall()
		}
	}

	if runErr != nil {
		return stats, runErr
	}

	d.logger.Info("Run complete",
		slog.Int("frames", stats.Frames),
		slog.Int("voice_frames", stats.VoiceFrames),
		slog.Float64("voice_ratio", stats.VoiceRatio),
		slog.Duration("audio", stats.AudioDuration),
		slog.Duration("wall", stats.WallDuration),
		slog.Float64("realtime_factor", stats.RealtimeFactor),
	)

	return stats, nil
}

// build wires every stage and stream of the graph for one run.
func (d *Detector) build(src dsp.SampleSource, sampleRate int, w sink.Writer) (*pipeline.Pipeline, *sink.Sink, error) {
	cfg := d.cfg

	size := cfg.Framing.FrameSize(sampleRate)
	step := cfg.Framing.FrameStep(sampleRate)

	b := pipeline.NewBuilder(d.logger)
	frames := b.Stream("frames", streamCapacity)
	emphasized := b.Stream("emphasized", streamCapacity)
	windowed := b.Stream("windowed", streamCapacity)
	spectra := b.Stream("spectra", streamCapacity)
	bands := b.Stream("bands", streamCapacity)
	features := b.Stream("features", streamCapacity)
	deltas := b.Stream("deltas", streamCapacity)
	activations := b.Stream("activations", streamCapacity)
	decisions := b.Stream("decisions", streamCapacity)

	framer, err := dsp.NewFramer(src, frames, size, step, sampleRate)
	if err != nil {
		return nil, nil, err
	}
	b.Add(framer, nil, []*pipeline.Stream{frames})

	pre, err := dsp.NewPreemphasis(frames, emphasized, cfg.Framing.Preemphasis)
	if err != nil {
		return nil, nil, err
	}
	b.Add(pre, []*pipeline.Stream{frames}, []*pipeline.Stream{emphasized})

	win, err := dsp.NewWindower(emphasized, windowed, cfg.Window.Function, size, cfg.Window.Gain, cfg.Window.Offset)
	if err != nil {
		return nil, nil, err
	}
	b.Add(win, []*pipeline.Stream{emphasized}, []*pipeline.Stream{windowed})

	spec, err := dsp.NewSpectralTransform(windowed, spectra, size)
	if err != nil {
		return nil, nil, err
	}
	b.Add(spec, []*pipeline.Stream{windowed}, []*pipeline.Stream{spectra})

	hiFreq := cfg.Mel.HiFreq
	if nyquist := float64(sampleRate) / 2; hiFreq > nyquist {
		hiFreq = nyquist
	}
	bank, err := dsp.NewMelBank(sampleRate, spec.NFFT(), cfg.Mel.Bands, cfg.Mel.LoFreq, hiFreq)
	if err != nil {
		return nil, nil, err
	}
	b.Add(dsp.NewCriticalBandAnalyzer(spectra, bands, bank),
		[]*pipeline.Stream{spectra}, []*pipeline.Stream{bands})

	var rasta *plp.Rasta
	if cfg.PLP.Rasta.Enabled {
		rasta, err = plp.NewRasta(cfg.Mel.Bands, cfg.PLP.Rasta.LowerCutoff,
			cfg.PLP.Rasta.UpperCutoff, cfg.Framing.FrameRate())
		if err != nil {
			return nil, nil, err
		}
	}
	extractor, err := plp.NewExtractor(bands, features, bank.Centers(), rasta, plp.Config{
		EqualLoudness: cfg.PLP.EqualLoudness,
		Compress:      cfg.PLP.Compress,
		Compression:   cfg.PLP.Compression,
		LPC:           cfg.PLP.LPC,
		LPOrder:       cfg.PLP.LPOrder,
		FirstCC:       cfg.PLP.FirstCC,
		Lifter:        cfg.PLP.Liftering,
		CepLifter:     cfg.PLP.CepLifter,
	})
	if err != nil {
		return nil, nil, err
	}
	b.Add(extractor, []*pipeline.Stream{bands}, []*pipeline.Stream{features})

	delta, err := feature.NewDeltaRegression(features, deltas, cfg.Delta.Window)
	if err != nil {
		return nil, nil, err
	}
	b.Add(delta, []*pipeline.Stream{features}, []*pipeline.Stream{deltas})

	classifierIn := deltas
	if d.stats != nil {
		normalized := b.Stream("normalized", streamCapacity)
		norm, err := feature.NewNormalizer(deltas, normalized, d.stats,
			d.FeatureDim(), cfg.Normalize.UseMean, cfg.Normalize.UseStd)
		if err != nil {
			return nil, nil, err
		}
		b.Add(norm, []*pipeline.Stream{deltas}, []*pipeline.Stream{normalized})
		classifierIn = normalized
	}

	classifier, err := nnet.NewRecurrentClassifier(classifierIn, activations, d.net, d.FeatureDim())
	if err != nil {
		return nil, nil, err
	}
	b.Add(classifier, []*pipeline.Stream{classifierIn}, []*pipeline.Stream{activations})

	selector, err := nnet.NewDecisionSelector(activations, decisions, d.net.OutputDim(),
		cfg.Decision.OutputIndex, cfg.Decision.Threshold)
	if err != nil {
		return nil, nil, err
	}
	b.Add(selector, []*pipeline.Stream{activations}, []*pipeline.Stream{decisions})

	snk, err := sink.NewSink(decisions, w)
	if err != nil {
		return nil, nil, err
	}
	b.Add(snk, []*pipeline.Stream{decisions}, nil)

	p, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return p, snk, nil
}

// setState records the coarse run state for the status endpoint.
func (d *Detector) setState(state string) {
	d.mu.Lock()
	d.last.State = state
	d.mu.Unlock()
}

// Status implements the monitoring server's status provider.
func (d *Detector) Status() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}
