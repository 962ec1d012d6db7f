package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete detector configuration
type Config struct {
	Framing    FramingConfig    `yaml:"framing"`
	Window     WindowConfig     `yaml:"window"`
	Mel        MelConfig        `yaml:"mel"`
	PLP        PLPConfig        `yaml:"plp"`
	Delta      DeltaConfig      `yaml:"delta"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Decision   DecisionConfig   `yaml:"decision"`
	Output     OutputConfig     `yaml:"output"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// FramingConfig contains frame slicing parameters
type FramingConfig struct {
	FrameSizeMs float64 `yaml:"frame_size_ms"`
	FrameStepMs float64 `yaml:"frame_step_ms"`
	Preemphasis float64 `yaml:"preemphasis"`
}

// WindowConfig contains analysis window parameters
type WindowConfig struct {
	Function string  `yaml:"function"`
	Gain     float64 `yaml:"gain"`
	Offset   float64 `yaml:"offset"`
}

// MelConfig contains critical band analysis parameters
type MelConfig struct {
	Bands  int     `yaml:"bands"`
	LoFreq float64 `yaml:"lo_freq"`
	HiFreq float64 `yaml:"hi_freq"`
}

// PLPConfig contains perceptual linear prediction parameters
type PLPConfig struct {
	EqualLoudness bool        `yaml:"equal_loudness"`
	Compress      bool        `yaml:"compress"`
	Compression   float64     `yaml:"compression"`
	LPC           bool        `yaml:"lpc"`
	LPOrder       int         `yaml:"lp_order"`
	FirstCC       int         `yaml:"first_cc"`
	Liftering     bool        `yaml:"liftering"`
	CepLifter     int         `yaml:"cep_lifter"`
	Rasta         RastaConfig `yaml:"rasta"`
}

// RastaConfig contains RASTA bandpass filtering parameters
type RastaConfig struct {
	Enabled     bool    `yaml:"enabled"`
	LowerCutoff float64 `yaml:"lower_cutoff"` // Hz in the modulation domain
	UpperCutoff float64 `yaml:"upper_cutoff"` // Hz in the modulation domain
}

// DeltaConfig contains delta regression parameters
type DeltaConfig struct {
	Window int `yaml:"window"`
}

// NormalizeConfig contains mean/variance normalization parameters
type NormalizeConfig struct {
	StatsPath string `yaml:"stats_path"`
	UseMean   bool   `yaml:"use_mean"`
	UseStd    bool   `yaml:"use_std"`
}

// ClassifierConfig contains neural network parameters
type ClassifierConfig struct {
	WeightsPath string `yaml:"weights_path"`
}

// DecisionConfig contains decision thresholding parameters
type DecisionConfig struct {
	OutputIndex int     `yaml:"output_index"`
	Threshold   float64 `yaml:"threshold"`
}

// OutputConfig contains result serialization parameters
type OutputConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig contains the optional HTTP metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the documented default configuration. The model paths and
// the output path have no defaults and must be supplied.
func Default() *Config {
	return &Config{
		Framing: FramingConfig{
			FrameSizeMs: 25,
			FrameStepMs: 10,
			Preemphasis: 0.97,
		},
		Window: WindowConfig{
			Function: "hamming",
			Gain:     1,
			Offset:   0,
		},
		Mel: MelConfig{
			Bands:  26,
			LoFreq: 0,
			HiFreq: 8000,
		},
		PLP: PLPConfig{
			EqualLoudness: true,
			Compress:      true,
			Compression:   0.33,
			LPC:           true,
			LPOrder:       12,
			FirstCC:       1,
			Liftering:     true,
			CepLifter:     22,
			Rasta: RastaConfig{
				Enabled:     true,
				LowerCutoff: 0.9,
				UpperCutoff: 12.8,
			},
		},
		Delta: DeltaConfig{Window: 2},
		Normalize: NormalizeConfig{
			UseMean: true,
			UseStd:  true,
		},
		Decision: DecisionConfig{
			OutputIndex: 0,
			Threshold:   0.5,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "localhost:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Framing.Validate(); err != nil {
		return fmt.Errorf("framing config: %w", err)
	}

	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window config: %w", err)
	}

	if err := c.Mel.Validate(); err != nil {
		return fmt.Errorf("mel config: %w", err)
	}

	if err := c.PLP.Validate(c.Mel.Bands); err != nil {
		return fmt.Errorf("plp config: %w", err)
	}

	if err := c.Delta.Validate(); err != nil {
		return fmt.Errorf("delta config: %w", err)
	}

	if err := c.Normalize.Validate(); err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}

	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier config: %w", err)
	}

	if err := c.Decision.Validate(); err != nil {
		return fmt.Errorf("decision config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates framing configuration
func (f *FramingConfig) Validate() error {
	if f.FrameSizeMs <= 0 {
		return fmt.Errorf("frame_size_ms must be positive, got %g", f.FrameSizeMs)
	}

	if f.FrameStepMs <= 0 {
		return fmt.Errorf("frame_step_ms must be positive, got %g", f.FrameStepMs)
	}

	if f.FrameStepMs > f.FrameSizeMs {
		return fmt.Errorf("frame_step_ms (%g) must not exceed frame_size_ms (%g)",
			f.FrameStepMs, f.FrameSizeMs)
	}

	if f.Preemphasis < 0 || f.Preemphasis >= 1 {
		return fmt.Errorf("preemphasis must be in [0, 1), got %g", f.Preemphasis)
	}

	return nil
}

// Validate validates window configuration
func (w *WindowConfig) Validate() error {
	validFunctions := map[string]bool{"hamming": true, "hann": true, "rectangular": true}
	if !validFunctions[w.Function] {
		return fmt.Errorf("function must be one of [hamming, hann, rectangular], got '%s'", w.Function)
	}

	if w.Gain == 0 {
		return fmt.Errorf("gain cannot be zero")
	}

	return nil
}

// Validate validates mel configuration
func (m *MelConfig) Validate() error {
	if m.Bands < 2 {
		return fmt.Errorf("bands must be at least 2, got %d", m.Bands)
	}

	if m.LoFreq < 0 {
		return fmt.Errorf("lo_freq cannot be negative, got %g", m.LoFreq)
	}

	if m.HiFreq <= m.LoFreq {
		return fmt.Errorf("hi_freq (%g) must be greater than lo_freq (%g)", m.HiFreq, m.LoFreq)
	}

	return nil
}

// Validate validates PLP configuration against the configured band count
func (p *PLPConfig) Validate(bands int) error {
	if p.Compress && (p.Compression <= 0 || p.Compression > 1) {
		return fmt.Errorf("compression must be in (0, 1], got %g", p.Compression)
	}

	if p.LPC {
		if p.LPOrder < 1 || p.LPOrder > bands {
			return fmt.Errorf("lp_order must be between 1 and the band count %d, got %d", bands, p.LPOrder)
		}

		if p.FirstCC < 0 || p.FirstCC > p.LPOrder {
			return fmt.Errorf("first_cc must be between 0 and lp_order %d, got %d", p.LPOrder, p.FirstCC)
		}

		if p.Liftering && p.CepLifter < 1 {
			return fmt.Errorf("cep_lifter must be at least 1, got %d", p.CepLifter)
		}
	}

	if p.Rasta.Enabled {
		if p.Rasta.LowerCutoff <= 0 {
			return fmt.Errorf("rasta lower_cutoff must be positive, got %g", p.Rasta.LowerCutoff)
		}

		if p.Rasta.UpperCutoff <= p.Rasta.LowerCutoff {
			return fmt.Errorf("rasta upper_cutoff (%g) must be greater than lower_cutoff (%g)",
				p.Rasta.UpperCutoff, p.Rasta.LowerCutoff)
		}
	}

	return nil
}

// Validate validates delta configuration
func (d *DeltaConfig) Validate() error {
	if d.Window < 1 {
		return fmt.Errorf("window must be at least 1, got %d", d.Window)
	}

	return nil
}

// Validate validates normalization configuration
func (n *NormalizeConfig) Validate() error {
	if (n.UseMean || n.UseStd) && n.StatsPath == "" {
		return fmt.Errorf("stats_path cannot be empty when normalization is enabled")
	}

	return nil
}

// Validate validates classifier configuration
func (c *ClassifierConfig) Validate() error {
	if c.WeightsPath == "" {
		return fmt.Errorf("weights_path cannot be empty")
	}

	return nil
}

// Validate validates decision configuration
func (d *DecisionConfig) Validate() error {
	if d.OutputIndex < 0 {
		return fmt.Errorf("output_index cannot be negative, got %d", d.OutputIndex)
	}

	if d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %g", d.Threshold)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if o.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// FrameSize returns the frame size in samples at the given rate
func (f *FramingConfig) FrameSize(sampleRate int) int {
	return int(f.FrameSizeMs * float64(sampleRate) / 1000)
}

// FrameStep returns the frame step in samples at the given rate
func (f *FramingConfig) FrameStep(sampleRate int) int {
	return int(f.FrameStepMs * float64(sampleRate) / 1000)
}

// FrameRate returns the number of frames per second of audio
func (f *FramingConfig) FrameRate() float64 {
	return 1000 / f.FrameStepMs
}

// GetFrameSizeDuration returns the frame size as a time.Duration
func (f *FramingConfig) GetFrameSizeDuration() time.Duration {
	return time.Duration(f.FrameSizeMs * float64(time.Millisecond))
}

// GetFrameStepDuration returns the frame step as a time.Duration
func (f *FramingConfig) GetFrameStepDuration() time.Duration {
	return time.Duration(f.FrameStepMs * float64(time.Millisecond))
}
