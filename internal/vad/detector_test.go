package vad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skypro1111/plp-vad/internal/audio"
	"github.com/skypro1111/plp-vad/internal/config"
	"github.com/skypro1111/plp-vad/internal/pipeline"
	"github.com/skypro1111/plp-vad/internal/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeStats writes an identity normalization stats file of the given
// dimension.
func writeStats(t *testing.T, dir string, dim int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("MVNSTATS 1\n")
	fmt.Fprintf(&b, "dim %d\n", dim)
	b.WriteString("mean" + strings.Repeat(" 0", dim) + "\n")
	b.WriteString("std" + strings.Repeat(" 1", dim) + "\n")
	path := filepath.Join(dir, "stats.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("writing stats fixture: %v", err)
	}
	return path
}

// writeWeights writes a zero-weight network with one LSTM layer and a dense
// sigmoid output whose bias fixes every activation on one side of 0.5:
// a negative bias forces silence decisions, a positive bias voice decisions.
func writeWeights(t *testing.T, dir string, in, hidden, out int, bias float64) string {
	t.Helper()
	var b strings.Builder
	zeroRow := func(cols int) string {
		return strings.TrimSpace(strings.Repeat("0 ", cols)) + "\n"
	}
	zeroMatrix := func(key string, rows, cols int) {
		b.WriteString(key + "\n")
		for r := 0; r < rows; r++ {
			b.WriteString(zeroRow(cols))
		}
	}
	zeroVector := func(key string, n int) {
		b.WriteString(key + strings.Repeat(" 0", n) + "\n")
	}

	b.WriteString("NNET 1\n")
	fmt.Fprintf(&b, "lstm %d %d\n", in, hidden)
	zeroMatrix("Wi", hidden, in)
	zeroMatrix("Wf", hidden, in)
	zeroMatrix("Wo", hidden, in)
	zeroMatrix("Wg", hidden, in)
	zeroMatrix("Ri", hidden, hidden)
	zeroMatrix("Rf", hidden, hidden)
	zeroMatrix("Ro", hidden, hidden)
	zeroMatrix("Rg", hidden, hidden)
	zeroVector("bi", hidden)
	zeroVector("bf", hidden)
	zeroVector("bo", hidden)
	zeroVector("bg", hidden)
	fmt.Fprintf(&b, "dense %d %d\n", hidden, out)
	zeroMatrix("W", out, hidden)
	b.WriteString("b")
	for i := 0; i < out; i++ {
		fmt.Fprintf(&b, " %g", bias)
	}
	b.WriteString("\nsigmoid\nend\n")

	path := filepath.Join(dir, "weights.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("writing weights fixture: %v", err)
	}
	return path
}

// testConfig returns a runnable configuration backed by fixture model files.
// The default feature layout is 12 cepstra + 12 deltas = 24 dimensions.
func testConfig(t *testing.T, dir string, bias float64) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Normalize.StatsPath = writeStats(t, dir, 24)
	cfg.Classifier.WeightsPath = writeWeights(t, dir, 24, 4, 2, bias)
	cfg.Output.Path = filepath.Join(dir, "out.csv")
	return cfg
}

// recorder captures sink records in memory.
type recorder struct {
	records []sink.Record
}

func (r *recorder) WriteRecord(rec sink.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) Flush() error { return nil }

func TestDetectorSilenceRun(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), -1) // sigmoid(-1) < 0.5: silence everywhere
	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	// One second of digital silence at 16 kHz: floor((16000-400)/160)+1 frames.
	src := audio.NewSliceSource(make([]float64, 16000))
	rec := &recorder{}

	stats, err := det.Run(context.Background(), src, 16000, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	const wantFrames = 98
	if stats.Frames != wantFrames {
		t.Errorf("expected %d frames, got %d", wantFrames, stats.Frames)
	}
	if len(rec.records) != wantFrames {
		t.Fatalf("expected %d records, got %d", wantFrames, len(rec.records))
	}
	if stats.VoiceFrames != 0 || stats.VoiceRatio != 0 {
		t.Errorf("expected zero voice activity, got %d frames ratio %g",
			stats.VoiceFrames, stats.VoiceRatio)
	}
	if stats.State != "terminated" {
		t.Errorf("expected terminated state, got %q", stats.State)
	}

	last := time.Duration(-1)
	for i, r := range rec.records {
		if r.Decision != 0 {
			t.Errorf("record %d: expected silence decision, got %d", i, r.Decision)
		}
		if r.Time <= last {
			t.Errorf("record %d: timestamp %v not increasing after %v", i, r.Time, last)
		}
		last = r.Time
	}
	if step := rec.records[1].Time - rec.records[0].Time; step != 10*time.Millisecond {
		t.Errorf("expected 10ms frame step, got %v", step)
	}
}

func TestDetectorToneRunVoiced(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), 1) // sigmoid(1) > 0.5: voice everywhere
	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/16000)
	}
	rec := &recorder{}

	stats, err := det.Run(context.Background(), audio.NewSliceSource(samples), 16000, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := 48; stats.Frames != want {
		t.Errorf("expected %d frames, got %d", want, stats.Frames)
	}
	if stats.VoiceFrames != stats.Frames {
		t.Errorf("expected all frames voiced, got %d of %d", stats.VoiceFrames, stats.Frames)
	}
	if stats.VoiceRatio != 1 {
		t.Errorf("expected voice ratio 1, got %g", stats.VoiceRatio)
	}
}

func TestDetectorEmptyInput(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), -1)
	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	// Shorter than one frame: no record can be produced.
	src := audio.NewSliceSource(make([]float64, 100))
	_, err = det.Run(context.Background(), src, 16000, &recorder{})
	if !errors.Is(err, pipeline.ErrEmptyOutput) {
		t.Errorf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestDetectorStatsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Normalize.StatsPath = writeStats(t, dir, 10) // feature dimension is 24
	cfg.Classifier.WeightsPath = writeWeights(t, dir, 24, 4, 2, 0)
	cfg.Output.Path = filepath.Join(dir, "out.csv")

	_, err := NewDetector(cfg, testLogger(), nil)
	if !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig for stats dimension mismatch, got %v", err)
	}
}

func TestDetectorNetworkDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Normalize.StatsPath = writeStats(t, dir, 24)
	cfg.Classifier.WeightsPath = writeWeights(t, dir, 30, 4, 2, 0)
	cfg.Output.Path = filepath.Join(dir, "out.csv")

	_, err := NewDetector(cfg, testLogger(), nil)
	if !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig for network dimension mismatch, got %v", err)
	}
}

func TestDetectorCancellation(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), -1)
	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := audio.NewSliceSource(make([]float64, 16000))
	_, err = det.Run(ctx, src, 16000, &recorder{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation error, got %v", err)
	}
}

func TestDetectorStatus(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), -1)
	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	if st, ok := det.Status().(RunStats); !ok || st.State != "idle" {
		t.Errorf("expected idle status before run, got %+v", det.Status())
	}

	src := audio.NewSliceSource(make([]float64, 16000))
	if _, err := det.Run(context.Background(), src, 16000, &recorder{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st, ok := det.Status().(RunStats)
	if !ok {
		t.Fatalf("expected RunStats status, got %T", det.Status())
	}
	if st.Frames != 98 {
		t.Errorf("expected 98 frames in status, got %d", st.Frames)
	}
	if st.State != "terminated" {
		t.Errorf("expected terminated state in status, got %q", st.State)
	}
}

func TestDetectorNormalizationDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Normalize.UseMean = false
	cfg.Normalize.UseStd = false
	cfg.Classifier.WeightsPath = writeWeights(t, dir, 24, 4, 2, -1)
	cfg.Output.Path = filepath.Join(dir, "out.csv")

	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	src := audio.NewSliceSource(make([]float64, 16000))
	stats, err := det.Run(context.Background(), src, 16000, &recorder{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Frames != 98 {
		t.Errorf("expected 98 frames without normalization, got %d", stats.Frames)
	}
}

func TestDetectorCompressionDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir, -1)
	cfg.PLP.Compress = false
	cfg.PLP.Compression = 0 // ignored while compression is off

	det, err := NewDetector(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	src := audio.NewSliceSource(make([]float64, 16000))
	stats, err := det.Run(context.Background(), src, 16000, &recorder{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Frames != 98 {
		t.Errorf("expected 98 frames without compression, got %d", stats.Frames)
	}
}
