package plp

import (
	"errors"
	"math"
	"testing"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

func TestRastaPole(t *testing.T) {
	r, err := NewRasta(1, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}
	want := math.Exp(-2 * math.Pi * 0.9 / 100)
	if math.Abs(r.Pole()-want) > 1e-15 {
		t.Errorf("expected pole %g, got %g", want, r.Pole())
	}
	if r.Pole() <= 0.9 || r.Pole() >= 1 {
		t.Errorf("expected pole just below 1, got %g", r.Pole())
	}
}

func TestRastaWarmup(t *testing.T) {
	r, err := NewRasta(2, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}

	for frame := 0; frame < 4; frame++ {
		bands := []float64{1, 5}
		if err := r.Filter(bands); err != nil {
			t.Fatalf("Filter frame %d: %v", frame, err)
		}
		if bands[0] != 0 || bands[1] != 0 {
			t.Errorf("warmup frame %d: expected zero output, got %v", frame, bands)
		}
	}

	bands := []float64{1, 5}
	if err := r.Filter(bands); err != nil {
		t.Fatalf("Filter frame 4: %v", err)
	}
	// Constant input through the zero-sum FIR numerator stays zero even
	// after warmup.
	if math.Abs(bands[0]) > 1e-12 || math.Abs(bands[1]) > 1e-12 {
		t.Errorf("expected constant input suppressed, got %v", bands)
	}
}

func TestRastaSuppressesDC(t *testing.T) {
	r, err := NewRasta(1, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}

	// A constant band trajectory is pure DC; the bandpass must reject it.
	for frame := 0; frame < 50; frame++ {
		bands := []float64{3}
		if err := r.Filter(bands); err != nil {
			t.Fatalf("Filter frame %d: %v", frame, err)
		}
		if math.Abs(bands[0]) > 1e-12 {
			t.Errorf("frame %d: expected DC rejected, got %g", frame, bands[0])
		}
	}
}

func TestRastaPassesModulation(t *testing.T) {
	r, err := NewRasta(1, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}

	// A 4 Hz modulation at 100 fps sits inside the passband and must come
	// through with nonzero energy after warmup.
	energy := 0.0
	for frame := 0; frame < 100; frame++ {
		bands := []float64{math.Sin(2 * math.Pi * 4 * float64(frame) / 100)}
		if err := r.Filter(bands); err != nil {
			t.Fatalf("Filter frame %d: %v", frame, err)
		}
		if frame >= 10 {
			energy += bands[0] * bands[0]
		}
	}
	if energy < 0.1 {
		t.Errorf("expected in-band modulation to pass, got energy %g", energy)
	}
}

func TestRastaResetClearsState(t *testing.T) {
	r, err := NewRasta(1, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}

	first := make([]float64, 10)
	for frame := 0; frame < 10; frame++ {
		bands := []float64{float64(frame % 3)}
		if err := r.Filter(bands); err != nil {
			t.Fatalf("Filter: %v", err)
		}
		first[frame] = bands[0]
	}

	r.Reset()
	for frame := 0; frame < 10; frame++ {
		bands := []float64{float64(frame % 3)}
		if err := r.Filter(bands); err != nil {
			t.Fatalf("Filter after reset: %v", err)
		}
		if bands[0] != first[frame] {
			t.Errorf("frame %d: expected identical trajectory after reset, got %g vs %g",
				frame, bands[0], first[frame])
		}
	}
}

func TestRastaBandMismatch(t *testing.T) {
	r, err := NewRasta(3, 0.9, 12.8, 100)
	if err != nil {
		t.Fatalf("NewRasta: %v", err)
	}
	if err := r.Filter([]float64{1, 2}); !errors.Is(err, pipeline.ErrStreamState) {
		t.Errorf("expected ErrStreamState for band mismatch, got %v", err)
	}
}

func TestRastaValidation(t *testing.T) {
	cases := []struct {
		name                    string
		bands                   int
		lower, upper, frameRate float64
	}{
		{"zero bands", 0, 0.9, 12.8, 100},
		{"zero lower cutoff", 26, 0, 12.8, 100},
		{"upper below lower", 26, 5, 3, 100},
		{"upper above half frame rate", 26, 0.9, 60, 100},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRasta(tt.bands, tt.lower, tt.upper, tt.frameRate); !errors.Is(err, pipeline.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}
