package dsp

import (
	"errors"
	"math"
	"testing"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

func TestWindowCoefficients(t *testing.T) {
	t.Run("hamming", func(t *testing.T) {
		w, err := WindowCoefficients(WindowHamming, 11)
		if err != nil {
			t.Fatalf("WindowCoefficients: %v", err)
		}
		if math.Abs(w[0]-0.08) > 1e-12 || math.Abs(w[10]-0.08) > 1e-12 {
			t.Errorf("expected hamming endpoints 0.08, got %g and %g", w[0], w[10])
		}
		if math.Abs(w[5]-1) > 1e-12 {
			t.Errorf("expected hamming midpoint 1, got %g", w[5])
		}
	})

	t.Run("hann", func(t *testing.T) {
		w, err := WindowCoefficients(WindowHann, 11)
		if err != nil {
			t.Fatalf("WindowCoefficients: %v", err)
		}
		if w[0] != 0 || math.Abs(w[10]) > 1e-12 {
			t.Errorf("expected hann endpoints 0, got %g and %g", w[0], w[10])
		}
		if math.Abs(w[5]-1) > 1e-12 {
			t.Errorf("expected hann midpoint 1, got %g", w[5])
		}
	})

	t.Run("rectangular", func(t *testing.T) {
		w, err := WindowCoefficients(WindowRectangular, 5)
		if err != nil {
			t.Fatalf("WindowCoefficients: %v", err)
		}
		for i, v := range w {
			if v != 1 {
				t.Errorf("coefficient %d: expected 1, got %g", i, v)
			}
		}
	})

	t.Run("unknown function", func(t *testing.T) {
		if _, err := WindowCoefficients("blackman", 5); !errors.Is(err, pipeline.ErrConfig) {
			t.Errorf("expected ErrConfig, got %v", err)
		}
	})
}

func TestWindowerGainOffset(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)
	cur := out.NewCursor(0)

	w, err := NewWindower(in, out, WindowRectangular, 4, 2, 1)
	if err != nil {
		t.Fatalf("NewWindower: %v", err)
	}
	feedFrames(t, in, []float64{1, 2, 3, 4})
	frames := drainStage(t, w, cur)

	for i, v := range frames[0].Data {
		want := float64(i+1)*2 + 1
		if v != want {
			t.Errorf("sample %d: expected %g, got %g", i, want, v)
		}
	}
}

func TestWindowerLengthMismatch(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)
	out.NewCursor(0)

	w, err := NewWindower(in, out, WindowHamming, 4, 1, 0)
	if err != nil {
		t.Fatalf("NewWindower: %v", err)
	}
	feedFrames(t, in, []float64{1, 2, 3}) // wrong length

	if _, err := w.Step(); !errors.Is(err, pipeline.ErrStreamState) {
		t.Errorf("expected ErrStreamState for frame length mismatch, got %v", err)
	}
}

func TestWindowerValidation(t *testing.T) {
	in, _ := pipeline.NewStream("in", 8)
	out, _ := pipeline.NewStream("out", 8)

	if _, err := NewWindower(in, out, WindowHamming, 1, 1, 0); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig for length 1, got %v", err)
	}
	if _, err := NewWindower(in, out, "triangle", 8, 1, 0); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig for unknown function, got %v", err)
	}
}
