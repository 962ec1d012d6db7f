package nnet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// smallWeightFile is a complete single-layer network: 2 inputs, 2 hidden
// units, 2 outputs.
const smallWeightFile = `NNET 1
lstm 2 2
Wi
0.1 0.2
0.3 0.4
Wf
0.5 0.6
0.7 0.8
Wo
0.9 1.0
1.1 1.2
Wg
1.3 1.4
1.5 1.6
Ri
0.01 0.02
0.03 0.04
Rf
0.05 0.06
0.07 0.08
Ro
0.09 0.10
0.11 0.12
Rg
0.13 0.14
0.15 0.16
bi 0.1 0.2
bf 0.3 0.4
bo 0.5 0.6
bg 0.7 0.8
dense 2 2
W
1 0
0 1
b 0.25 -0.25
sigmoid
end
`

func writeWeightFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing weight fixture: %v", err)
	}
	return path
}

func TestLoadNetwork(t *testing.T) {
	net, err := LoadNetwork(writeWeightFile(t, smallWeightFile))
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}

	if len(net.Layers) != 1 {
		t.Fatalf("expected 1 recurrent layer, got %d", len(net.Layers))
	}
	if net.InputDim() != 2 || net.OutputDim() != 2 {
		t.Errorf("expected 2x2 network, got %dx%d", net.InputDim(), net.OutputDim())
	}

	l := net.Layers[0]
	if l.Wi[1][0] != 0.3 {
		t.Errorf("expected Wi[1][0] = 0.3, got %g", l.Wi[1][0])
	}
	if l.Rg[1][1] != 0.16 {
		t.Errorf("expected Rg[1][1] = 0.16, got %g", l.Rg[1][1])
	}
	if l.Bg[0] != 0.7 {
		t.Errorf("expected bg[0] = 0.7, got %g", l.Bg[0])
	}
	if net.Output.Activation != ActivationSigmoid {
		t.Errorf("expected sigmoid activation, got %q", net.Output.Activation)
	}
	if net.Output.B[1] != -0.25 {
		t.Errorf("expected b[1] = -0.25, got %g", net.Output.B[1])
	}
}

func TestLoadNetworkMultiLayer(t *testing.T) {
	// Two stacked layers: 1 -> 1 -> 1 with an identity-ish dense head.
	content := `NNET 1
lstm 1 1
Wi
0.1
Wf
0.2
Wo
0.3
Wg
0.4
Ri
0.5
Rf
0.6
Ro
0.7
Rg
0.8
bi 0
bf 0
bo 0
bg 0
lstm 1 1
Wi
1
Wf
1
Wo
1
Wg
1
Ri
0
Rf
0
Ro
0
Rg
0
bi 0
bf 0
bo 0
bg 0
dense 1 2
W
1
-1
b 0 0
softmax
end
`
	net, err := LoadNetwork(writeWeightFile(t, content))
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	if len(net.Layers) != 2 {
		t.Errorf("expected 2 layers, got %d", len(net.Layers))
	}
	if net.OutputDim() != 2 {
		t.Errorf("expected 2 outputs, got %d", net.OutputDim())
	}
	if net.Output.Activation != ActivationSoftmax {
		t.Errorf("expected softmax, got %q", net.Output.Activation)
	}
}

func TestLoadNetworkErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"bad magic", func(s string) string {
			return strings.Replace(s, "NNET 1", "NNET 9", 1)
		}},
		{"wrong matrix key", func(s string) string {
			return strings.Replace(s, "\nWf\n", "\nWx\n", 1)
		}},
		{"wrong float count", func(s string) string {
			return strings.Replace(s, "0.3 0.4", "0.3 0.4 0.5", 1)
		}},
		{"unparsable value", func(s string) string {
			return strings.Replace(s, "0.9 1.0", "0.9 one", 1)
		}},
		{"wrong bias key", func(s string) string {
			return strings.Replace(s, "bf 0.3 0.4", "bz 0.3 0.4", 1)
		}},
		{"bad activation", func(s string) string {
			return strings.Replace(s, "sigmoid", "relu", 1)
		}},
		{"missing end", func(s string) string {
			return strings.Replace(s, "\nend\n", "\n", 1)
		}},
		{"unexpected block", func(s string) string {
			return strings.Replace(s, "lstm 2 2", "gru 2 2", 1)
		}},
		{"bad dimensions", func(s string) string {
			return strings.Replace(s, "lstm 2 2", "lstm 0 2", 1)
		}},
		{"truncated", func(s string) string {
			return s[:len(s)/2]
		}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			path := writeWeightFile(t, tt.mutate(smallWeightFile))
			if _, err := LoadNetwork(path); !errors.Is(err, pipeline.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadNetworkChainMismatch(t *testing.T) {
	// Dense input 3 does not chain from hidden dimension 2.
	content := strings.Replace(smallWeightFile, "dense 2 2", "dense 3 2", 1)
	content = strings.Replace(content, "W\n1 0\n0 1\n", "W\n1 0 0\n0 1 0\n", 1)
	path := writeWeightFile(t, content)
	if _, err := LoadNetwork(path); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig for dimension chain break, got %v", err)
	}
}

func TestLoadNetworkMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.txt")
	if _, err := LoadNetwork(path); !errors.Is(err, pipeline.ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}
}

func TestLoadedNetworkRunsForward(t *testing.T) {
	net, err := LoadNetwork(writeWeightFile(t, smallWeightFile))
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	out, err := net.Forward([]float64{0.5, -0.5}, net.NewState())
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for i, v := range out {
		if v <= 0 || v >= 1 {
			t.Errorf("output %d: expected sigmoid activation in (0, 1), got %g", i, v)
		}
	}
}
