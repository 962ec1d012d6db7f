package nnet

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// weightsMagic is the header of the versioned weight file format agreed
// between training and inference.
const weightsMagic = "NNET 1"

// LoadNetwork reads a classifier weight file:
//
//	NNET 1
//	lstm <in> <hidden>
//	Wi            followed by <hidden> rows of <in> floats
//	Wf Wo Wg      likewise
//	Ri Rf Ro Rg   followed by <hidden> rows of <hidden> floats
//	bi <hidden floats>
//	bf bo bg      likewise
//	dense <in> <out>
//	W             followed by <out> rows of <in> floats
//	b <out floats>
//	<activation>  sigmoid or softmax
//	end
//
// Any number of lstm blocks may precede the dense block. Dimension chaining
// across blocks is validated before the network is returned.
func LoadNetwork(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening weight file: %v", pipeline.ErrResource, err)
	}
	defer f.Close()

	p := &weightsParser{sc: bufio.NewScanner(f), path: path}
	p.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if line := p.line(); line != weightsMagic {
		return nil, p.fail("unsupported header %q", line)
	}

	net := &Network{}
	for {
		line := p.line()
		if p.err != nil {
			return nil, p.err
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "lstm":
			layer := p.lstmBlock(fields)
			if p.err != nil {
				return nil, p.err
			}
			net.Layers = append(net.Layers, layer)
		case "dense":
			net.Output = p.denseBlock(fields)
			if p.err != nil {
				return nil, p.err
			}
			if line := p.line(); line != "end" {
				return nil, p.fail("expected end terminator, got %q", line)
			}
			if err := net.Validate(); err != nil {
				return nil, fmt.Errorf("weight file %s: %w", p.path, err)
			}
			return net, nil
		default:
			return nil, p.fail("unexpected block %q", fields[0])
		}
	}
}

// weightsParser tracks scanner state and the first error encountered.
type weightsParser struct {
	sc   *bufio.Scanner
	path string
	err  error
}

func (p *weightsParser) fail(format string, args ...any) error {
	if p.err == nil {
		p.err = fmt.Errorf("%w: weight file %s: %s", pipeline.ErrConfig, p.path, fmt.Sprintf(format, args...))
	}
	return p.err
}

// line returns the next non-empty line, or "" after an error.
func (p *weightsParser) line() string {
	if p.err != nil {
		return ""
	}
	for p.sc.Scan() {
		line := strings.TrimSpace(p.sc.Text())
		if line != "" {
			return line
		}
	}
	if err := p.sc.Err(); err != nil {
		p.fail("read error: %v", err)
	} else {
		p.fail("unexpected end of file")
	}
	return ""
}

// lstmBlock parses one recurrent layer.
func (p *weightsParser) lstmBlock(header []string) *LSTMLayer {
	in, hidden := p.dims(header, "lstm")
	if p.err != nil {
		return nil
	}
	l := &LSTMLayer{InputDim: in, HiddenDim: hidden}
	l.Wi = p.matrix("Wi", hidden, in)
	l.Wf = p.matrix("Wf", hidden, in)
	l.Wo = p.matrix("Wo", hidden, in)
	l.Wg = p.matrix("Wg", hidden, in)
	l.Ri = p.matrix("Ri", hidden, hidden)
	l.Rf = p.matrix("Rf", hidden, hidden)
	l.Ro = p.matrix("Ro", hidden, hidden)
	l.Rg = p.matrix("Rg", hidden, hidden)
	l.Bi = p.vector("bi", hidden)
	l.Bf = p.vector("bf", hidden)
	l.Bo = p.vector("bo", hidden)
	l.Bg = p.vector("bg", hidden)
	return l
}

// denseBlock parses the output layer including its activation line.
func (p *weightsParser) denseBlock(header []string) *DenseLayer {
	in, out := p.dims(header, "dense")
	if p.err != nil {
		return nil
	}
	d := &DenseLayer{InputDim: in, OutputDim: out}
	d.W = p.matrix("W", out, in)
	d.B = p.vector("b", out)
	d.Activation = p.line()
	return d
}

// dims parses "<kind> <a> <b>" header fields.
func (p *weightsParser) dims(fields []string, kind string) (int, int) {
	if len(fields) != 3 {
		p.fail("malformed %s header %q", kind, strings.Join(fields, " "))
		return 0, 0
	}
	a, err1 := strconv.Atoi(fields[1])
	b, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || a < 1 || b < 1 {
		p.fail("invalid %s dimensions %q x %q", kind, fields[1], fields[2])
		return 0, 0
	}
	return a, b
}

// matrix parses a key line followed by rows x cols float rows.
func (p *weightsParser) matrix(key string, rows, cols int) [][]float64 {
	if p.err != nil {
		return nil
	}
	if line := p.line(); line != key {
		p.fail("expected matrix %q, got %q", key, line)
		return nil
	}
	m := make([][]float64, rows)
	for r := range m {
		m[r] = p.floats(p.line(), cols, fmt.Sprintf("%s row %d", key, r))
		if p.err != nil {
			return nil
		}
	}
	return m
}

// vector parses a "<key> <n floats>" line.
func (p *weightsParser) vector(key string, n int) []float64 {
	if p.err != nil {
		return nil
	}
	line := p.line()
	if p.err != nil {
		return nil
	}
	fields := strings.Fields(line)
	if fields[0] != key {
		p.fail("expected vector %q, got %q", key, fields[0])
		return nil
	}
	return p.floats(strings.Join(fields[1:], " "), n, key)
}

// floats parses exactly n whitespace-separated values.
func (p *weightsParser) floats(line string, n int, what string) []float64 {
	if p.err != nil {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) != n {
		p.fail("%s: expected %d values, got %d", what, n, len(fields))
		return nil
	}
	vec := make([]float64, n)
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.fail("%s: value %d: %v", what, i, err)
			return nil
		}
		vec[i] = v
	}
	return vec
}
