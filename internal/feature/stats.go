package feature

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/skypro1111/plp-vad/internal/pipeline"
)

// statsMagic is the header of the normalization statistics file format.
const statsMagic = "MVNSTATS 1"

// Stats holds pretrained per-dimension normalization statistics.
type Stats struct {
	Mean []float64
	Std  []float64
}

// Dim returns the feature dimension the statistics were trained for.
func (s *Stats) Dim() int { return len(s.Mean) }

// LoadStats reads a statistics file:
//
//	MVNSTATS 1
//	dim <n>
//	mean <n floats>
//	std <n floats>
func LoadStats(path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening stats file: %v", pipeline.ErrResource, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line, err := nextLine(sc)
	if err != nil {
		return nil, fmt.Errorf("%w: stats file %s: %v", pipeline.ErrConfig, path, err)
	}
	if line != statsMagic {
		return nil, fmt.Errorf("%w: stats file %s: unsupported header %q", pipeline.ErrConfig, path, line)
	}

	line, err = nextLine(sc)
	if err != nil {
		return nil, fmt.Errorf("%w: stats file %s: %v", pipeline.ErrConfig, path, err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "dim" {
		return nil, fmt.Errorf("%w: stats file %s: expected dim declaration, got %q", pipeline.ErrConfig, path, line)
	}
	dim, err := strconv.Atoi(fields[1])
	if err != nil || dim < 1 {
		return nil, fmt.Errorf("%w: stats file %s: invalid dimension %q", pipeline.ErrConfig, path, fields[1])
	}

	mean, err := vectorLine(sc, "mean", dim)
	if err != nil {
		return nil, fmt.Errorf("%w: stats file %s: %v", pipeline.ErrConfig, path, err)
	}
	std, err := vectorLine(sc, "std", dim)
	if err != nil {
		return nil, fmt.Errorf("%w: stats file %s: %v", pipeline.ErrConfig, path, err)
	}
	for i, v := range std {
		if v <= 0 {
			return nil, fmt.Errorf("%w: stats file %s: std[%d] must be positive, got %g",
				pipeline.ErrConfig, path, i, v)
		}
	}
	return &Stats{Mean: mean, Std: std}, nil
}

// nextLine returns the next non-empty line.
func nextLine(sc *bufio.Scanner) (string, error) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return line, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("unexpected end of file")
}

// vectorLine parses a line of the form "<key> <dim floats>".
func vectorLine(sc *bufio.Scanner, key string, dim int) ([]float64, error) {
	line, err := nextLine(sc)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != dim+1 || fields[0] != key {
		return nil, fmt.Errorf("expected %q vector of %d values, got %d fields", key, dim, len(fields))
	}
	vec := make([]float64, dim)
	for i, s := range fields[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %v", key, i, err)
		}
		vec[i] = v
	}
	return vec, nil
}
