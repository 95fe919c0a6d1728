// Package classifier loads pretrained anomaly models from disk.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
)

// ErrFeatureMismatch is returned when a model was trained on other columns.
var ErrFeatureMismatch = errors.New("model features do not match extractor")

// Logistic is a logistic regression over scoring.Features.
// Model files are YAML; JSON files parse too.
//
//	name: hdfs-logreg
//	features: [high_keyword_hits, medium_keyword_hits, ...]
//	weights: [2.1, 0.9, ...]
//	bias: -3.0
type Logistic struct {
	Name     string    `yaml:"name" json:"name"`
	Features []string  `yaml:"features" json:"features"`
	Weights  []float64 `yaml:"weights" json:"weights"`
	Bias     float64   `yaml:"bias" json:"bias"`
}

// Load reads and validates a model file.
func Load(path string) (*Logistic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %q: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Logistic, error) {
	var m Logistic
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Logistic) Validate() error {
	want := scoring.FeatureNames
	if len(m.Weights) != len(want) {
		return fmt.Errorf("%w: %d weights, extractor has %d features", ErrFeatureMismatch, len(m.Weights), len(want))
	}
	if len(m.Features) == 0 {
		return nil
	}
	if len(m.Features) != len(want) {
		return fmt.Errorf("%w: %d names, extractor has %d", ErrFeatureMismatch, len(m.Features), len(want))
	}
	for i, name := range m.Features {
		if name != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrFeatureMismatch, i, name, want[i])
		}
	}
	return nil
}

// Predict implements scoring.Predictor
func (m *Logistic) Predict(ctx context.Context, f scoring.Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	z := m.Bias
	for i, x := range f.Vector() {
		z += m.Weights[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}
