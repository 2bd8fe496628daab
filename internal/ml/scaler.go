package ml

import (
	"fmt"
	"math"
)

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	mean         []float64
	scale        []float64
	featureNames []string
}

func NewStandardScaler(mean, scale []float64, featureNames []string) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("%w: scaler has no columns", ErrScaling)
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: mean has %d columns, scale has %d", ErrScaling, len(mean), len(scale))
	}
	if len(featureNames) > 0 && len(featureNames) != len(mean) {
		return nil, fmt.Errorf("%w: %d feature names for %d columns", ErrScaling, len(featureNames), len(mean))
	}

	s := &StandardScaler{
		mean:         append([]float64(nil), mean...),
		scale:        make([]float64, len(scale)),
		featureNames: append([]string(nil), featureNames...),
	}
	for i, v := range scale {
		// zero-variance columns were fitted with scale 1
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}

	return s, nil
}

func (s *StandardScaler) Width() int {
	return len(s.mean)
}

func (s *StandardScaler) FeatureNames() []string {
	return append([]string(nil), s.featureNames...)
}

func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.mean) {
		return nil, fmt.Errorf("%w: row has %d columns, scaler expects %d", ErrScaling, len(row), len(s.mean))
	}

	out := make([]float64, len(row))
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value in column %d", ErrScaling, i)
		}
		out[i] = (v - s.mean[i]) / s.scale[i]
	}

	return out, nil
}
