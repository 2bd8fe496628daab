// Package risk turns a feature row into a thresholded risk assessment and a
// local explanation of that single prediction.
package risk

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/glycowatch/backend/internal/ml"
	"github.com/glycowatch/backend/internal/schema"
)

// DefaultThreshold is a fixed policy constant, not learned from data.
const DefaultThreshold = 0.50

type Label string

const (
	WellControlled Label = "well_controlled"
	HighRisk       Label = "high_risk"
)

func (l Label) Display() string {
	switch l {
	case HighRisk:
		return "High-Risk"
	case WellControlled:
		return "Well-Controlled"
	default:
		return string(l)
	}
}

func ParseLabel(s string) (Label, error) {
	switch s {
	case string(HighRisk), "High-Risk":
		return HighRisk, nil
	case string(WellControlled), "Well-Controlled":
		return WellControlled, nil
	default:
		return "", fmt.Errorf("unknown risk label %q", s)
	}
}

type Assessment struct {
	ID          string  `json:"assessment_id"`
	Probability float64 `json:"probability"`
	Label       Label   `json:"label"`
	Threshold   float64 `json:"threshold"`
}

// Classify is strict: a probability exactly at the threshold is WellControlled.
func Classify(probability, threshold float64) Label {
	if probability > threshold {
		return HighRisk
	}
	return WellControlled
}

type Engine struct {
	scaler    ml.Scaler
	model     ml.Model
	threshold float64
}

// NewEngine falls back to DefaultThreshold when threshold is outside (0, 1).
func NewEngine(scaler ml.Scaler, model ml.Model, threshold float64) *Engine {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Engine{
		scaler:    scaler,
		model:     model,
		threshold: threshold,
	}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Prediction is one classified row. Scaled is exactly what the model saw and
// Margin is its log-odds output for the positive class.
type Prediction struct {
	Assessment Assessment
	Scaled     []float64
	Margin     float64
}

func (e *Engine) Predict(row schema.Row) (Prediction, error) {
	scaled, err := e.scaler.Transform(row.Values)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to scale features: %w", err)
	}

	margin, err := e.model.Margin(scaled)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to predict: %w", err)
	}

	p := ml.Sigmoid(margin)
	return Prediction{
		Assessment: Assessment{
			ID:          uuid.New().String(),
			Probability: p,
			Label:       Classify(p, e.threshold),
			Threshold:   e.threshold,
		},
		Scaled: scaled,
		Margin: margin,
	}, nil
}
