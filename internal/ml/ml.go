// Package ml defines the narrow capabilities the risk pipeline needs from a
// trained model runtime, and the JSON-backed implementations loaded from the
// artifact files.
package ml

import (
	"errors"
	"math"
)

var (
	ErrScaling           = errors.New("scaling error")
	ErrInputWidth        = errors.New("input width mismatch")
	ErrUnsupportedKind   = errors.New("unsupported artifact kind")
	ErrExplainerMismatch = errors.New("explainer does not match model")
)

// Scaler is a fitted per-column transform applied before the classifier.
type Scaler interface {
	Transform(row []float64) ([]float64, error)
	Width() int
}

// Model is a binary classifier. Margin is the raw output (log-odds) that
// attributions are additive in.
type Model interface {
	PredictProba(row []float64) ([2]float64, error)
	Margin(row []float64) (float64, error)
	NumFeatures() int
}

type Explainer interface {
	Attribute(row []float64) (Attribution, error)
	ExpectedValue() float64
}

// Attribution holds one weight per feature slot plus the baseline, for exactly
// one row.
type Attribution struct {
	Baseline float64
	Values   []float64
}

func (a Attribution) Sum() float64 {
	total := a.Baseline
	for _, v := range a.Values {
		total += v
	}
	return total
}

func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func probaFromMargin(m float64) [2]float64 {
	p := Sigmoid(m)
	return [2]float64{1 - p, p}
}
