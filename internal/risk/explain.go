package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/glycowatch/backend/internal/ml"
	"github.com/glycowatch/backend/internal/schema"
)

const LinkLogit = "logit"

// additivityTolerance bounds |Baseline + sum(Attribution) - margin|.
const additivityTolerance = 1e-6

var ErrAttributionMismatch = errors.New("attributions do not add up to the model output")

type Contribution struct {
	Feature     string  `json:"feature"`
	Value       float64 `json:"value"`
	Attribution float64 `json:"attribution"`
}

// Explanation is additive in margin space: Baseline plus every Attribution
// equals Output.
type Explanation struct {
	Baseline      float64        `json:"baseline"`
	Output        float64        `json:"output"`
	Link          string         `json:"link"`
	Contributions []Contribution `json:"contributions"`
}

func (e Explanation) Probability() float64 {
	return ml.Sigmoid(e.Output)
}

func (e Explanation) BaselineProbability() float64 {
	return ml.Sigmoid(e.Baseline)
}

// Top returns the n contributions with the largest magnitude, ties kept in
// schema order. n <= 0 returns all of them.
func (e Explanation) Top(n int) []Contribution {
	out := append([]Contribution(nil), e.Contributions...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Attribution) > math.Abs(out[j].Attribution)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Explain attributes the scaled row and labels each slot with the value the
// user entered, not the scaled one. Output is the model's own margin; the
// attributions must reproduce it within additivityTolerance.
func Explain(scaled []float64, original schema.Row, explainer ml.Explainer, margin float64) (Explanation, error) {
	if len(scaled) != original.Len() {
		return Explanation{}, fmt.Errorf("%w: scaled row has %d columns, original has %d", ml.ErrInputWidth, len(scaled), original.Len())
	}

	attr, err := explainer.Attribute(scaled)
	if err != nil {
		return Explanation{}, fmt.Errorf("failed to attribute prediction: %w", err)
	}
	if len(attr.Values) != len(scaled) {
		return Explanation{}, fmt.Errorf("%w: %d attributions for %d columns", ml.ErrInputWidth, len(attr.Values), len(scaled))
	}
	if gap := math.Abs(attr.Sum() - margin); math.IsNaN(gap) || gap > additivityTolerance*math.Max(1, math.Abs(margin)) {
		return Explanation{}, fmt.Errorf("%w: baseline plus attributions is %g, margin is %g", ErrAttributionMismatch, attr.Sum(), margin)
	}

	contributions := make([]Contribution, len(scaled))
	for i, name := range original.Columns {
		contributions[i] = Contribution{
			Feature:     name,
			Value:       original.Values[i],
			Attribution: attr.Values[i],
		}
	}

	return Explanation{
		Baseline:      attr.Baseline,
		Output:        margin,
		Link:          LinkLogit,
		Contributions: contributions,
	}, nil
}
