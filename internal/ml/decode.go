package ml

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	KindTreeEnsemble = "tree_ensemble"
	KindLogistic     = "logistic"
	KindStandard     = "standard"
	KindTree         = "tree"
	KindLinear       = "linear"

	expectedValueTolerance = 1e-6
)

type modelFile struct {
	Kind         string     `json:"kind"`
	Objective    string     `json:"objective"`
	BaseScore    float64    `json:"base_score"`
	FeatureNames []string   `json:"feature_names"`
	NumFeatures  int        `json:"num_features"`
	Trees        []TreeNode `json:"trees"`
	Intercept    float64    `json:"intercept"`
	Coefficients []float64  `json:"coefficients"`
}

type scalerFile struct {
	Kind         string    `json:"kind"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	FeatureNames []string  `json:"feature_names"`
}

type explainerFile struct {
	Kind                string    `json:"kind"`
	ExpectedValue       *float64  `json:"expected_value"`
	FeaturePerturbation string    `json:"feature_perturbation"`
	Mean                []float64 `json:"mean"`
}

// Named is implemented by artifacts that carry the column names they were fitted on.
type Named interface {
	FeatureNames() []string
}

func DecodeModel(data []byte) (Model, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	switch f.Kind {
	case KindTreeEnsemble, "":
		return NewTreeEnsemble(TreeEnsembleSpec{
			Objective:    f.Objective,
			BaseScore:    f.BaseScore,
			FeatureNames: f.FeatureNames,
			NumFeatures:  f.NumFeatures,
			Trees:        f.Trees,
		})
	case KindLogistic:
		return NewLogisticModel(f.Intercept, f.Coefficients, f.FeatureNames)
	default:
		return nil, fmt.Errorf("%w: model kind %q", ErrUnsupportedKind, f.Kind)
	}
}

func DecodeScaler(data []byte) (Scaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}

	switch f.Kind {
	case KindStandard, "":
		return NewStandardScaler(f.Mean, f.Scale, f.FeatureNames)
	default:
		return nil, fmt.Errorf("%w: scaler kind %q", ErrUnsupportedKind, f.Kind)
	}
}

// DecodeExplainer builds the explainer over the already-decoded model. A
// stored expected_value must agree with the baseline derived from the model.
func DecodeExplainer(data []byte, model Model) (Explainer, error) {
	var f explainerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode explainer: %w", err)
	}

	var (
		explainer Explainer
		err       error
	)

	switch f.Kind {
	case KindTree:
		ensemble, ok := model.(*TreeEnsemble)
		if !ok {
			return nil, fmt.Errorf("%w: tree explainer needs a tree ensemble, got %T", ErrExplainerMismatch, model)
		}
		if f.FeaturePerturbation != "" && f.FeaturePerturbation != "tree_path_dependent" {
			return nil, fmt.Errorf("%w: feature_perturbation %q", ErrUnsupportedKind, f.FeaturePerturbation)
		}
		explainer = NewTreeExplainer(ensemble)
	case KindLinear:
		logistic, ok := model.(*LogisticModel)
		if !ok {
			return nil, fmt.Errorf("%w: linear explainer needs a logistic model, got %T", ErrExplainerMismatch, model)
		}
		explainer, err = NewLinearExplainer(logistic, f.Mean)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: explainer kind %q", ErrUnsupportedKind, f.Kind)
	}

	if f.ExpectedValue != nil {
		derived := explainer.ExpectedValue()
		if math.Abs(*f.ExpectedValue-derived) > expectedValueTolerance*math.Max(1, math.Abs(derived)) {
			return nil, fmt.Errorf("%w: stored expected_value %v, model gives %v", ErrExplainerMismatch, *f.ExpectedValue, derived)
		}
	}

	return explainer, nil
}
