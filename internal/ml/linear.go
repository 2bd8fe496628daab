package ml

import "fmt"

// LogisticModel is a fitted logistic regression over scaled features.
type LogisticModel struct {
	intercept    float64
	coef         []float64
	featureNames []string
}

func NewLogisticModel(intercept float64, coef []float64, featureNames []string) (*LogisticModel, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("logistic model has no coefficients")
	}
	if len(featureNames) > 0 && len(featureNames) != len(coef) {
		return nil, fmt.Errorf("%d feature names for %d coefficients", len(featureNames), len(coef))
	}
	return &LogisticModel{
		intercept:    intercept,
		coef:         append([]float64(nil), coef...),
		featureNames: append([]string(nil), featureNames...),
	}, nil
}

func (m *LogisticModel) NumFeatures() int {
	return len(m.coef)
}

func (m *LogisticModel) FeatureNames() []string {
	return append([]string(nil), m.featureNames...)
}

func (m *LogisticModel) Margin(row []float64) (float64, error) {
	if len(row) != len(m.coef) {
		return 0, fmt.Errorf("%w: row has %d columns, model expects %d", ErrInputWidth, len(row), len(m.coef))
	}
	z := m.intercept
	for i, c := range m.coef {
		z += c * row[i]
	}
	return z, nil
}

func (m *LogisticModel) PredictProba(row []float64) ([2]float64, error) {
	z, err := m.Margin(row)
	if err != nil {
		return [2]float64{}, err
	}
	return probaFromMargin(z), nil
}

// LinearExplainer gives exact SHAP values for a linear margin under feature
// independence: phi_i = coef_i * (x_i - mean_i).
type LinearExplainer struct {
	model    *LogisticModel
	mean     []float64
	expected float64
}

// NewLinearExplainer uses zero means when mean is nil, which is the case for
// standardised training data.
func NewLinearExplainer(m *LogisticModel, mean []float64) (*LinearExplainer, error) {
	if mean == nil {
		mean = make([]float64, len(m.coef))
	}
	if len(mean) != len(m.coef) {
		return nil, fmt.Errorf("%w: %d means for %d coefficients", ErrExplainerMismatch, len(mean), len(m.coef))
	}

	expected := m.intercept
	for i, c := range m.coef {
		expected += c * mean[i]
	}

	return &LinearExplainer{
		model:    m,
		mean:     append([]float64(nil), mean...),
		expected: expected,
	}, nil
}

func (x *LinearExplainer) ExpectedValue() float64 {
	return x.expected
}

func (x *LinearExplainer) Attribute(row []float64) (Attribution, error) {
	if len(row) != len(x.model.coef) {
		return Attribution{}, fmt.Errorf("%w: row has %d columns, explainer expects %d", ErrInputWidth, len(row), len(x.model.coef))
	}

	phi := make([]float64, len(row))
	for i, c := range x.model.coef {
		phi[i] = c * (row[i] - x.mean[i])
	}

	return Attribution{Baseline: x.expected, Values: phi}, nil
}
