package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../assets/testdata"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fixtureDir, name))
	require.NoError(t, err)
	return data
}

func loadFixture(t *testing.T) (Scaler, Model, Explainer) {
	t.Helper()

	scaler, err := DecodeScaler(readFixture(t, "scaler.json"))
	require.NoError(t, err)
	model, err := DecodeModel(readFixture(t, "xgb_model.json"))
	require.NoError(t, err)
	explainer, err := DecodeExplainer(readFixture(t, "shap_explainer.json"), model)
	require.NoError(t, err)

	return scaler, model, explainer
}

func highRiskRow() []float64 {
	return []float64{50, 70, 350, 35, 5, 160, 60, 0.4, 0, 0}
}

func TestSigmoidLogitRoundTrip(t *testing.T) {
	for _, p := range []float64{0.01, 0.2, 0.5, 0.62, 0.99} {
		assert.InDelta(t, p, Sigmoid(Logit(p)), 1e-12)
	}
	assert.Equal(t, 0.5, Sigmoid(0))
	assert.InDelta(t, 0, Sigmoid(-800), 1e-300)
	assert.InDelta(t, 1, Sigmoid(800), 1e-12)
}

func TestStandardScaler(t *testing.T) {
	s, err := NewStandardScaler([]float64{10, 0, 5}, []float64{2, 0, 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Width())

	out, err := s.Transform([]float64{14, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, -1}, out)

	_, err = s.Transform([]float64{1, 2})
	assert.ErrorIs(t, err, ErrScaling)

	_, err = s.Transform([]float64{1, math.NaN(), 3})
	assert.ErrorIs(t, err, ErrScaling)

	_, err = NewStandardScaler([]float64{1, 2}, []float64{1}, nil)
	assert.ErrorIs(t, err, ErrScaling)
}

func TestTreeEnsembleFixtureMargin(t *testing.T) {
	scaler, model, _ := loadFixture(t)
	assert.Equal(t, 10, model.NumFeatures())
	assert.Equal(t, 10, scaler.Width())

	x, err := scaler.Transform(highRiskRow())
	require.NoError(t, err)

	margin, err := model.Margin(x)
	require.NoError(t, err)
	assert.InDelta(t, 0.4895482253187058, margin, 1e-12)

	proba, err := model.PredictProba(x)
	require.NoError(t, err)
	assert.InDelta(t, 0.62, proba[1], 1e-12)
	assert.InDelta(t, 1, proba[0]+proba[1], 1e-12)

	low, err := scaler.Transform([]float64{20, 80, 220, 30, 1, 110, 20, 0.15, 0, 0})
	require.NoError(t, err)
	proba, err = model.PredictProba(low)
	require.NoError(t, err)
	assert.InDelta(t, 0.320821300824607, proba[1], 1e-12)
}

func TestTreeExplainerFixtureValues(t *testing.T) {
	scaler, model, explainer := loadFixture(t)
	assert.InDelta(t, 0.0013192901274823171, explainer.ExpectedValue(), 1e-12)

	x, err := scaler.Transform(highRiskRow())
	require.NoError(t, err)

	attr, err := explainer.Attribute(x)
	require.NoError(t, err)
	require.Len(t, attr.Values, 10)

	want := []float64{
		-0.05558333333333332, 0, 0, 0, -0.05000000000000001,
		0.34422893519122344, 0.05249999999999999, 0.19708333333333333, 0, 0,
	}
	for i := range want {
		assert.InDelta(t, want[i], attr.Values[i], 1e-9, "feature %d", i)
	}

	margin, err := model.Margin(x)
	require.NoError(t, err)
	assert.InDelta(t, margin, attr.Sum(), 1e-9)
}

func TestTreeExplainerAdditivityAcrossInputs(t *testing.T) {
	scaler, model, explainer := loadFixture(t)

	rows := [][]float64{
		{20, 80, 220, 30, 1, 110, 20, 0.15, 0, 0},
		{100, 40, 600, 80, 50, 400, 100, 1.0, 0, 0},
		{10, 100, 200, 10, 0, 80, 10, 0.1, 0, 0},
		{45, 65, 320, 40, 6, 150, 50, 0.33, 2000, 0.6},
	}
	for _, raw := range rows {
		x, err := scaler.Transform(raw)
		require.NoError(t, err)

		margin, err := model.Margin(x)
		require.NoError(t, err)
		attr, err := explainer.Attribute(x)
		require.NoError(t, err)

		assert.InDelta(t, margin, attr.Sum(), 1e-9)
		// columns the trees never split on get nothing
		assert.Zero(t, attr.Values[1])
		assert.Zero(t, attr.Values[8])
		assert.Zero(t, attr.Values[9])
	}
}

func singleSplit() TreeEnsembleSpec {
	threshold := 0.0
	left, right := -1.0, 1.0
	return TreeEnsembleSpec{
		NumFeatures: 1,
		Trees: []TreeNode{{
			NodeID:         0,
			Split:          "f0",
			SplitCondition: &threshold,
			Yes:            1,
			No:             2,
			Missing:        1,
			Cover:          100,
			Children: []TreeNode{
				{NodeID: 1, Leaf: &left, Cover: 30},
				{NodeID: 2, Leaf: &right, Cover: 70},
			},
		}},
	}
}

func TestSingleSplitAttribution(t *testing.T) {
	e, err := NewTreeEnsemble(singleSplit())
	require.NoError(t, err)

	x := NewTreeExplainer(e)
	assert.InDelta(t, 0.4, x.ExpectedValue(), 1e-12)

	attr, err := x.Attribute([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, attr.Values[0], 1e-12)

	attr, err = x.Attribute([]float64{-1})
	require.NoError(t, err)
	assert.InDelta(t, -1.4, attr.Values[0], 1e-12)

	m, err := e.Margin([]float64{math.NaN()})
	require.NoError(t, err)
	assert.Equal(t, -1.0, m)

	_, err = x.Attribute([]float64{1, 2})
	assert.ErrorIs(t, err, ErrInputWidth)
}

func TestTreeEnsembleRejectsBadTrees(t *testing.T) {
	spec := singleSplit()
	spec.Trees[0].Children[1].Cover = 0
	_, err := NewTreeEnsemble(spec)
	assert.Error(t, err)

	spec = singleSplit()
	spec.Trees[0].Split = "glucose"
	_, err = NewTreeEnsemble(spec)
	assert.Error(t, err)

	spec = singleSplit()
	spec.Trees[0].No = 7
	_, err = NewTreeEnsemble(spec)
	assert.Error(t, err)

	spec = singleSplit()
	spec.Objective = "multi:softprob"
	_, err = NewTreeEnsemble(spec)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestLogisticModelAndLinearExplainer(t *testing.T) {
	m, err := NewLogisticModel(0.2, []float64{0.5, -1}, []string{"a", "b"})
	require.NoError(t, err)

	x, err := NewLinearExplainer(m, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, -0.3, x.ExpectedValue(), 1e-12)

	row := []float64{3, 2}
	margin, err := m.Margin(row)
	require.NoError(t, err)
	assert.InDelta(t, -0.3, margin, 1e-12)

	attr, err := x.Attribute(row)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -1}, attr.Values, 1e-12)
	assert.InDelta(t, margin, attr.Sum(), 1e-12)

	proba, err := m.PredictProba(row)
	require.NoError(t, err)
	assert.InDelta(t, Sigmoid(-0.3), proba[1], 1e-12)
}

func TestDecodeLogisticArtifacts(t *testing.T) {
	model, err := DecodeModel([]byte(`{"kind":"logistic","intercept":-0.5,"coefficients":[1,2],"feature_names":["a","b"]}`))
	require.NoError(t, err)

	explainer, err := DecodeExplainer([]byte(`{"kind":"linear","expected_value":-0.5}`), model)
	require.NoError(t, err)

	attr, err := explainer.Attribute([]float64{1, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, attr.Values, 1e-12)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeModel([]byte(`{"kind":"random_forest"}`))
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = DecodeModel([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeScaler([]byte(`{"kind":"minmax","mean":[1],"scale":[1]}`))
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	model, err := DecodeModel(readFixture(t, "xgb_model.json"))
	require.NoError(t, err)

	_, err = DecodeExplainer([]byte(`{"kind":"tree","expected_value":3.5}`), model)
	assert.ErrorIs(t, err, ErrExplainerMismatch)

	_, err = DecodeExplainer([]byte(`{"kind":"linear"}`), model)
	assert.True(t, errors.Is(err, ErrExplainerMismatch))

	_, err = DecodeExplainer([]byte(`{"kind":"kernel"}`), model)
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	_, err = DecodeExplainer([]byte(`{"kind":"tree","feature_perturbation":"interventional"}`), model)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}
