package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/ml"
	"github.com/glycowatch/backend/internal/schema"
)

func loadHandle(t *testing.T) *assets.Handle {
	t.Helper()
	h, err := assets.Load(context.Background(), assets.Paths{
		Model:     "../assets/testdata/xgb_model.json",
		Scaler:    "../assets/testdata/scaler.json",
		Explainer: "../assets/testdata/shap_explainer.json",
		Schema:    "../assets/testdata/training_columns.csv",
	})
	require.NoError(t, err)
	return h
}

func examplePatient() schema.PatientSummary {
	return schema.PatientSummary{
		StdGlucoseAllTime:        50.0,
		MinGlucoseAllTime:        70,
		MaxGlucoseAllTime:        350,
		AvgDailyInsulinAllTime:   35,
		HypoEventCountAllTime:    5,
		MeanGlucoseLast30Days:    160,
		StdGlucoseLast30Days:     60.0,
		GlycemicVariabilityIndex: 0.4,
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	assert.Equal(t, WellControlled, Classify(0.5, DefaultThreshold))
	assert.Equal(t, HighRisk, Classify(0.5000001, DefaultThreshold))
	assert.Equal(t, WellControlled, Classify(0, DefaultThreshold))
	assert.Equal(t, HighRisk, Classify(1, DefaultThreshold))
	assert.Equal(t, HighRisk, Classify(0.35, 0.3))
}

func TestLabelDisplayAndParse(t *testing.T) {
	assert.Equal(t, "High-Risk", HighRisk.Display())
	assert.Equal(t, "Well-Controlled", WellControlled.Display())

	l, err := ParseLabel("High-Risk")
	require.NoError(t, err)
	assert.Equal(t, HighRisk, l)

	l, err = ParseLabel("well_controlled")
	require.NoError(t, err)
	assert.Equal(t, WellControlled, l)

	_, err = ParseLabel("unknown")
	assert.Error(t, err)
}

func TestNewEngineThresholdFallback(t *testing.T) {
	h := loadHandle(t)
	assert.Equal(t, DefaultThreshold, NewEngine(h.Scaler, h.Model, 0).Threshold())
	assert.Equal(t, DefaultThreshold, NewEngine(h.Scaler, h.Model, 1).Threshold())
	assert.Equal(t, 0.7, NewEngine(h.Scaler, h.Model, 0.7).Threshold())
}

func TestAssessEndToEnd(t *testing.T) {
	h := loadHandle(t)
	p := NewPipeline(h, DefaultThreshold)

	res, err := p.Assess(context.Background(), examplePatient())
	require.NoError(t, err)

	assert.Equal(t, HighRisk, res.Assessment.Label)
	assert.InDelta(t, 0.62, res.Assessment.Probability, 1e-9)
	assert.Equal(t, DefaultThreshold, res.Assessment.Threshold)
	assert.NotEmpty(t, res.Assessment.ID)

	exp := res.Explanation
	assert.Equal(t, LinkLogit, exp.Link)
	require.Len(t, exp.Contributions, 10)
	assert.InDelta(t, h.Explainer.ExpectedValue(), exp.Baseline, 1e-12)
	assert.InDelta(t, 0.4895482253187058, exp.Output, 1e-6)
	assert.InDelta(t, res.Assessment.Probability, exp.Probability(), 1e-6)

	sum := exp.Baseline
	for _, c := range exp.Contributions {
		sum += c.Attribution
	}
	assert.InDelta(t, exp.Output, sum, 1e-6)

	// labels carry what the user entered, not scaled values
	byName := map[string]Contribution{}
	for _, c := range exp.Contributions {
		byName[c.Feature] = c
	}
	assert.Equal(t, 160.0, byName[schema.FieldMeanGlucoseLast30Days].Value)
	assert.InDelta(t, 0.34422893519122344, byName[schema.FieldMeanGlucoseLast30Days].Attribution, 1e-9)
	assert.Equal(t, 0.0, byName["readings_count_alltime"].Value)
}

func TestAssessIsDeterministic(t *testing.T) {
	p := NewPipeline(loadHandle(t), DefaultThreshold)

	a, err := p.Assess(context.Background(), examplePatient())
	require.NoError(t, err)
	b, err := p.Assess(context.Background(), examplePatient())
	require.NoError(t, err)

	assert.Equal(t, a.Assessment.Probability, b.Assessment.Probability)
	assert.Equal(t, a.Explanation, b.Explanation)
	assert.NotEqual(t, a.Assessment.ID, b.Assessment.ID)
}

func TestAssessLowRisk(t *testing.T) {
	p := NewPipeline(loadHandle(t), DefaultThreshold)

	res, err := p.Assess(context.Background(), schema.PatientSummary{
		StdGlucoseAllTime:        20,
		MinGlucoseAllTime:        80,
		MaxGlucoseAllTime:        220,
		AvgDailyInsulinAllTime:   30,
		HypoEventCountAllTime:    1,
		MeanGlucoseLast30Days:    110,
		StdGlucoseLast30Days:     20,
		GlycemicVariabilityIndex: 0.15,
	})
	require.NoError(t, err)
	assert.Equal(t, WellControlled, res.Assessment.Label)
	assert.InDelta(t, 0.320821300824607, res.Assessment.Probability, 1e-9)
}

func TestAssessSchemaDrift(t *testing.T) {
	h := loadHandle(t)
	drifted, err := schema.New([]string{
		"std_glucose_alltime", "min_glucose_alltime", "max_glucose_alltime",
		"avg_daily_insulin_alltime", "mean_glucose_last_30_days",
		"std_glucose_last_30_days", "glycemic_variability_index",
		"readings_count_alltime", "time_in_range_last_30_days", "hypo_events_total",
	})
	require.NoError(t, err)
	h.Schema = drifted

	_, err = NewPipeline(h, DefaultThreshold).Assess(context.Background(), examplePatient())
	assert.ErrorIs(t, err, schema.ErrUnknownFeatureName)
	assert.Equal(t, "unknown_feature", ErrorKind(err))
}

func TestAssessScalingError(t *testing.T) {
	h := loadHandle(t)
	wide, err := schema.New(append(h.Schema.Names(), "extra_column"))
	require.NoError(t, err)
	h.Schema = wide

	_, err = NewPipeline(h, DefaultThreshold).Assess(context.Background(), examplePatient())
	assert.ErrorIs(t, err, ml.ErrScaling)
	assert.Equal(t, "scaling", ErrorKind(err))
}

func TestAssessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(loadHandle(t), DefaultThreshold).Assess(ctx, examplePatient())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplanationTop(t *testing.T) {
	exp := Explanation{Contributions: []Contribution{
		{Feature: "a", Attribution: 0.1},
		{Feature: "b", Attribution: -0.5},
		{Feature: "c", Attribution: 0.3},
		{Feature: "d", Attribution: -0.1},
	}}

	top := exp.Top(2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Feature)
	assert.Equal(t, "c", top[1].Feature)

	all := exp.Top(0)
	assert.Equal(t, []string{"b", "c", "a", "d"}, []string{all[0].Feature, all[1].Feature, all[2].Feature, all[3].Feature})
	assert.Equal(t, "a", exp.Contributions[0].Feature)
}

func TestExplainWidthMismatch(t *testing.T) {
	h := loadHandle(t)
	row, err := schema.Build(h.Schema, examplePatient())
	require.NoError(t, err)

	_, err = Explain([]float64{1, 2}, row, h.Explainer, 0)
	assert.ErrorIs(t, err, ml.ErrInputWidth)
}

type skewedExplainer struct {
	inner ml.Explainer
	skew  float64
}

func (x skewedExplainer) Attribute(row []float64) (ml.Attribution, error) {
	attr, err := x.inner.Attribute(row)
	if err != nil {
		return ml.Attribution{}, err
	}
	attr.Values[0] += x.skew
	return attr, nil
}

func (x skewedExplainer) ExpectedValue() float64 {
	return x.inner.ExpectedValue()
}

func TestEnginePredictReturnsMargin(t *testing.T) {
	h := loadHandle(t)
	row, err := schema.Build(h.Schema, examplePatient())
	require.NoError(t, err)

	pred, err := NewEngine(h.Scaler, h.Model, DefaultThreshold).Predict(row)
	require.NoError(t, err)

	assert.InDelta(t, 0.4895482253187058, pred.Margin, 1e-9)
	assert.InDelta(t, ml.Sigmoid(pred.Margin), pred.Assessment.Probability, 1e-12)
	assert.Len(t, pred.Scaled, row.Len())
}

func TestExplainOutputIsModelMargin(t *testing.T) {
	h := loadHandle(t)
	row, err := schema.Build(h.Schema, examplePatient())
	require.NoError(t, err)
	pred, err := NewEngine(h.Scaler, h.Model, DefaultThreshold).Predict(row)
	require.NoError(t, err)

	// drift well inside the tolerance is accepted, Output still comes from the model
	exp, err := Explain(pred.Scaled, row, skewedExplainer{inner: h.Explainer, skew: 1e-9}, pred.Margin)
	require.NoError(t, err)
	assert.Equal(t, pred.Margin, exp.Output)
}

func TestExplainRejectsNonAdditiveAttribution(t *testing.T) {
	h := loadHandle(t)
	row, err := schema.Build(h.Schema, examplePatient())
	require.NoError(t, err)
	pred, err := NewEngine(h.Scaler, h.Model, DefaultThreshold).Predict(row)
	require.NoError(t, err)

	_, err = Explain(pred.Scaled, row, skewedExplainer{inner: h.Explainer, skew: 1e-3}, pred.Margin)
	assert.ErrorIs(t, err, ErrAttributionMismatch)
	assert.Equal(t, "attribution", ErrorKind(err))
}
