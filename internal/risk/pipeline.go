package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/metrics"
	"github.com/glycowatch/backend/internal/ml"
	"github.com/glycowatch/backend/internal/schema"
	"github.com/glycowatch/backend/pkg/logger"
)

type Result struct {
	Assessment  Assessment
	Explanation Explanation
	Row         schema.Row
}

// Pipeline runs build, predict and explain against one loaded asset handle.
type Pipeline struct {
	schema    *schema.Schema
	engine    *Engine
	explainer ml.Explainer
}

func NewPipeline(h *assets.Handle, threshold float64) *Pipeline {
	return &Pipeline{
		schema:    h.Schema,
		engine:    NewEngine(h.Scaler, h.Model, threshold),
		explainer: h.Explainer,
	}
}

func (p *Pipeline) Threshold() float64 {
	return p.engine.Threshold()
}

func (p *Pipeline) Schema() *schema.Schema {
	return p.schema
}

func (p *Pipeline) Assess(ctx context.Context, in schema.PatientSummary) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	row, err := schema.Build(p.schema, in)
	if err != nil {
		recordFailure(err)
		return nil, fmt.Errorf("failed to build feature row: %w", err)
	}

	prediction, err := p.engine.Predict(row)
	if err != nil {
		recordFailure(err)
		return nil, err
	}
	metrics.AssessmentDuration.WithLabelValues("predict").Observe(time.Since(startTime).Seconds())

	explainStart := time.Now()
	explanation, err := Explain(prediction.Scaled, row, p.explainer, prediction.Margin)
	if err != nil {
		recordFailure(err)
		return nil, err
	}
	metrics.AssessmentDuration.WithLabelValues("explain").Observe(time.Since(explainStart).Seconds())

	assessment := prediction.Assessment
	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Label)).Inc()
	metrics.RiskProbability.Observe(assessment.Probability)

	logger.Info("Assessment completed",
		zap.String("assessment_id", assessment.ID),
		zap.Float64("probability", assessment.Probability),
		zap.String("label", string(assessment.Label)),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return &Result{
		Assessment:  assessment,
		Explanation: explanation,
		Row:         row,
	}, nil
}

// ErrorKind names the failure class of a pipeline error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, schema.ErrUnknownFeatureName):
		return "unknown_feature"
	case errors.Is(err, ml.ErrScaling):
		return "scaling"
	case errors.Is(err, ml.ErrInputWidth):
		return "input_width"
	case errors.Is(err, ErrAttributionMismatch):
		return "attribution"
	default:
		return "internal"
	}
}

func recordFailure(err error) {
	kind := ErrorKind(err)
	metrics.PipelineErrors.WithLabelValues(kind).Inc()
	logger.Error("Assessment failed", zap.String("kind", kind), zap.Error(err))
}
