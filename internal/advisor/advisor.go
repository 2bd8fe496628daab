// Package advisor produces short, non-diagnostic wellness suggestions
// conditioned on a risk assessment and the user's own description.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/llm"
	"github.com/glycowatch/backend/internal/metrics"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/pkg/logger"
	"github.com/glycowatch/backend/pkg/utils"
)

var (
	ErrMissingCredential = errors.New("wellness advisor API key is not configured")
	ErrEmptyUserQuery    = errors.New("please describe the issue first")
	ErrInvalidAssessment = errors.New("a risk assessment with probability within [0, 1] is required")
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	Model() string
}

type Cache interface {
	GetSuggestion(ctx context.Context, key string, dst any) (bool, error)
	SetSuggestion(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Request pairs the user's description with the assessment it refers to.
// A nil Assessment is rejected with ErrInvalidAssessment.
type Request struct {
	Assessment *risk.Assessment
	Query      string
}

type Suggestion struct {
	Text      string   `json:"suggestion" yaml:"suggestion"`
	Sentences []string `json:"sentences" yaml:"sentences"`
	Model     string   `json:"model" yaml:"model"`
	Cached    bool     `json:"cached" yaml:"cached"`
}

type Advisor struct {
	completer Completer
	cache     Cache
	cacheTTL  time.Duration
}

// New builds an advisor. A nil completer means no credential was configured:
// every Suggest call fails with ErrMissingCredential. cache may be nil.
func New(completer Completer, cache Cache, cacheTTL time.Duration) *Advisor {
	return &Advisor{
		completer: completer,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

func (a *Advisor) Available() bool {
	return a.completer != nil
}

// Validate checks a request without calling the provider.
func (a *Advisor) Validate(req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyUserQuery
	}
	if req.Assessment == nil {
		return ErrInvalidAssessment
	}
	p := req.Assessment.Probability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return ErrInvalidAssessment
	}
	if !a.Available() {
		return ErrMissingCredential
	}
	return nil
}

func (a *Advisor) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if err := a.Validate(req); err != nil {
		metrics.AdvisorRequests.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	// the status line always follows the probability
	assessment := *req.Assessment
	threshold := assessment.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = risk.DefaultThreshold
	}
	assessment.Label = risk.Classify(assessment.Probability, threshold)
	req.Assessment = &assessment

	key := a.cacheKey(req)
	if a.cache != nil {
		var cached Suggestion
		found, err := a.cache.GetSuggestion(ctx, key, &cached)
		if err != nil {
			logger.Warn("Suggestion cache lookup failed", zap.Error(err))
		} else if found {
			metrics.CacheHits.WithLabelValues("suggestion").Inc()
			metrics.AdvisorRequests.WithLabelValues("cached").Inc()
			cached.Cached = true
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("suggestion").Inc()
	}

	startTime := time.Now()
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt(assessment, req.Query),
	})
	metrics.AdvisorDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		metrics.AdvisorRequests.WithLabelValues(outcome(err)).Inc()
		logger.Error("Wellness suggestion failed", zap.Error(err))
		return nil, fmt.Errorf("failed to generate suggestion: %w", err)
	}

	text := sanitize(resp.Content)
	if text == "" {
		metrics.AdvisorRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate suggestion: %w", llm.ErrEmptyCompletion)
	}

	s := &Suggestion{
		Text:      text,
		Sentences: sentences(text),
		Model:     a.completer.Model(),
	}

	if a.cache != nil {
		if err := a.cache.SetSuggestion(ctx, key, s, a.cacheTTL); err != nil {
			logger.Warn("Failed to cache suggestion", zap.Error(err))
		}
	}

	metrics.AdvisorRequests.WithLabelValues("ok").Inc()
	logger.Info("Wellness suggestion generated",
		zap.String("assessment_id", assessment.ID),
		zap.String("label", string(assessment.Label)),
		zap.Int("sentences", len(s.Sentences)),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return s, nil
}

func (a *Advisor) cacheKey(req Request) string {
	return utils.HashParts(
		a.completer.Model(),
		string(req.Assessment.Label),
		strconv.FormatFloat(req.Assessment.Probability, 'f', 2, 64),
		strings.ToLower(collapse(req.Query)),
	)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrEmptyUserQuery), errors.Is(err, ErrInvalidAssessment):
		return "invalid"
	case errors.Is(err, ErrMissingCredential):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
