package forceplot

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glycowatch/backend/internal/risk"
)

func sampleExplanation() risk.Explanation {
	return risk.Explanation{
		Baseline: 0,
		Output:   0.6,
		Link:     risk.LinkLogit,
		Contributions: []risk.Contribution{
			{Feature: "mean_glucose_last_30_days", Value: 160, Attribution: 0.8},
			{Feature: "hypo_event_count_alltime", Value: 5, Attribution: -0.3},
			{Feature: "readings_count_alltime", Value: 0, Attribution: 0},
			{Feature: "a<b", Value: 0.4, Attribution: 0.1},
		},
	}
}

func parse(t *testing.T, svg string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(svg))
	require.NoError(t, err)
	return doc
}

func TestRenderSegments(t *testing.T) {
	svg, err := Render(sampleExplanation(), Options{})
	require.NoError(t, err)
	doc := parse(t, svg)

	assert.Equal(t, 1, doc.Find("svg").Length())
	assert.Equal(t, 2, doc.Find("rect.force-positive").Length())
	assert.Equal(t, 1, doc.Find("rect.force-negative").Length())

	features := doc.Find("rect").Map(func(_ int, s *goquery.Selection) string {
		v, _ := s.Attr("data-feature")
		return v
	})
	assert.ElementsMatch(t, []string{"mean_glucose_last_30_days", "hypo_event_count_alltime", "a<b"}, features)

	assert.Contains(t, doc.Find(".output-value-label").Text(), "f(x) = 0.600")
	assert.Contains(t, doc.Find(".output-value-label").Text(), "p=64.6%")
	assert.Contains(t, doc.Find(".base-value-label").Text(), "p=50.0%")
}

func TestRenderEscapesNames(t *testing.T) {
	svg, err := Render(sampleExplanation(), Options{})
	require.NoError(t, err)

	assert.Contains(t, svg, "a&lt;b")
	assert.NotContains(t, svg, `"a<b"`)
}

func TestRenderLabelsTopN(t *testing.T) {
	svg, err := Render(sampleExplanation(), Options{TopN: 1})
	require.NoError(t, err)

	labels := parse(t, svg).Find("text.feature-label")
	require.Equal(t, 1, labels.Length())
	assert.Equal(t, "mean_glucose_last_30_days = 160", labels.Text())
}

func TestRenderPositiveSegmentsEndAtOutput(t *testing.T) {
	svg, err := Render(sampleExplanation(), Options{Width: 1000})
	require.NoError(t, err)
	doc := parse(t, svg)

	outX, ok := doc.Find("line.output-value").Attr("x1")
	require.True(t, ok)

	first := doc.Find("rect.force-positive").First()
	x, _ := first.Attr("x")
	w, _ := first.Attr("width")
	assert.Equal(t, "mean_glucose_last_30_days", first.AttrOr("data-feature", ""))
	assert.InDelta(t, parseFloat(t, outX), parseFloat(t, x)+parseFloat(t, w), 0.02)

	neg := doc.Find("rect.force-negative").First()
	nx, _ := neg.Attr("x")
	assert.InDelta(t, parseFloat(t, outX), parseFloat(t, nx), 0.02)
}

func TestRenderNoContributions(t *testing.T) {
	svg, err := Render(risk.Explanation{Baseline: 0.2, Output: 0.2}, Options{})
	require.NoError(t, err)
	doc := parse(t, svg)
	assert.Zero(t, doc.Find("rect").Length())
	assert.Equal(t, 1, doc.Find("line.output-value").Length())
}

func TestRenderRejectsNonFinite(t *testing.T) {
	_, err := Render(risk.Explanation{Baseline: math.NaN()}, Options{})
	assert.ErrorIs(t, err, ErrNotFinite)

	_, err = Render(risk.Explanation{Contributions: []risk.Contribution{{Feature: "x", Attribution: math.Inf(1)}}}, Options{})
	assert.ErrorIs(t, err, ErrNotFinite)
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	var f float64
	_, err := fmt.Sscan(s, &f)
	require.NoError(t, err)
	return f
}
