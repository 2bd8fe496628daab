// Package forceplot draws an additive force diagram for one explained
// prediction as a standalone SVG document.
package forceplot

import (
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"

	"github.com/glycowatch/backend/internal/risk"
)

const (
	ColorPositive = "#ff0d57"
	ColorNegative = "#1e88e5"

	defaultWidth  = 960
	defaultHeight = 170
	defaultTopN   = 8

	padX    = 40.0
	axisY   = 70.0
	barH    = 18.0
	minText = 46.0
)

var ErrNotFinite = errors.New("explanation has non-finite values")

type Options struct {
	Width  int
	Height int

	// TopN limits how many segments get a "name = value" label.
	TopN int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Height <= 0 {
		o.Height = defaultHeight
	}
	if o.TopN <= 0 {
		o.TopN = defaultTopN
	}
	return o
}

type segment struct {
	c        risk.Contribution
	from, to float64
	labelled bool
}

// Render lays out positive contributions ending at the output value and
// negative contributions starting from it, so together they span baseline to
// output the way the attributions add up.
func Render(e risk.Explanation, opts Options) (string, error) {
	if !finite(e.Baseline) || !finite(e.Output) {
		return "", ErrNotFinite
	}
	opts = opts.withDefaults()

	var pos, neg []risk.Contribution
	var posSum, negSum float64
	for _, c := range e.Contributions {
		if !finite(c.Attribution) {
			return "", fmt.Errorf("%w: %s", ErrNotFinite, c.Feature)
		}
		switch {
		case c.Attribution > 0:
			pos = append(pos, c)
			posSum += c.Attribution
		case c.Attribution < 0:
			neg = append(neg, c)
			negSum -= c.Attribution
		}
	}
	byMagnitude := func(s []risk.Contribution) {
		sort.SliceStable(s, func(i, j int) bool {
			return math.Abs(s[i].Attribution) > math.Abs(s[j].Attribution)
		})
	}
	byMagnitude(pos)
	byMagnitude(neg)

	labelled := make(map[string]bool)
	for _, c := range e.Top(opts.TopN) {
		if c.Attribution != 0 {
			labelled[c.Feature] = true
		}
	}

	// largest pushes sit next to the output marker
	var segments []segment
	at := e.Output
	for _, c := range pos {
		segments = append(segments, segment{c: c, from: at - c.Attribution, to: at, labelled: labelled[c.Feature]})
		at -= c.Attribution
	}
	at = e.Output
	for _, c := range neg {
		segments = append(segments, segment{c: c, from: at, to: at - c.Attribution, labelled: labelled[c.Feature]})
		at -= c.Attribution
	}

	lo := math.Min(e.Baseline, e.Output-posSum)
	hi := math.Max(e.Baseline, e.Output+negSum)
	if hi-lo < 1e-9 {
		lo, hi = lo-0.5, hi+0.5
	}
	span := hi - lo
	lo, hi = lo-0.05*span, hi+0.05*span

	width := float64(opts.Width)
	x := func(v float64) float64 {
		return padX + (v-lo)/(hi-lo)*(width-2*padX)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="force-plot" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`,
		opts.Width, opts.Height, opts.Width, opts.Height)
	b.WriteString("\n")

	fmt.Fprintf(&b, `<line class="axis" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#999" stroke-width="1"/>`+"\n",
		padX, axisY+barH, width-padX, axisY+barH)

	for _, s := range segments {
		color, class, sign := ColorPositive, "force-positive", "+"
		if s.c.Attribution < 0 {
			color, class, sign = ColorNegative, "force-negative", ""
		}
		x1, x2 := x(s.from), x(s.to)
		name := html.EscapeString(s.c.Feature)
		fmt.Fprintf(&b, `<rect class="%s" data-feature="%s" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" stroke="#fff" stroke-width="1"><title>%s = %s (%s%.4f)</title></rect>`+"\n",
			class, name, x1, axisY, math.Max(x2-x1, 0.5), barH, color, name, formatValue(s.c.Value), sign, s.c.Attribution)

		if s.labelled && x2-x1 >= minText {
			fmt.Fprintf(&b, `<text class="feature-label" x="%.2f" y="%.2f" text-anchor="middle" fill="%s">%s = %s</text>`+"\n",
				(x1+x2)/2, axisY+barH+16, color, name, formatValue(s.c.Value))
		}
	}

	bx := x(e.Baseline)
	fmt.Fprintf(&b, `<line class="base-value" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#555" stroke-dasharray="3,3"/>`+"\n",
		bx, axisY-24, bx, axisY+barH+4)
	fmt.Fprintf(&b, `<text class="base-value-label" x="%.2f" y="%.2f" text-anchor="middle" fill="#555">base value %.3f (p=%.1f%%)</text>`+"\n",
		bx, axisY-28, e.Baseline, 100*e.BaselineProbability())

	ox := x(e.Output)
	fmt.Fprintf(&b, `<line class="output-value" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#000" stroke-width="2"/>`+"\n",
		ox, axisY-8, ox, axisY+barH+4)
	fmt.Fprintf(&b, `<text class="output-value-label" x="%.2f" y="%.2f" text-anchor="middle" font-weight="bold">f(x) = %.3f (p=%.1f%%)</text>`+"\n",
		ox, axisY-12, e.Output, 100*e.Probability())

	legendY := float64(opts.Height) - 12
	fmt.Fprintf(&b, `<text class="legend" x="%.2f" y="%.2f" fill="%s">higher risk</text>`+"\n", padX, legendY, ColorPositive)
	fmt.Fprintf(&b, `<text class="legend" x="%.2f" y="%.2f" text-anchor="end" fill="%s">lower risk</text>`+"\n", width-padX, legendY, ColorNegative)

	b.WriteString("</svg>\n")
	return b.String(), nil
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4g", v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
