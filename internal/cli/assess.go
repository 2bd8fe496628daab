package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/glycowatch/backend/internal/forceplot"
	"github.com/glycowatch/backend/internal/middleware/validation"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/internal/schema"
)

type assessReport struct {
	AssessmentID  string              `json:"assessment_id" yaml:"assessment_id"`
	Probability   float64             `json:"probability" yaml:"probability"`
	Label         risk.Label          `json:"label" yaml:"label"`
	LabelDisplay  string              `json:"label_display" yaml:"label_display"`
	Threshold     float64             `json:"threshold" yaml:"threshold"`
	Baseline      float64             `json:"baseline" yaml:"baseline"`
	Output        float64             `json:"output" yaml:"output"`
	Contributions []risk.Contribution `json:"contributions" yaml:"contributions"`
}

func patientFlags() []cli.Flag {
	var flags []cli.Flag
	for _, r := range schema.Ranges() {
		flags = append(flags, &cli.FloatFlag{
			Name:  flagName(r.Field),
			Usage: fmt.Sprintf("%s [%g, %g]", r.Label, r.Min, r.Max),
			Value: r.Default,
		})
	}
	return flags
}

func assessCommand() *cli.Command {
	flags := patientFlags()
	flags = append(flags,
		&cli.FloatFlag{
			Name:  "threshold",
			Usage: "Decision threshold (optional, defaults to risk.threshold from config)",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "Number of contributions to show, 0 for all",
			Value: 8,
		},
		&cli.StringFlag{
			Name:  "svg",
			Usage: "Write the force diagram to this file (optional)",
		},
	)

	return &cli.Command{
		Name:   "assess",
		Usage:  "Assess a patient summary and explain the result",
		Flags:  flags,
		Action: cmdAssess,
	}
}

func summaryFromFlags(cmd *cli.Command) (schema.PatientSummary, error) {
	var p schema.PatientSummary
	for _, r := range schema.Ranges() {
		p.Set(r.Field, cmd.Float(flagName(r.Field)))
	}

	problems := validation.CheckSummary(p)
	if len(problems) == 0 {
		return p, nil
	}

	msgs := make([]string, 0, len(problems))
	for field, msg := range problems {
		msgs = append(msgs, fmt.Sprintf("--%s %s", flagName(field), msg))
	}
	sort.Strings(msgs)
	return p, fmt.Errorf("invalid patient summary: %s", strings.Join(msgs, "; "))
}

func assessFromFlags(ctx context.Context, cmd *cli.Command) (*risk.Result, error) {
	summary, err := summaryFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	handle, err := loadAssets(ctx)
	if err != nil {
		return nil, err
	}

	threshold := appCfg.Risk.Threshold
	if cmd.IsSet("threshold") {
		threshold = cmd.Float("threshold")
	}

	return risk.NewPipeline(handle, threshold).Assess(ctx, summary)
}

func cmdAssess(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	res, err := assessFromFlags(ctx, cmd)
	if err != nil {
		return fmt.Errorf("assessing patient: %w", err)
	}

	top := int(cmd.Int("top"))

	if path := cmd.String("svg"); path != "" {
		svg, err := forceplot.Render(res.Explanation, forceplot.Options{TopN: top})
		if err != nil {
			return fmt.Errorf("rendering force diagram: %w", err)
		}
		if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
			return fmt.Errorf("writing force diagram: %w", err)
		}
	}

	a := res.Assessment
	report := assessReport{
		AssessmentID:  a.ID,
		Probability:   a.Probability,
		Label:         a.Label,
		LabelDisplay:  a.Label.Display(),
		Threshold:     a.Threshold,
		Baseline:      res.Explanation.Baseline,
		Output:        res.Explanation.Output,
		Contributions: res.Explanation.Top(top),
	}

	if format != formatText {
		return encode(format, report)
	}
	return printAssessment(report)
}

func printAssessment(r assessReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Assessment\t%s\n", r.AssessmentID)
	fmt.Fprintf(w, "Status\t%s (%.1f%%)\n", r.LabelDisplay, r.Probability*100)
	fmt.Fprintf(w, "Threshold\t%.2f\n", r.Threshold)
	fmt.Fprintf(w, "Base value\t%.4f\n", r.Baseline)
	fmt.Fprintf(w, "f(x)\t%.4f\n", r.Output)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FEATURE\tVALUE\tATTRIBUTION")
	for _, c := range r.Contributions {
		fmt.Fprintf(w, "%s\t%g\t%+.4f\n", c.Feature, c.Value, c.Attribution)
	}
	return w.Flush()
}
