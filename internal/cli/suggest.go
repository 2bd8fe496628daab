package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/advisor"
	"github.com/glycowatch/backend/internal/cache/redis"
	"github.com/glycowatch/backend/internal/llm"
	"github.com/glycowatch/backend/internal/risk"
	"github.com/glycowatch/backend/pkg/logger"
)

func suggestCommand() *cli.Command {
	flags := patientFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:  "query",
			Usage: "Describe the issue you want advice on",
		},
		&cli.FloatFlag{
			Name:  "probability",
			Usage: "Risk probability to condition on (optional, otherwise the patient flags are assessed)",
		},
	)

	return &cli.Command{
		Name:   "suggest",
		Usage:  "Ask the wellness advisor for a suggestion",
		Flags:  flags,
		Action: cmdSuggest,
	}
}

func cmdSuggest(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	var assessment risk.Assessment
	if cmd.IsSet("probability") {
		p := cmd.Float("probability")
		assessment = risk.Assessment{
			Probability: p,
			Threshold:   appCfg.Risk.Threshold,
			Label:       risk.Classify(p, appCfg.Risk.Threshold),
		}
	} else {
		res, err := assessFromFlags(ctx, cmd)
		if err != nil {
			return fmt.Errorf("assessing patient: %w", err)
		}
		assessment = res.Assessment
	}

	adv, closeCache := newAdvisor(ctx)
	defer closeCache()

	s, err := adv.Suggest(ctx, advisor.Request{
		Assessment: &assessment,
		Query:      cmd.String("query"),
	})
	if err != nil {
		return fmt.Errorf("asking the wellness advisor: %w", err)
	}

	if format != formatText {
		return encode(format, s)
	}

	fmt.Fprintf(out, "Current Status: %s (%.1f%%)\n\n", assessment.Label.Display(), assessment.Probability*100)
	fmt.Fprintln(out, s.Text)
	return nil
}

// newAdvisor builds the advisor from config. The returned func releases the
// cache connection, if one was opened.
func newAdvisor(ctx context.Context) (*advisor.Advisor, func()) {
	var completer advisor.Completer
	if appCfg.Advisor.HasCredential() {
		completer = llm.NewClient(llm.ConfigFrom(appCfg.Advisor))
	}

	var cache advisor.Cache
	release := func() {}
	if appCfg.Redis.Enabled {
		r := appCfg.Redis
		c, err := redis.NewClient(ctx, r.Host, r.Port, r.Password, r.DB)
		if err != nil {
			logger.Warn("Redis unavailable, suggestion will not be cached", zap.Error(err))
		} else {
			cache = c
			release = func() { _ = c.Close() }
		}
	}

	ttl := time.Duration(appCfg.Advisor.CacheTTLSec) * time.Second
	return advisor.New(completer, cache, ttl), release
}
