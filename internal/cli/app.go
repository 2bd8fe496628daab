// Package cli implements riskctl, the command-line front end to the risk
// pipeline and the wellness advisor.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/pkg/config"
	"github.com/glycowatch/backend/pkg/logger"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""

	out io.Writer = os.Stdout

	appCfg *config.Config
)

// Execute creates and runs the CLI application.
func Execute() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "riskctl",
		Version:         fmt.Sprintf("%s (%s)", version, commit),
		Usage:           "Assess glycemic control risk and ask the wellness advisor from the terminal",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format [text, json, yaml]",
				Value: formatText,
			},
			&cli.StringFlag{
				Name:  "assets",
				Usage: "Directory holding the model artifacts (overrides config)",
			},
		},
		Commands: []*cli.Command{
			assessCommand(),
			suggestCommand(),
			assetsCommand(),
			authCommand(),
			cacheCommand(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := "warn"
			if cmd.Bool("debug") {
				level = "debug"
			}
			if err := logger.Init(logger.Options{
				Level:   level,
				Format:  "console",
				Output:  "stderr",
				Service: "riskctl",
				Version: version,
			}); err != nil {
				return ctx, err
			}

			cfg, err := config.Load()
			if err != nil {
				return ctx, fmt.Errorf("loading config: %w", err)
			}
			if dir := cmd.String("assets"); dir != "" {
				cfg.Assets.Dir = dir
			}
			appCfg = cfg
			return ctx, nil
		},
	}
}

func outputFormat(cmd *cli.Command) (string, error) {
	switch f := strings.ToLower(cmd.String("format")); f {
	case formatText, "":
		return formatText, nil
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", f)
	}
}

func encode(format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(out)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func loadAssets(ctx context.Context) (*assets.Handle, error) {
	return assets.Load(ctx, assets.PathsFrom(appCfg.Assets))
}

func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}
