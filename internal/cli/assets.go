package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/glycowatch/backend/internal/assets"
	"github.com/glycowatch/backend/internal/storage/models"
	"github.com/glycowatch/backend/internal/storage/sqlite"
)

var errRegistryDisabled = errors.New("asset registry is disabled, set registry.enabled to use it")

type verifyReport struct {
	Fingerprints []assets.Fingerprint `json:"fingerprints" yaml:"fingerprints"`
	Columns      []string             `json:"columns" yaml:"columns"`
	Baseline     float64              `json:"baseline" yaml:"baseline"`
}

func assetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "assets",
		Usage: "Inspect the model artifacts",
		Commands: []*cli.Command{
			{
				Name:   "verify",
				Usage:  "Load every artifact and print its fingerprint",
				Action: cmdAssetsVerify,
			},
			{
				Name:  "history",
				Usage: "List previous server start-ups recorded in the asset registry",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Limits number of result returned",
						Value: 20,
					},
				},
				Action: cmdAssetsHistory,
			},
		},
	}
}

func cmdAssetsVerify(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	handle, err := loadAssets(ctx)
	if err != nil {
		return err
	}

	report := verifyReport{
		Fingerprints: handle.Fingerprints,
		Columns:      handle.Schema.Names(),
		Baseline:     handle.Explainer.ExpectedValue(),
	}

	if format != formatText {
		return encode(format, report)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSIZE\tSHA256\tPATH")
	for _, fp := range report.Fingerprints {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", fp.Kind, fp.Size, fp.SHA256, fp.Path)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d columns, base value %.6f\n", len(report.Columns), report.Baseline)
	return nil
}

func cmdAssetsHistory(_ context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	if !appCfg.Registry.Enabled {
		return errRegistryDisabled
	}

	registry, err := sqlite.NewClient(appCfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("opening asset registry: %w", err)
	}
	defer registry.Close()

	if err := registry.InitSchema(); err != nil {
		return fmt.Errorf("initializing asset registry: %w", err)
	}

	loads, err := registry.ListLoads(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("listing asset loads: %w", err)
	}
	if loads == nil {
		loads = []models.AssetLoad{}
	}

	if format != formatText {
		return encode(format, loads)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOADED\tHOST\tTHRESHOLD\tMODEL SHA256")
	for _, l := range loads {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", l.LoadedAt.Format(time.RFC3339), l.Host, l.Threshold, modelHash(l))
	}
	return w.Flush()
}

func modelHash(l models.AssetLoad) string {
	for _, a := range l.Assets {
		if a.Kind == assets.KindModel {
			return a.SHA256
		}
	}
	return "-"
}
