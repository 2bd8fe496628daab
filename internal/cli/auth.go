package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/glycowatch/backend/pkg/secrets"
)

var in = bufio.NewReader(os.Stdin)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the wellness advisor API key in the OS keychain",
		Commands: []*cli.Command{
			{
				Name:  "set-key",
				Usage: "Store the advisor API key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "API key (optional, prompted for when omitted)",
					},
				},
				Action: cmdSetKey,
			},
			{
				Name:   "clear-key",
				Usage:  "Remove the stored advisor API key",
				Action: cmdClearKey,
			},
			{
				Name:   "status",
				Usage:  "Report whether an advisor API key is available",
				Action: cmdKeyStatus,
			},
		},
	}
}

func cmdSetKey(_ context.Context, cmd *cli.Command) error {
	key := cmd.String("key")
	if key == "" {
		fmt.Fprint(out, "Advisor API key: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading input: %w", err)
		}
		key = strings.TrimSpace(line)
	}

	if err := secrets.SetAdvisorKey(key); err != nil {
		return fmt.Errorf("saving key: %w", err)
	}

	fmt.Fprintln(out, "Key saved to OS keychain")
	return nil
}

func cmdClearKey(_ context.Context, _ *cli.Command) error {
	if err := secrets.DeleteAdvisorKey(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Key removed from OS keychain")
	return nil
}

func cmdKeyStatus(_ context.Context, _ *cli.Command) error {
	_, err := secrets.GetAdvisorKey()
	switch {
	case err == nil:
		fmt.Fprintln(out, "keychain: key stored")
	case errors.Is(err, secrets.ErrNotFound):
		fmt.Fprintln(out, "keychain: no key")
	default:
		fmt.Fprintf(out, "keychain: unavailable (%v)\n", err)
	}

	if appCfg.Advisor.HasCredential() {
		fmt.Fprintf(out, "advisor: configured (%s, %s)\n", appCfg.Advisor.Provider, appCfg.Advisor.Model)
	} else {
		fmt.Fprintln(out, "advisor: not configured")
	}
	return nil
}
