package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/glycowatch/backend/internal/cache/redis"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the suggestion cache",
		Commands: []*cli.Command{
			{
				Name:   "flush",
				Usage:  "Delete every cached suggestion",
				Action: cmdCacheFlush,
			},
		},
	}
}

func cmdCacheFlush(ctx context.Context, _ *cli.Command) error {
	r := appCfg.Redis
	if !r.Enabled {
		return errors.New("suggestion cache is disabled, set redis.enabled to use it")
	}

	client, err := redis.NewClient(ctx, r.Host, r.Port, r.Password, r.DB)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.FlushSuggestions(ctx)
	if err != nil {
		return fmt.Errorf("flushing suggestions: %w", err)
	}

	fmt.Fprintf(out, "Removed %d cached suggestions\n", n)
	return nil
}
