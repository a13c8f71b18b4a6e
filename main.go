package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	a := &app{}

	root := &cli.Command{
		Name:  "review-engine",
		Usage: "Serve latest-version reviews with tone and sentiment enrichment",
		Description: `review-engine serves paginated product reviews, filling in missing tone and
sentiment through an external classifier, and ranks categories by average stars.

Run without a command to start the HTTP server.`,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file (defaults to ./config.yaml when present)",
				Sources:     cli.EnvVars("REVIEW_ENGINE_CONFIG"),
				Destination: &a.configPath,
			},
		},
		Before: a.setup,
		After: func(ctx context.Context, c *cli.Command) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return nil
		},
		Action: a.serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: a.serve,
			},
			{
				Name:  "worker",
				Usage: "Drain the Redis access log and run the periodic enrichment sweep",
				Description: `The worker stores access-log entries pushed by servers running with
access_log.broker=redis, and enriches current reviews that are still missing
tone or sentiment every enrichment.sweep_interval.`,
				Action: a.worker,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations",
				Action: a.migrate,
			},
			{
				Name:   "seed",
				Usage:  "Insert the bundled demo categories and reviews",
				Action: a.seed,
			},
			{
				Name:   "enrich",
				Usage:  "Enrich one batch of reviews missing tone or sentiment, then exit",
				Action: a.enrich,
			},
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "review-engine: %v\n", err)
		os.Exit(1)
	}
}
