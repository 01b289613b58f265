package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	if err := app().Run(context.Background(), os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.Command {
	return &cli.Command{
		Name:    "panelpal",
		Version: version,
		Usage:   "Extract and translate the text of manga panels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "watch",
				Usage: "Follow a job's progress stream at the given WebSocket URL instead of serving",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			watchCmd(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if url := cmd.String("watch"); url != "" {
				return runWatch(ctx, url, cmd.String("log-level"))
			}
			return runServer(ctx, cmd.String("log-level"))
		},
	}
}
