package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/DelxAbde/panel-pal-translate/internal/logging"
	"github.com/DelxAbde/panel-pal-translate/internal/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Print a job's progress until it finishes",
		ArgsUsage: "<ws-url>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return cli.Exit("usage: panelpal watch ws://host:8000/ws/jobs/<id>", 2)
			}
			return runWatch(ctx, cmd.Args().First(), cmd.String("log-level"))
		},
	}
}

// runWatch exits 0 when the job completes and 1 when it fails.
func runWatch(ctx context.Context, url, logLevel string) error {
	logger, err := logging.New(logLevel, false)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ev, err := watch.New(url, os.Stdout, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if code := watch.ExitCode(ev); code != 0 {
		return cli.Exit("", code)
	}
	return nil
}
