// Command shelf manages a library catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacentio/shelf/internal/cli"
	"github.com/jacentio/shelf/internal/config"
	"github.com/jacentio/shelf/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCommandError
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := cli.NewBackend(cfg)
	root := cli.NewRootCommand(&cli.RootOptions{
		Config:    cfg,
		Open:      backend.Store,
		OpenAdmin: backend.Admin,
		Logger:    logger,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		// Failures wrapping an error were already reported by the command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err == nil {
			fmt.Fprintln(os.Stderr, err)
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
