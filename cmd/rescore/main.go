package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Clark-Hu/bayesrank/internal/app"
	"github.com/Clark-Hu/bayesrank/internal/cli"
	"github.com/Clark-Hu/bayesrank/internal/config"
	"github.com/Clark-Hu/bayesrank/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (cli.Rescorer, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
			With().Str("service", "rescore").Logger()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return a.Engine, a.Close, nil
	}

	if err := cli.NewRootCommand(open).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
