package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vikram-trellis/corgi-hack/internal/bootstrap"
	"github.com/vikram-trellis/corgi-hack/internal/cli"
	"github.com/vikram-trellis/corgi-hack/internal/config"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/repository/postgres"
	"github.com/vikram-trellis/corgi-hack/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, "claimsctl", cfg.LogLevel, "text")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := cli.Deps{
		Open: func(ctx context.Context) (*cli.Runtime, error) {
			app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
			if err != nil {
				return nil, err
			}
			return &cli.Runtime{Inbox: app.Inbox, Converter: app.Converter, Close: app.Close}, nil
		},
		Migrate: func(ctx context.Context) error {
			db, err := postgres.OpenDB(cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.EnsureSchema(ctx, db)
		},
	}
	if err := cli.Execute(ctx, deps); err != nil {
		fmt.Fprintln(os.Stderr, "claimsctl:", err)
		os.Exit(1)
	}
}
