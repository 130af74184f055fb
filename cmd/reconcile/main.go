// Command reconcile copies every profile's authoritative view count onto profiles.view_count.
// Run it after an outage of the reconcile queue, or on a schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"biolink/internal/config"
	"biolink/internal/database"
	"biolink/internal/logging"
	"biolink/internal/repository"
	"biolink/internal/service"
)

func main() {
	pageSize := flag.Int("page-size", 500, "profiles per page")
	flag.Parse()

	if err := run(*pageSize); err != nil {
		log.Fatal().Err(err).Msg("reconcile failed")
	}
}

func run(pageSize int) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("component", "reconcile").Logger()
	if !cfg.DotenvLoaded {
		logger.Debug().Msg("no .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	views := service.NewViewService(
		repository.NewProfileRepository(db),
		repository.NewCounterRepository(db),
		service.ViewOptions{Logger: logger},
	)

	start := time.Now()
	done, err := views.ReconcileAll(ctx, pageSize)
	if err != nil {
		return fmt.Errorf("stopped after %d profiles: %w", done, err)
	}
	logger.Info().Int("reconciled", done).Dur("took", time.Since(start)).Msg("reconcile finished")
	return nil
}
