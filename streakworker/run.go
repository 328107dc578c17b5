package streakworker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kafadas/kinjo/internal/config"
	"github.com/kafadas/kinjo/internal/factory"
	"github.com/kafadas/kinjo/internal/logger"
	"github.com/kafadas/kinjo/internal/outbox"
	"github.com/kafadas/kinjo/internal/services"
	"github.com/kafadas/kinjo/internal/trends"
)

// Run starts the streak outbox worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("streak-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("config")
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("streak worker requires DB_DRIVER=postgres, got %s", cfg.DBDriver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("postgres")
		return err
	}
	defer func() { _ = backend.Close() }()
	if err := backend.HealthPing(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("postgres ping")
		return err
	}

	profiles := services.NewProfileService(backend.Store, log)
	w := outbox.NewWorker(backend.DB, trends.NewService(backend.Store, profiles, nil, log), outbox.Config{
		BatchSize: cfg.OutboxBatchSize,
		Interval:  cfg.OutboxInterval(),
	}, log)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Stack().Err(err).Msg("outbox worker exit")
		return err
	}
	return nil
}
