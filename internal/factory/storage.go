package factory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/config"
	"github.com/kafadas/kinjo/internal/health"
	storepkg "github.com/kafadas/kinjo/internal/store"
	storepg "github.com/kafadas/kinjo/internal/store/postgres"
	storesqlite "github.com/kafadas/kinjo/internal/store/sqlite"
)

// Backend is an opened store together with its connection pool.
type Backend struct {
	Store  storepkg.Store
	DB     *sql.DB
	Driver string
}

// HealthPing probes the store; it lets Backend feed a health.PingChecker.
func (b *Backend) HealthPing(ctx context.Context) error {
	if p, ok := b.Store.(health.HealthPinger); ok {
		return p.HealthPing(ctx)
	}
	return b.DB.PingContext(ctx)
}

func (b *Backend) Close() error { return b.DB.Close() }

// NewStore opens the store selected by cfg.DBDriver. With AutoMigrate the
// Postgres schema is applied before returning; SQLite always ensures its schema.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("KINJO_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := storepg.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("postgres schema: %w", err)
			}
			log.Debug().Str("driver", cfg.DBDriver).Msg("schema ensured")
		}
		return &Backend{Store: storepg.NewWithDB(db), DB: db, Driver: cfg.DBDriver}, nil
	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("sqlite opened")
		return &Backend{Store: storesqlite.NewWithDB(db), DB: db, Driver: cfg.DBDriver}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
