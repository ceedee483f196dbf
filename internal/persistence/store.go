package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/config"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/repository/sqlite"
)

// OpenStore connects the configured driver and returns its Store. Postgres
// schemas are migrated when STORE_RUN_MIGRATIONS is set; SQLite files are
// always brought up to date on open.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Store.RunMigrations {
			if err := RunMigrations(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}
		return repository.NewPostgresStore(pool), nil
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
