package app

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaking/internal/cache"
	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/logger"
	"github.com/oggyb/muzz-matchmaking/internal/metrics"
)

// AppContext holds shared dependencies (Config, DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	// Now is the clock every service reads. Tests replace it.
	Now func() time.Time
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, m *metrics.Metrics) *AppContext {
	if m == nil {
		m = metrics.New()
	}
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Metrics:    m,
		Now:        time.Now,
	}
}

// Log returns the request-scoped logger stored by the transport, falling
// back to the application logger.
func (a *AppContext) Log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, a.Logger)
}
