// Package testutil spins up isolated stores for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/cache"
	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	applog "github.com/oggyb/muzz-matchmaking/internal/logger"
	"github.com/oggyb/muzz-matchmaking/internal/metrics"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
)

// NewDB opens a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// NewRedis starts a miniredis and returns a cache bound to it.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

// Config returns the defaults the services run with, quota zone pinned to UTC.
func Config() *config.Config {
	cfg := &config.Config{}
	cfg.App.ENV = "test"
	cfg.Quota = config.QuotaConfig{
		SwipeLimit:            20,
		MessageRecipientLimit: 2,
		MessageWindow:         24 * time.Hour,
		TimeZone:              "UTC",
		PhotoLimit:            3,
		SongLimit:             1,
	}
	cfg.Discovery = config.DiscoveryConfig{NearbyLimit: 100, FallbackLimit: 50}
	cfg.Premium.SweepSpec = "0 0 0 * * *"
	return cfg
}

// Clock is a settable time source for services.
type Clock struct{ T time.Time }

func NewClock(t time.Time) *Clock { return &Clock{T: t} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Env is a fully wired AppContext over fresh stores.
type Env struct {
	App   *app.AppContext
	Clock *Clock
	Redis *miniredis.Miniredis
}

// NewApp wires a test AppContext whose clock starts at start.
func NewApp(t *testing.T, start time.Time) *Env {
	t.Helper()

	rc, mr := NewRedis(t)
	clock := NewClock(start)
	appCtx := app.New(Config(), NewDB(t), rc, applog.Discard(), metrics.New())
	appCtx.Now = clock.Now
	return &Env{App: appCtx, Clock: clock, Redis: mr}
}

// Password is a throwaway credential for seeded users.
func Password() *string {
	s := "x"
	return &s
}

// SeedUser inserts a user named name with a profile. lat/lng may be nil.
func SeedUser(t *testing.T, gdb *gorm.DB, name string, lat, lng *float64) *db.User {
	t.Helper()

	u := &db.User{Username: name, Email: name + "@test.com", PasswordHash: Password()}
	require.NoError(t, gdb.Create(u).Error)

	p := &db.Profile{
		UserID:      u.ID,
		Pseudo:      name,
		Photos:      []string{"https://cdn.test/" + name + ".jpg"},
		MaxDistance: 50,
		Latitude:    lat,
		Longitude:   lng,
	}
	require.NoError(t, gdb.Create(p).Error)
	return u
}

// SeedMatch records a match between a and b at now.
func SeedMatch(t *testing.T, gdb *gorm.DB, a, b uint64, now time.Time) *db.Match {
	t.Helper()

	m, _, err := repository.NewMatchRepository(gdb).CreateIfAbsent(context.Background(), a, b, now)
	require.NoError(t, err)
	return m
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }
