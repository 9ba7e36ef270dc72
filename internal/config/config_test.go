package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "matchmaking")
	t.Setenv("QUOTA_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Quota.SwipeLimit)
	assert.Equal(t, 2, cfg.Quota.MessageRecipientLimit)
	assert.Equal(t, 24*time.Hour, cfg.Quota.MessageWindow)
	assert.Equal(t, 3, cfg.Quota.PhotoLimit)
	assert.Equal(t, 1, cfg.Quota.SongLimit)
	assert.Equal(t, "0 0 0 * * *", cfg.Premium.SweepSpec)
	assert.Contains(t, cfg.DB.DSN, "@tcp(db:3306)/matchmaking?parseTime=true")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MYSQL_DSN", "u:p@tcp(x:1)/y")
	t.Setenv("QUOTA_SWIPE_LIMIT", "5")
	t.Setenv("QUOTA_MESSAGE_WINDOW", "1h")
	t.Setenv("QUOTA_TIMEZONE", "Europe/Paris")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "u:p@tcp(x:1)/y", cfg.DB.DSN)
	assert.Equal(t, 5, cfg.Quota.SwipeLimit)
	assert.Equal(t, time.Hour, cfg.Quota.MessageWindow)

	loc, err := cfg.Quota.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.Quota = QuotaConfig{SwipeLimit: 20, MessageRecipientLimit: 2, MessageWindow: time.Hour, TimeZone: "UTC"}
		c.Discovery = DiscoveryConfig{NearbyLimit: 10, FallbackLimit: 10}
		return c
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"swipe limit":     func(c *Config) { c.Quota.SwipeLimit = 0 },
		"recipient limit": func(c *Config) { c.Quota.MessageRecipientLimit = -1 },
		"window":          func(c *Config) { c.Quota.MessageWindow = 0 },
		"timezone":        func(c *Config) { c.Quota.TimeZone = "Mars/Olympus" },
		"discovery":       func(c *Config) { c.Discovery.FallbackLimit = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLocation_Local(t *testing.T) {
	loc, err := QuotaConfig{TimeZone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
