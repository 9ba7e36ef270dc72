package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" env-default:"info"`
	Format    string `env:"LOG_FORMAT" env-default:"text"`
	Component string `env:"LOG_COMPONENT" env-default:"grpc_server"`
	Source    bool   `env:"LOG_SOURCE" env-default:"false"`
}

type DBConfig struct {
	DSN      string `env:"MYSQL_DSN"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"3306"`
	User     string `env:"DB_USER" env-default:"root"`
	Password string `env:"DB_PASSWORD" env-default:"root"`
	Name     string `env:"DB_NAME" env-default:"muzz"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type GRPCConfig struct {
	Host string `env:"GRPC_HOST" env-default:"127.0.0.1"`
	Port string `env:"GRPC_PORT" env-default:"50051"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR" env-default:":9090"`
}

// QuotaConfig holds the free-tier limits. Premium accounts bypass all of them.
type QuotaConfig struct {
	SwipeLimit            int           `env:"QUOTA_SWIPE_LIMIT" env-default:"20"`
	MessageRecipientLimit int           `env:"QUOTA_MESSAGE_RECIPIENT_LIMIT" env-default:"2"`
	MessageWindow         time.Duration `env:"QUOTA_MESSAGE_WINDOW" env-default:"24h"`
	TimeZone              string        `env:"QUOTA_TIMEZONE" env-default:"Local"`
	PhotoLimit            int           `env:"QUOTA_PHOTO_LIMIT" env-default:"3"`
	SongLimit             int           `env:"QUOTA_SONG_LIMIT" env-default:"1"`
}

type DiscoveryConfig struct {
	NearbyLimit   int `env:"DISCOVERY_NEARBY_LIMIT" env-default:"100"`
	FallbackLimit int `env:"DISCOVERY_FALLBACK_LIMIT" env-default:"50"`
}

type PremiumConfig struct {
	SweepSpec string `env:"PREMIUM_SWEEP_SPEC" env-default:"0 0 0 * * *"`
}

type Config struct {
	App struct {
		ENV string `env:"APP_ENV" env-default:"development"`
	}

	Log       LogConfig
	DB        DBConfig
	Redis     RedisConfig
	GRPC      GRPCConfig
	Metrics   MetricsConfig
	Quota     QuotaConfig
	Discovery DiscoveryConfig
	Premium   PremiumConfig
}

// New reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Load is New without the exit, for callers that want the error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.DB.DSN == "" {
		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Quota.SwipeLimit <= 0 {
		return fmt.Errorf("QUOTA_SWIPE_LIMIT must be positive")
	}
	if c.Quota.MessageRecipientLimit <= 0 {
		return fmt.Errorf("QUOTA_MESSAGE_RECIPIENT_LIMIT must be positive")
	}
	if c.Quota.MessageWindow <= 0 {
		return fmt.Errorf("QUOTA_MESSAGE_WINDOW must be positive")
	}
	if _, err := c.Quota.Location(); err != nil {
		return fmt.Errorf("QUOTA_TIMEZONE: %w", err)
	}
	if c.Discovery.NearbyLimit <= 0 || c.Discovery.FallbackLimit <= 0 {
		return fmt.Errorf("discovery limits must be positive")
	}
	return nil
}

// Location resolves the zone whose midnight resets the daily swipe counter.
func (q QuotaConfig) Location() (*time.Location, error) {
	switch strings.TrimSpace(q.TimeZone) {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(q.TimeZone)
}
