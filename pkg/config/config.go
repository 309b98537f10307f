package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is parsed from the environment once at startup. Defaults mirror
// the development docker-compose setup.
type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"postgres"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"program"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"test"`
	DBName     string `env:"DB_NAME" envDefault:"neighborhood_library"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	JWTSecret        string `env:"JWT_SECRET" envDefault:"set_in_env_for_dev_only"`
	JWTExpiryMinutes int    `env:"JWT_EXPIRY_MINUTES" envDefault:"120"`

	DefaultUserPassword string `env:"DEFAULT_USER_PASSWORD" envDefault:"changeme"`

	LoginRateLimitPerWindow    int `env:"LOGIN_RATE_LIMIT_PER_WINDOW" envDefault:"20"`
	LoginRateLimitWindowSecond int `env:"LOGIN_RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	CacheEnabled    bool   `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"30"`
	CacheRedisURL   string `env:"CACHE_REDIS_URL" envDefault:""`
	CacheNamespace  string `env:"CACHE_NAMESPACE" envDefault:"nls"`

	AuditLogEnabled bool `env:"AUDIT_LOG_ENABLED" envDefault:"true"`
	EnableSeed      bool `env:"ENABLE_SEED" envDefault:"true"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// DSN builds the postgres connection string the way the database
// package expects it.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
