package types

import (
	"errors"
	"io/fs"
	"time"

	"github.com/invote/invote/pkg/disclosure"
	"github.com/invote/invote/pkg/hub"
	"github.com/invote/invote/pkg/redis"
	"github.com/invote/invote/pkg/reveal"
	"github.com/invote/invote/pkg/utils"
	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// DefaultCORSOrigins are matched as regular expressions against the Origin header.
var DefaultCORSOrigins = []string{
	`localhost`,
	`127\.0\.0\.1`,
	`yan3321\.com$`,
	`yan\.gg$`,
	`mysver\.se$`,
	`mys\.gg$`,
}

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Addr string

	// SeriesIdentifier is both the series new ballots and seats are written
	// to and the series whose results are gated.
	SeriesIdentifier string
	RevealParties    bool
	RevealDelay      time.Duration

	APIKey string

	StoreDriver string
	DatabaseURL string

	RedisEnabled bool
	Redis        redis.Config
	RedisChannel string

	RevealCron string
	HubWorkers int

	CORSOrigins []string
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() Config {
	addr := utils.Env("ADDR", ":3000")
	if port := utils.Env("API_PORT", ""); port != "" {
		addr = ":" + port
	}

	return Config{
		Addr:             addr,
		SeriesIdentifier: utils.Env("IDENTIFIER", ""),
		RevealParties:    utils.EnvBool("REVEAL_PARTIES", false),
		RevealDelay:      utils.EnvDuration("REVEAL_DELAY", disclosure.DefaultRevealDelay),
		APIKey:           utils.Env("AUTHENTICATION_KEY", ""),
		StoreDriver:      utils.Env("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:      utils.Env("DATABASE_URL", utils.Env("POSTGRES_URL", "postgres://localhost:5432/postgres")),
		RedisEnabled:     utils.EnvBool("REDIS_ENABLED", false),
		Redis: redis.Config{
			Host:     utils.Env("REDIS_HOST", "localhost"),
			Port:     utils.Env("REDIS_PORT", "6379"),
			Password: utils.Env("REDIS_PASSWORD", ""),
			DB:       utils.EnvInt("REDIS_DB", 0),
		},
		RedisChannel: utils.Env("REDIS_CHANNEL", redis.DefaultChannel),
		RevealCron:   utils.Env("REVEAL_CRON", reveal.DefaultSpec),
		HubWorkers:   utils.EnvInt("HUB_WORKERS", hub.DefaultWorkers),
		CORSOrigins:  utils.EnvList("CORS_ORIGINS", DefaultCORSOrigins),
	}
}

// Disclosure derives the disclosure policy settings.
func (c Config) Disclosure() disclosure.Config {
	return disclosure.Config{
		SensitiveSeries: c.SeriesIdentifier,
		Anonymize:       !c.RevealParties,
		RevealDelay:     c.RevealDelay,
	}
}
