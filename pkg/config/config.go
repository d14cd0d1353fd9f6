// Package config collects the runtime settings of the server from flags and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Persistence backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the full server configuration
type Config struct {
	Debug bool
	Port  string

	FrontendOrigins []string
	APIKeys         []string
	JWTSecret       string

	RoomTTL       time.Duration
	SweepInterval time.Duration
	TickInterval  time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	DefaultWhiteTime int64
	DefaultBlackTime int64
	DefaultIncrement int64

	StoreBackend string
	DatabaseURL  string
	RedisURL     string
	MatchTTL     time.Duration

	NoticesFile string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:             "8080",
		RoomTTL:          24 * time.Hour,
		SweepInterval:    time.Hour,
		TickInterval:     time.Second,
		RateLimitWindow:  time.Second,
		RateLimitMax:     100,
		DefaultWhiteTime: 600,
		DefaultBlackTime: 600,
		StoreBackend:     StoreMemory,
	}
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given). A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		present = append(present, f)
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with the values found in the environment.
func (c *Config) ApplyEnv() error {
	c.FrontendOrigins = splitCSV(getEnv("FRONTEND_PATH", strings.Join(c.FrontendOrigins, ",")))
	c.APIKeys = splitCSV(getEnv("API_KEYS", strings.Join(c.APIKeys, ",")))
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.NoticesFile = getEnv("NOTICES_FILE", c.NoticesFile)

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"ROOM_TTL", &c.RoomTTL},
		{"SWEEP_INTERVAL", &c.SweepInterval},
		{"TICK_INTERVAL", &c.TickInterval},
		{"RATE_LIMIT_WINDOW", &c.RateLimitWindow},
		{"MATCH_TTL", &c.MatchTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"DEFAULT_WHITE_TIME", &c.DefaultWhiteTime},
		{"DEFAULT_BLACK_TIME", &c.DefaultBlackTime},
		{"DEFAULT_INCREMENT", &c.DefaultIncrement},
	}
	for _, i := range ints {
		if *i.dst, err = getEnvInt(i.key, *i.dst); err != nil {
			return err
		}
	}

	limit, err := getEnvInt("RATE_LIMIT_MAX", int64(c.RateLimitMax))
	if err != nil {
		return err
	}
	c.RateLimitMax = int(limit)

	return c.Validate()
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}

	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	if c.RoomTTL <= 0 || c.SweepInterval <= 0 || c.TickInterval <= 0 {
		return errors.New("config: intervals must be positive")
	}
	if c.DefaultWhiteTime < 0 || c.DefaultBlackTime < 0 || c.DefaultIncrement < 0 {
		return errors.New("config: default timers must not be negative")
	}
	return nil
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return i, nil
}

func getEnvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", k, err)
	}
	return d, nil
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
