package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string        `yaml:"addr"`
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	// APIBase is where events would be uploaded. Nothing is sent; it is logged at startup.
	APIBase string `yaml:"api_base"`
	// RateLimitDisabled turns off per-client throttling and passcode lockout.
	RateLimitDisabled bool `yaml:"rate_limit_disabled"`
}

// Store selects and configures the document backend.
type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Key     string `yaml:"key"`
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	PostgresURL string `yaml:"postgres_url"`
	MySQLDSN    string `yaml:"mysql_dsn"`
}

// Device is the identity a fresh installation starts with.
type Device struct {
	OrgID    string `yaml:"org_id"`
	SiteID   string `yaml:"site_id"`
	DeviceID string `yaml:"device_id"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full process configuration.
type Config struct {
	Server   Server         `yaml:"server"`
	Store    Store          `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Device   Device         `yaml:"device"`
	Log      Log            `yaml:"log"`
}

// Load reads .env (if present), the environment and then the optional YAML
// file named by TIMECLOCK_CONFIG, whose values win over the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if path := os.Getenv("TIMECLOCK_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("TIMECLOCK_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
			SessionTTL:    envDuration("TIMECLOCK_SESSION_TTL", 15*time.Minute),
			APIBase:       os.Getenv("TIMECLOCK_API_BASE"),

			RateLimitDisabled: envBool("TIMECLOCK_RATE_LIMIT_DISABLED", false),
		},
		Store: Store{
			Backend: strings.ToLower(envOr("TIMECLOCK_STORE", BackendFile)),
			Path:    envOr("TIMECLOCK_STORE_PATH", "data/timeclock.json"),
			Key:     envOr("TIMECLOCK_STORE_KEY", "timeclock.state.v1"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("DATABASE_URL"),
			MySQLDSN:    os.Getenv("MYSQL_DSN"),
		},
		Device: Device{
			OrgID:    envOr("TIMECLOCK_ORG_ID", "org-demo"),
			SiteID:   envOr("TIMECLOCK_SITE_ID", "site-main"),
			DeviceID: envOr("TIMECLOCK_DEVICE_ID", "kiosk-01"),
		},
		Log: Log{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}
}

// MergeFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("TIMECLOCK_STORE_PATH is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if c.Database.PostgresURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMySQL:
		if c.Database.MySQLDSN == "" {
			return errors.New("MYSQL_DSN is required for the mysql backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	return nil
}

// UsesDevSigningKey reports whether the built-in development key is in use.
func (c Config) UsesDevSigningKey() bool {
	return c.Server.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
