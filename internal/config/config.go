package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when Load receives an empty path.
const DefaultPath = "configs/frontdesk.yaml"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Notify     NotifyConfig     `yaml:"notify"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Rollover   RolloverConfig   `yaml:"rollover"`
	Logging    LoggingConfig    `yaml:"logging"`
	Clinics    []ClinicConfig   `yaml:"clinics"`
}

type ServerConfig struct {
	Address           string  `yaml:"address"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	ShutdownTimeoutMS int     `yaml:"shutdown_timeout_ms"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	MaxRetries int    `yaml:"max_retries"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type NotifyConfig struct {
	RedisBridge   bool   `yaml:"redis_bridge"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type AttendanceConfig struct {
	WindowDays int `yaml:"window_days"`
}

type RolloverConfig struct {
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// ClinicConfig names a clinic and the time zone its calendar day is kept in.
type ClinicConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Store.Driver == DriverSQLite {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	if c.Store.MaxRetries <= 0 {
		c.Store.MaxRetries = 5
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/frontdesk.db"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "frontdesk"
	}
	if c.Notify.ChannelPrefix == "" {
		c.Notify.ChannelPrefix = "frontdesk:events"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Attendance.WindowDays <= 0 {
		c.Attendance.WindowDays = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Clinics {
		if c.Clinics[i].Timezone == "" {
			c.Clinics[i].Timezone = "UTC"
		}
	}
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("store.driver postgres requires database.dsn")
		}
	case DriverRedis:
		if c.Redis.Address == "" && c.Redis.URL == "" {
			return errors.New("store.driver redis requires redis.address or redis.url")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Notify.RedisBridge && c.Redis.Address == "" && c.Redis.URL == "" {
		return errors.New("notify.redis_bridge requires redis.address or redis.url")
	}

	seen := make(map[string]bool, len(c.Clinics))
	for _, cl := range c.Clinics {
		if cl.ID == "" {
			return errors.New("clinic with empty id")
		}
		if seen[cl.ID] {
			return fmt.Errorf("duplicate clinic id %q", cl.ID)
		}
		seen[cl.ID] = true
		if _, err := time.LoadLocation(cl.Timezone); err != nil {
			return fmt.Errorf("clinic %q: %w", cl.ID, err)
		}
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Store.Driver == DriverRedis || c.Notify.RedisBridge
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) RolloverInterval() time.Duration {
	if c.Rollover.CheckIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Rollover.CheckIntervalSeconds) * time.Second
}
