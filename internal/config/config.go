// Package config provides configuration loading and validation for the CLI.
//
// Values come from, lowest to highest precedence: built-in defaults, an
// optional config file (json, yaml or toml), and ROLE_TRACKER_* environment
// variables. DATABASE_URL and REDIS_URL are also honoured unprefixed.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/retry"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "ROLE_TRACKER"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	Store       string          `mapstructure:"store" validate:"oneof=postgres memory"`
	DatabaseURL string          `mapstructure:"database_url" validate:"required_if=Store postgres"`
	RedisURL    string          `mapstructure:"redis_url"`
	Discovery   DiscoveryConfig `mapstructure:"discovery"`
	Track       TrackConfig     `mapstructure:"track"`
	Merge       MergeConfig     `mapstructure:"merge"`
	Retry       RetryConfig     `mapstructure:"retry"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Schedule    ScheduleConfig  `mapstructure:"schedule"`
	Log         LogConfig       `mapstructure:"log"`
	Server      ServerConfig    `mapstructure:"server"`
	Export      ExportConfig    `mapstructure:"export"`
}

// DiscoveryConfig bounds one discovery batch.
type DiscoveryConfig struct {
	BatchLimit    int           `mapstructure:"batch_limit" validate:"gte=1"`
	Workers       int           `mapstructure:"workers" validate:"gte=1,lte=64"`
	MaxDuration   time.Duration `mapstructure:"max_duration" validate:"gt=0"`
	ProgressEvery int           `mapstructure:"progress_every" validate:"gte=1"`
	ProbeTypes    []string      `mapstructure:"probe_types" validate:"dive,oneof=greenhouse lever ashby workday icims"`
}

// TrackConfig bounds one tracking run.
type TrackConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// MergeConfig controls the cross-process merge lock. It is only used when
// RedisURL is set.
type MergeConfig struct {
	LockKey string        `mapstructure:"lock_key" validate:"required"`
	LockTTL time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

// RetryConfig configures retries of transient fetch failures.
type RetryConfig struct {
	Attempts       int           `mapstructure:"attempts" validate:"gte=1,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gt=0"`
}

// HTTPConfig configures the outbound ATS client.
type HTTPConfig struct {
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ScheduleConfig configures the recurring run.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" validate:"required"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port              int     `mapstructure:"port" validate:"gte=1,lte=65535"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=1"`
}

// ExportConfig configures projection exports.
type ExportConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store", StorePostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("discovery.batch_limit", 100)
	v.SetDefault("discovery.workers", 3)
	v.SetDefault("discovery.max_duration", 8*time.Minute)
	v.SetDefault("discovery.progress_every", 20)
	v.SetDefault("discovery.probe_types", []string{})

	v.SetDefault("track.workers", 4)

	v.SetDefault("merge.lock_key", "role-tracker:merge")
	v.SetDefault("merge.lock_ttl", 30*time.Second)

	v.SetDefault("retry.attempts", retry.DefaultAttempts)
	v.SetDefault("retry.initial_backoff", retry.DefaultInitialBackoff)
	v.SetDefault("retry.multiplier", retry.DefaultMultiplier)
	v.SetDefault("retry.max_backoff", retry.DefaultMaxBackoff)
	v.SetDefault("retry.attempt_timeout", retry.DefaultAttemptTimeout)

	v.SetDefault("http.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("http.requests_per_second", 4.0) // polite per-process ceiling
	v.SetDefault("http.burst", 4)
	v.SetDefault("http.timeout", fetch.DefaultTimeout)

	v.SetDefault("schedule.cron", "0 */6 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.requests_per_second", 10.0)
	v.SetDefault("server.burst", 20)

	v.SetDefault("export.dir", "out")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis_url", EnvPrefix+"_REDIS_URL", "REDIS_URL")
	SetDefaults(v)
	return v
}

// Load reads configuration from defaults, the optional file at path and the
// environment. The result is not validated.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Defaults returns the configuration with only built-in defaults applied.
func Defaults() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults are static; failing here is a programming error.
		panic(err)
	}
	return *cfg
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Retry.AttemptTimeout >= c.Discovery.MaxDuration {
		return fmt.Errorf("config error: 'retry.attempt_timeout' (%s) must be below 'discovery.max_duration' (%s)",
			c.Retry.AttemptTimeout, c.Discovery.MaxDuration)
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("config error: 'retry.max_backoff' must not be below 'retry.initial_backoff'")
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("config error: invalid 'schedule.cron' %q: %w", c.Schedule.Cron, err)
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// CLI flags build a partial Config and merge the loaded one underneath.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.Log.Level == "" {
		result.Log.Level = defaults.Log.Level
	}
	if result.Schedule.Cron == "" {
		result.Schedule.Cron = defaults.Schedule.Cron
	}
	if result.Export.Dir == "" {
		result.Export.Dir = defaults.Export.Dir
	}
	if result.HTTP.UserAgent == "" {
		result.HTTP.UserAgent = defaults.HTTP.UserAgent
	}
	if result.Merge.LockKey == "" {
		result.Merge.LockKey = defaults.Merge.LockKey
	}

	// Numeric fields: use default if zero
	if result.Discovery.BatchLimit == 0 {
		result.Discovery.BatchLimit = defaults.Discovery.BatchLimit
	}
	if result.Discovery.Workers == 0 {
		result.Discovery.Workers = defaults.Discovery.Workers
	}
	if result.Discovery.MaxDuration == 0 {
		result.Discovery.MaxDuration = defaults.Discovery.MaxDuration
	}
	if result.Discovery.ProgressEvery == 0 {
		result.Discovery.ProgressEvery = defaults.Discovery.ProgressEvery
	}
	if len(result.Discovery.ProbeTypes) == 0 {
		result.Discovery.ProbeTypes = defaults.Discovery.ProbeTypes
	}
	if result.Track.Workers == 0 {
		result.Track.Workers = defaults.Track.Workers
	}
	if result.Merge.LockTTL == 0 {
		result.Merge.LockTTL = defaults.Merge.LockTTL
	}
	if result.Retry == (RetryConfig{}) {
		result.Retry = defaults.Retry
	}
	if result.HTTP.RequestsPerSecond == 0 {
		result.HTTP.RequestsPerSecond = defaults.HTTP.RequestsPerSecond
	}
	if result.HTTP.Burst == 0 {
		result.HTTP.Burst = defaults.HTTP.Burst
	}
	if result.HTTP.Timeout == 0 {
		result.HTTP.Timeout = defaults.HTTP.Timeout
	}
	if result.Server.Port == 0 {
		result.Server.Port = defaults.Server.Port
	}
	if result.Server.RequestsPerSecond == 0 {
		result.Server.RequestsPerSecond = defaults.Server.RequestsPerSecond
	}
	if result.Server.Burst == 0 {
		result.Server.Burst = defaults.Server.Burst
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// RetryPolicy converts the retry section into a policy using retryable as
// the classifier.
func (c *Config) RetryPolicy(retryable func(error) bool) retry.Policy {
	return retry.Policy{
		Attempts:       c.Retry.Attempts,
		InitialBackoff: c.Retry.InitialBackoff,
		Multiplier:     c.Retry.Multiplier,
		MaxBackoff:     c.Retry.MaxBackoff,
		AttemptTimeout: c.Retry.AttemptTimeout,
		Retryable:      retryable,
	}
}

// FetchOptions converts the http section into client options.
func (c *Config) FetchOptions() *fetch.Options {
	return &fetch.Options{
		Timeout:           c.HTTP.Timeout,
		UserAgent:         c.HTTP.UserAgent,
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
		Burst:             c.HTTP.Burst,
	}
}

// LogOptions converts the log section into logger options.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, JSON: c.Log.JSON}
}
