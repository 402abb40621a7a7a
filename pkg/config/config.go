// Package config loads the gateway configuration from an optional YAML file
// and the environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Store    StoreConfig    `mapstructure:"store"`
	Warm     WarmConfig     `mapstructure:"warm"`
	Predict  PredictConfig  `mapstructure:"predict"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type UpstreamConfig struct {
	AuthMode          string        `mapstructure:"auth_mode" validate:"oneof=APISPORTS RAPIDAPI"`
	APISportsKey      string        `mapstructure:"apisports_key"`
	APISportsBaseURL  string        `mapstructure:"apisports_base_url" validate:"required,url"`
	RapidAPIKey       string        `mapstructure:"rapidapi_key"`
	RapidAPIHost      string        `mapstructure:"rapidapi_host" validate:"required"`
	RapidAPIBaseURL   string        `mapstructure:"rapidapi_base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown" validate:"gte=0"`
}

type BudgetConfig struct {
	DailyLimit int64 `mapstructure:"daily_limit" validate:"gte=0"`
}

type CacheConfig struct {
	AllowStaleOnError bool      `mapstructure:"allow_stale_on_error"`
	TTL               TTLConfig `mapstructure:"ttl"`
}

type TTLConfig struct {
	Fixtures    time.Duration `mapstructure:"fixtures" validate:"gt=0"`
	FixturesDay time.Duration `mapstructure:"fixtures_day" validate:"gt=0"`
	Standings   time.Duration `mapstructure:"standings" validate:"gt=0"`
	TeamStats   time.Duration `mapstructure:"teamstats" validate:"gt=0"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=sqlite redis"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisURL   string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	// HoldsInRedis shares rate-limit holds through Redis even on the SQLite backend.
	HoldsInRedis bool `mapstructure:"holds_in_redis"`
}

type WarmConfig struct {
	TeamStatsLimit int `mapstructure:"teamstats_limit" validate:"gt=0"`
	// Schedule is a standard five field cron spec in UTC; empty disables it.
	Schedule         string `mapstructure:"schedule"`
	DefaultLeagueIDs string `mapstructure:"default_league_ids"`
	Standings        bool   `mapstructure:"standings"`
	TeamStats        bool   `mapstructure:"teamstats"`
}

type PredictConfig struct {
	MaxMatches  int           `mapstructure:"max_matches" validate:"gt=0"`
	TimeBudget  time.Duration `mapstructure:"time_budget" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Pretty bool   `mapstructure:"pretty"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"upstream.auth_mode":           "FOOTY_AUTH_MODE",
	"upstream.apisports_key":       "APISPORTS_KEY",
	"upstream.apisports_base_url":  "FOOTBALL_BASE",
	"upstream.rapidapi_key":        "X_RAPIDAPI_KEY",
	"upstream.rapidapi_host":       "X_RAPIDAPI_HOST",
	"upstream.rapidapi_base_url":   "UPSTREAM_BASE_URL",
	"upstream.timeout":             "UPSTREAM_TIMEOUT",
	"upstream.requests_per_second": "UPSTREAM_RPS",
	"upstream.burst":               "UPSTREAM_BURST",
	"upstream.breaker_failures":    "UPSTREAM_BREAKER_FAILURES",
	"upstream.breaker_cooldown":    "UPSTREAM_BREAKER_COOLDOWN",
	"budget.daily_limit":           "DAILY_UPSTREAM_LIMIT",
	"cache.allow_stale_on_error":   "CACHE_ALLOW_STALE_ON_ERROR",
	"cache.ttl.fixtures":           "TTL_FIXTURES",
	"cache.ttl.fixtures_day":       "TTL_FIXTURES_DAY",
	"cache.ttl.standings":          "TTL_STANDINGS",
	"cache.ttl.teamstats":          "TTL_TEAMSTATS",
	"store.backend":                "STORE_BACKEND",
	"store.sqlite_path":            "SQLITE_PATH",
	"store.redis_url":              "REDIS_URL",
	"store.holds_in_redis":         "HOLDS_IN_REDIS",
	"warm.teamstats_limit":         "TEAMSTATS_WARM_LIMIT",
	"warm.schedule":                "WARM_SCHEDULE",
	"warm.default_league_ids":      "DEFAULT_LEAGUE_IDS",
	"warm.standings":               "WARM_STANDINGS",
	"warm.teamstats":               "WARM_TEAMSTATS",
	"predict.max_matches":          "PREDICT_MAX_MATCHES",
	"predict.time_budget":          "PREDICT_TIME_BUDGET",
	"predict.concurrency":          "PREDICT_CONCURRENCY",
	"server.port":                  "API_PORT",
	"server.cors_origin":           "CORS_ORIGIN",
	"log.level":                    "LOG_LEVEL",
	"log.pretty":                   "LOG_PRETTY",
}

func setDefaults(v *viper.Viper) {
	up := upstream.DefaultConfig()
	ttls := gateway.DefaultTTLs()
	pr := predict.DefaultConfig()

	v.SetDefault("upstream.auth_mode", string(up.AuthMode))
	v.SetDefault("upstream.apisports_base_url", up.APISportsBaseURL)
	v.SetDefault("upstream.rapidapi_host", up.RapidAPIHost)
	v.SetDefault("upstream.rapidapi_base_url", up.RapidAPIBaseURL)
	v.SetDefault("upstream.timeout", up.Timeout)
	v.SetDefault("upstream.requests_per_second", up.RequestsPerSecond)
	v.SetDefault("upstream.burst", up.Burst)
	v.SetDefault("upstream.breaker_failures", up.BreakerFailures)
	v.SetDefault("upstream.breaker_cooldown", up.BreakerCooldown)
	v.SetDefault("budget.daily_limit", 100)
	v.SetDefault("cache.allow_stale_on_error", true)
	v.SetDefault("cache.ttl.fixtures", ttls.Fixtures)
	v.SetDefault("cache.ttl.fixtures_day", ttls.FixturesDay)
	v.SetDefault("cache.ttl.standings", ttls.Standings)
	v.SetDefault("cache.ttl.teamstats", ttls.TeamStats)
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite_path", filepath.Join(".cache", "cache.sqlite"))
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("warm.teamstats_limit", warm.DefaultTeamStatsLimit)
	v.SetDefault("warm.schedule", "0 6 * * *")
	v.SetDefault("warm.standings", true)
	v.SetDefault("predict.max_matches", pr.MaxMatches)
	v.SetDefault("predict.time_budget", pr.TimeBudget)
	v.SetDefault("predict.concurrency", pr.Concurrency)
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.cors_origin", "http://localhost:5173")
	v.SetDefault("log.level", string(logging.LevelInfo))
}

// Loader reads and validates configuration.
type Loader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

// NewLoader creates a loader. An empty configFile searches for
// footy-gateway.yaml in the working directory and $HOME/.config/footy-gateway.
func NewLoader(configFile string) (*Loader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("footy-gateway")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/footy-gateway")
	}

	return &Loader{viper: v, validator: validate, translator: trans}, nil
}

// Load is shorthand for NewLoader(configFile).Load().
func Load(configFile string) (*Config, error) {
	loader, err := NewLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}

// Load reads the file (if any), applies environment overrides and validates.
func (l *Loader) Load() (*Config, error) {
	v := l.viper
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	cfg.normalize()
	if err := l.validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Upstream.AuthMode = strings.ToUpper(strings.TrimSpace(c.Upstream.AuthMode))
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Warm.Schedule = strings.TrimSpace(c.Warm.Schedule)
}

func (l *Loader) validate(c *Config) error {
	var msgs []string

	if err := l.validator.Struct(c); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		for _, e := range validationErrors {
			msgs = append(msgs, e.Translate(l.translator))
		}
	}

	if c.Warm.Schedule != "" {
		if _, err := cron.ParseStandard(c.Warm.Schedule); err != nil {
			msgs = append(msgs, fmt.Sprintf("warm.schedule: %v", err))
		}
	}
	if _, err := c.LeagueIDs(); err != nil {
		msgs = append(msgs, fmt.Sprintf("warm.default_league_ids: %v", err))
	}

	if len(msgs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
	}
	return nil
}

// LeagueIDs parses the default league list of scheduled warm runs.
func (c *Config) LeagueIDs() ([]int, error) {
	return warm.ParseLeagueIDs(c.Warm.DefaultLeagueIDs)
}

// UpstreamClient returns the upstream client configuration.
func (c *Config) UpstreamClient() upstream.Config {
	return upstream.Config{
		AuthMode:          upstream.AuthMode(c.Upstream.AuthMode),
		APISportsKey:      c.Upstream.APISportsKey,
		APISportsBaseURL:  c.Upstream.APISportsBaseURL,
		RapidAPIKey:       c.Upstream.RapidAPIKey,
		RapidAPIHost:      c.Upstream.RapidAPIHost,
		RapidAPIBaseURL:   c.Upstream.RapidAPIBaseURL,
		Timeout:           c.Upstream.Timeout,
		RequestsPerSecond: c.Upstream.RequestsPerSecond,
		Burst:             c.Upstream.Burst,
		BreakerFailures:   c.Upstream.BreakerFailures,
		BreakerCooldown:   c.Upstream.BreakerCooldown,
	}
}

// TTLs returns the freshness windows.
func (c *Config) TTLs() gateway.TTLs {
	return gateway.TTLs{
		Fixtures:    c.Cache.TTL.Fixtures,
		FixturesDay: c.Cache.TTL.FixturesDay,
		Standings:   c.Cache.TTL.Standings,
		TeamStats:   c.Cache.TTL.TeamStats,
	}
}

// GatewayOptions returns the fallback policy.
func (c *Config) GatewayOptions() gateway.Options {
	opts := gateway.DefaultOptions()
	opts.AllowStaleOnError = c.Cache.AllowStaleOnError
	return opts
}

// PredictConfig returns the predictor settings.
func (c *Config) PredictConfig() predict.Config {
	return predict.Config{
		MaxMatches:  c.Predict.MaxMatches,
		TimeBudget:  c.Predict.TimeBudget,
		Concurrency: c.Predict.Concurrency,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
