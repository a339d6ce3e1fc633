package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Storage drivers
const (
	DriverMemory    = "memory"
	DriverSQLite    = "sqlite"
	DriverReindexer = "reindexer"
	DriverMongo     = "mongo"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	SQLite      SQLiteConfig      `mapstructure:"sqlite" validate:"-"`
	Reindexer   ReindexerConfig   `mapstructure:"reindexer" validate:"-"`
	Mongo       MongoConfig       `mapstructure:"mongo" validate:"-"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// StorageConfig selects the city store and how it is seeded
type StorageConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory sqlite reindexer mongo"`
	SeedFile    string `mapstructure:"seed_file"` // empty means the embedded seed
	SeedOnStart bool   `mapstructure:"seed_on_start"`
}

// SQLiteConfig contains the SQLite database location
type SQLiteConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ReindexerConfig contains Reindexer database configuration
type ReindexerConfig struct {
	DSN            string `mapstructure:"dsn" validate:"required"`
	Namespace      string `mapstructure:"namespace" validate:"required"`
	MaxConnections int    `mapstructure:"max_connections" validate:"min=1"`
}

// MongoConfig contains MongoDB connection settings
type MongoConfig struct {
	URI        string `mapstructure:"uri" validate:"required"`
	Database   string `mapstructure:"database" validate:"required"`
	Collection string `mapstructure:"collection" validate:"required"`
}

// RateLimitConfig contains per-client token bucket settings
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"min=1"`
}

// CacheConfig contains settings of the per-client limiter store
type CacheConfig struct {
	Shards int `mapstructure:"shards" validate:"min=1"`
	TTL    int `mapstructure:"ttl" validate:"min=0"` // TTL in seconds
}

// ConcurrencyConfig contains concurrency settings
type ConcurrencyConfig struct {
	MaxConcurrentQueries int `mapstructure:"max_concurrent_queries" validate:"min=1"`
}

// Get returns the singleton configuration instance
func Get() *Config {
	once.Do(func() {
		mu.Lock()
		if instance == nil {
			instance = &Config{}
		}
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Load initializes and loads configuration from file and environment variables
func Load(configPath string) error {
	mu.Lock()
	defer mu.Unlock()
	return load(configPath)
}

func load(configPath string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	instance = cfg
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.seed_file", "")
	v.SetDefault("storage.seed_on_start", false)

	v.SetDefault("sqlite.path", "cityinfo.db")

	// Используем cproto протокол (требует CGO) - RPC/TCP порт 6534
	v.SetDefault("reindexer.dsn", "cproto://localhost:6534/cityinfo")
	v.SetDefault("reindexer.namespace", "cities")
	v.SetDefault("reindexer.max_connections", 10)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cityinfo")
	v.SetDefault("mongo.collection", "cities")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.ttl", 900)

	v.SetDefault("concurrency.max_concurrent_queries", 100)
}

// bindEnvVars binds every known key to its APP_-prefixed variable,
// e.g. storage.seed_on_start to APP_STORAGE_SEED_ON_START
func bindEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
}

// validate checks struct tags, then the section of the selected driver
func validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	var section interface{}
	switch cfg.Storage.Driver {
	case DriverSQLite:
		section = cfg.SQLite
	case DriverReindexer:
		section = cfg.Reindexer
	case DriverMongo:
		section = cfg.Mongo
	default:
		return nil
	}
	if err := validate.Struct(section); err != nil {
		return fmt.Errorf("%s: %w", cfg.Storage.Driver, err)
	}
	return nil
}

// Reload reloads the configuration (thread-safe). On failure the previous
// configuration stays in place.
func Reload(configPath string) error {
	mu.Lock()
	defer mu.Unlock()

	previous := instance
	instance = nil
	once = sync.Once{}

	if err := load(configPath); err != nil {
		instance = previous
		return err
	}
	return nil
}
