package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"

	SessionCookie = "cookie"
	SessionMemory = "memory"
)

type Config struct {
	Mode            string          `mapstructure:"mode"`
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	Secret          string          `mapstructure:"secret"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	Session         SessionConfig   `mapstructure:"session"`
	Store           StoreConfig     `mapstructure:"store"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type SessionConfig struct {
	Store  string `mapstructure:"store"`
	MaxAge int    `mapstructure:"max_age"`
	Secure bool   `mapstructure:"secure"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type DynamoDBConfig struct {
	Region    string `mapstructure:"region"`
	Table     string `mapstructure:"table"`
	NameIndex string `mapstructure:"name_index"`
	// Endpoint points the client at a local DynamoDB when set.
	Endpoint string `mapstructure:"endpoint"`
}

// RateLimitConfig bounds memo mutations per client; Limit 0 disables it.
type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (or CONFIG_FILE when set),
// then applies MEMO_* environment overrides.
func Load() (*Config, error) {
	fileName := os.Getenv("CONFIG_FILE")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	return LoadFile(fileName)
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("MEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Secret == "" && cfg.Mode == "debug" {
		cfg.Secret = uuid.NewString() + uuid.NewString()
		log.Warn().Str("module", "config").Msg("no secret configured, sessions will not survive a restart")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Str("session", cfg.Session.Store).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("shutdown_timeout", "5s")

	v.SetDefault("session.store", SessionCookie)
	v.SetDefault("session.max_age", 7*24*3600)
	v.SetDefault("session.secure", false)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "memoboard")
	v.SetDefault("store.mongo.collection", "members")
	v.SetDefault("store.mongo.timeout", "10s")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.table", "members")
	v.SetDefault("store.dynamodb.name_index", "name-index")
	v.SetDefault("store.dynamodb.endpoint", "")

	v.SetDefault("rate_limit.limit", 0)
	v.SetDefault("rate_limit.interval", "1m")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Secret == "" {
		errs = append(errs, errors.New("secret is required outside debug mode"))
	}
	switch c.Session.Store {
	case SessionCookie, SessionMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required"))
		}
	case DriverDynamoDB:
		if c.Store.DynamoDB.Table == "" || c.Store.DynamoDB.NameIndex == "" {
			errs = append(errs, errors.New("store.dynamodb.table and name_index are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.RateLimit.Limit < 0 {
		errs = append(errs, errors.New("rate_limit.limit must not be negative"))
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("rate_limit.interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
