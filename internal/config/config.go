// Package config loads process settings. Precedence, lowest first:
// defaults, the TOML file named by KHATA_CONFIG, then the environment
// (which a .env file in the working directory may populate).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sheikh-saqib/khata-ledger/internal/models/events"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Lock drivers.
const (
	LockLocal = "local"
	LockRedis = "redis"
	LockNone  = "none"
)

type Config struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`

	StoreDriver   string `toml:"store_driver"`
	SQLiteDir     string `toml:"sqlite_dir"`
	DatabaseURL   string `toml:"database_url"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`

	LockDriver string `toml:"lock_driver"`
	RedisAddr  string `toml:"redis_addr"`

	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Env:             "development",
		LogLevel:        "info",
		HTTPAddr:        ":8080",
		StoreDriver:     StoreMemory,
		SQLiteDir:       "data",
		MongoDatabase:   "khata",
		LockDriver:      LockLocal,
		RedisAddr:       "localhost:6379",
		KafkaTopic:      events.TransactionRecordedTopic,
		ShutdownTimeout: Duration{15 * time.Second},
	}
}

// Load reads .env, the optional TOML file and the environment, then
// validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("KHATA_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"KHATA_ENV":      &c.Env,
		"LOG_LEVEL":      &c.LogLevel,
		"HTTP_ADDR":      &c.HTTPAddr,
		"STORE_DRIVER":   &c.StoreDriver,
		"SQLITE_DIR":     &c.SQLiteDir,
		"DATABASE_URL":   &c.DatabaseURL,
		"MONGO_URI":      &c.MongoURI,
		"MONGO_DATABASE": &c.MongoDatabase,
		"LOCK_DRIVER":    &c.LockDriver,
		"REDIS_ADDR":     &c.RedisAddr,
		"KAFKA_TOPIC":    &c.KafkaTopic,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("SHUTDOWN_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = Duration{d}
	}
	return nil
}

// Validate checks that the selected drivers have what they need.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLiteDir == "" {
			errs = append(errs, errors.New("SQLITE_DIR is required for the sqlite store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.LockDriver {
	case LockLocal, LockNone:
	case LockRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver))
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EventsEnabled reports whether transaction events go to Kafka.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
