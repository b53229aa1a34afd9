package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KHATA_CONFIG", "KHATA_ENV", "LOG_LEVEL", "HTTP_ADDR", "STORE_DRIVER",
		"SQLITE_DIR", "DATABASE_URL", "MONGO_URI", "MONGO_DATABASE", "LOCK_DRIVER",
		"REDIS_ADDR", "KAFKA_BROKERS", "KAFKA_TOPIC", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout.Duration)
	assert.False(t, cfg.EventsEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/khata?sslmode=disable")
	t.Setenv("LOCK_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, LockRedis, cfg.LockDriver)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.EventsEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "khata.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
env = "production"
http_addr = ":9090"
store_driver = "sqlite"
sqlite_dir = "/var/lib/khata"
shutdown_timeout = "30s"
kafka_brokers = ["kafka:9092"]
`), 0o600))
	t.Setenv("KHATA_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over the file")
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, "/var/lib/khata", cfg.SQLiteDir)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout.Duration)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing config file", map[string]string{"KHATA_CONFIG": "/does/not/exist.toml"}},
		{"bad duration", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}},
		{"unknown store", map[string]string{"STORE_DRIVER": "oracle"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"mongo without uri", map[string]string{"STORE_DRIVER": "mongo"}},
		{"unknown lock", map[string]string{"LOCK_DRIVER": "zookeeper"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.StoreDriver = StorePostgres
	cfg.LockDriver = LockRedis
	cfg.RedisAddr = ""
	cfg.ShutdownTimeout = Duration{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_ADDR")
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}
