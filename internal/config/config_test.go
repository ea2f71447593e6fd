package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("DEFAULT_TIMEOUT", "soon")
	t.Setenv("S3_PATH_STYLE", "maybe")

	cfg := Load()
	require.Equal(t, 5, cfg.WorkerCount)
	require.Equal(t, 15*time.Minute, cfg.DefaultTimeout)
	require.False(t, cfg.S3PathStyle)
}

func TestLoad_RemoteDriver(t *testing.T) {
	cfg := Load()
	require.Equal(t, "clickhouse", cfg.RemoteDriver)
	require.Empty(t, cfg.RemoteDSN)

	t.Setenv("REMOTE_DRIVER", "postgres")
	t.Setenv("REMOTE_DSN", "postgres://bob@db:5432/events")
	cfg = Load()
	require.Equal(t, "postgres", cfg.RemoteDriver)
	require.Equal(t, "postgres://bob@db:5432/events", cfg.RemoteDSN)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("MAX_SCAN_CONCURRENCY", "2")
	t.Setenv("BATCH_SIZE", "512")
	t.Setenv("DEFAULT_TIMEOUT", "90s")
	t.Setenv("COMPRESSION", "zstd")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CLICKHOUSE_URL", "tcp://ch:9000")
	t.Setenv("NATIVE_TERMINATION", "short")
	t.Setenv("NATIVE_MAX_BLOCK_SIZE", "1000")
	t.Setenv("JWT_SECRET", "jwt")

	cfg := Load()
	require.Equal(t, "9090", cfg.ServerPort)
	require.Equal(t, 8, cfg.WorkerCount)
	require.Equal(t, int64(2), cfg.MaxScanConcurrency)
	require.Equal(t, 512, cfg.BatchSize)
	require.Equal(t, 90*time.Second, cfg.DefaultTimeout)
	require.Equal(t, "zstd", cfg.Compression)
	require.True(t, cfg.S3PathStyle)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, "tcp://ch:9000", cfg.ClickHouseURL)
	require.Equal(t, "short", cfg.NativeTermination)
	require.Equal(t, uint64(1000), cfg.NativeMaxBlockSize)
	require.Equal(t, "jwt", cfg.JWTSecret)
}
