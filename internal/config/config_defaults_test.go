package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	require.Equal(t, "warehoused", cfg.App.Name)
	require.Equal(t, "info", cfg.App.LogLevel)
	require.Equal(t, "json", cfg.App.LogFormat)
	require.Equal(t, 8401, cfg.WebPort)
	require.Equal(t, 8402, cfg.GRPCPort)
	require.Equal(t, 15*time.Minute, cfg.Query.ColdWindow)
	require.Equal(t, 20, cfg.Query.TraceLimit)
	require.NotNil(t, cfg.Storage.Local, "defaults to a local store when no selector was configured")
	require.Nil(t, cfg.Storage.S3)
}

func TestApplyDefaultsLeavesExplicitValuesAlone(t *testing.T) {
	cfg := &Config{WebPort: 9000, Storage: StorageConfig{S3: &S3StorageConfig{Bucket: "traces"}}}
	applyDefaults(cfg)

	require.Equal(t, 9000, cfg.WebPort)
	require.Nil(t, cfg.Storage.Local, "an explicit s3 selector is not overridden by the local default")
	require.Equal(t, "traces", cfg.Storage.S3.Bucket)
}

func TestApplyEnvOverridesPromotesS3Selector(t *testing.T) {
	t.Setenv("WAREHOUSED_S3_ENDPOINT", "minio:9000")
	t.Setenv("WAREHOUSED_S3_BUCKET", "traces")
	t.Setenv("WAREHOUSED_S3_KEY", "k")
	t.Setenv("WAREHOUSED_S3_SECRET", "s")

	cfg := &Config{Storage: StorageConfig{Local: &LocalStorageConfig{Dir: "/data"}}}
	applyEnvOverrides(cfg)

	require.Nil(t, cfg.Storage.Local, "presence of an s3 env var supersedes a file-configured local selector")
	require.Equal(t, "minio:9000", cfg.Storage.S3.Endpoint)
	require.Equal(t, "traces", cfg.Storage.S3.Bucket)
}

func TestApplyEnvOverridesMemoryMode(t *testing.T) {
	t.Setenv("WAREHOUSED_MEMORY_MODE", "true")
	cfg := &Config{}
	applyEnvOverrides(cfg)
	require.True(t, cfg.MemoryMode)
}
