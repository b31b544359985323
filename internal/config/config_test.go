package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsForLocalDevelopment(t *testing.T) {
	t.Setenv("SENTIMENTGATE_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsLocalDevelopment())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, "mock", cfg.Engine.Kind)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, "generous", cfg.Pipeline.Settlement)
	assert.Equal(t, "pipeline.yaml", cfg.Pipeline.ConfigPath)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.TracingEnabled)
	assert.False(t, cfg.UseS3())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SENTIMENTGATE_ENV", "production")
	t.Setenv("SENTIMENTGATE_PORT", "9090")
	t.Setenv("SENTIMENTGATE_PUBLIC_URL", "https://api.example.com/")
	t.Setenv("LEDGER_BACKEND", "Postgres")
	t.Setenv("LEDGER_POSTGRES_DSN", "postgres://localhost/quota")
	t.Setenv("ENGINE_KIND", "http")
	t.Setenv("ENGINE_URL", "http://engine:8000/predict")
	t.Setenv("ENGINE_TIMEOUT", "90s")
	t.Setenv("S3_BUCKET", "uploads")
	t.Setenv("PIPELINE_SETTLEMENT", "STRICT")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SAMPLING_RATIO", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsLocalDevelopment())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://api.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "postgres", cfg.Ledger.Backend)
	assert.Equal(t, "http", cfg.Engine.Kind)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.True(t, cfg.UseS3())
	assert.Equal(t, "strict", cfg.Pipeline.Settlement)
	assert.True(t, cfg.Observability.TracingEnabled)
	assert.Equal(t, 1.0, cfg.Observability.SamplingRatio)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port", map[string]string{"SENTIMENTGATE_PORT": "70000"}, "SENTIMENTGATE_PORT"},
		{"ledger backend", map[string]string{"LEDGER_BACKEND": "etcd"}, "LEDGER_BACKEND"},
		{"postgres dsn", map[string]string{"LEDGER_BACKEND": "postgres"}, "LEDGER_POSTGRES_DSN"},
		{"engine kind", map[string]string{"ENGINE_KIND": "grpc"}, "ENGINE_KIND"},
		{"engine url", map[string]string{"ENGINE_KIND": "http"}, "ENGINE_URL"},
		{"sagemaker endpoint", map[string]string{"ENGINE_KIND": "sagemaker"}, "SAGEMAKER_ENDPOINT"},
		{"mock in production", map[string]string{"SENTIMENTGATE_ENV": "production", "S3_BUCKET": "b"}, "ENGINE_KIND=mock"},
		{"half static keys", map[string]string{"S3_ACCESS_KEY_ID": "AKIA"}, "S3_SECRET_ACCESS_KEY"},
		{"bucket in production", map[string]string{
			"SENTIMENTGATE_ENV": "production", "ENGINE_KIND": "http", "ENGINE_URL": "http://e",
		}, "S3_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SENTIMENTGATE_ENV", "dev")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
