package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Ledger        LedgerConfig
	Storage       StorageConfig
	Engine        EngineConfig
	Pipeline      PipelineConfig
	Log           LogConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port            int
	PublicURL       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Failed-credential throttling, per client IP.
	AuthFailureRPS   float64
	AuthFailureBurst int
}

type LedgerConfig struct {
	Backend     string // memory, sqlite, postgres, redis
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
	RedisPrefix string
}

type StorageConfig struct {
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3UsePathStyle bool

	// Static keys for S3-compatible stores; empty means the default AWS chain.
	S3AccessKeyID     string
	S3SecretAccessKey string

	// MemorySecret signs upload URLs of the in-process store used when no
	// bucket is configured.
	MemorySecret string
}

type EngineConfig struct {
	Kind              string // http, sagemaker, mock
	URL               string
	APIKey            string
	SigningKey        string
	SageMakerEndpoint string
	Timeout           time.Duration
}

type PipelineConfig struct {
	ConfigPath string
	Settlement string
}

type LogConfig struct {
	Level  string
	Format string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVer     string
	SamplingRatio  float64
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("sentimentgate_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("sentimentgate_port", 8080)
	v.SetDefault("sentimentgate_public_url", "")
	v.SetDefault("sentimentgate_read_timeout", "30s")
	v.SetDefault("sentimentgate_write_timeout", "10m")
	v.SetDefault("sentimentgate_shutdown_timeout", "15s")
	v.SetDefault("sentimentgate_auth_failure_rps", 1.0)
	v.SetDefault("sentimentgate_auth_failure_burst", 10)
	v.SetDefault("ledger_backend", "memory")
	v.SetDefault("ledger_sqlite_path", "data/quota")
	v.SetDefault("ledger_postgres_dsn", "")
	v.SetDefault("ledger_redis_addr", "localhost:6379")
	v.SetDefault("ledger_redis_prefix", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_use_path_style", false)
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("memory_store_secret", "")
	v.SetDefault("engine_kind", "mock")
	v.SetDefault("engine_url", "")
	v.SetDefault("engine_api_key", "")
	v.SetDefault("engine_signing_key", "")
	v.SetDefault("sagemaker_endpoint", "")
	v.SetDefault("engine_timeout", "5m")
	v.SetDefault("pipeline_config", "pipeline.yaml")
	v.SetDefault("pipeline_settlement", "generous")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_service_name", "sentimentgate")
	v.SetDefault("sentimentgate_version", "dev")
	v.SetDefault("otel_sampling_ratio", 1.0)

	env := resolveEnvironment(v)
	port := v.GetInt("sentimentgate_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid SENTIMENTGATE_PORT: %d", port)
	}

	samplingRatio := v.GetFloat64("otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	publicURL := strings.TrimRight(strings.TrimSpace(v.GetString("sentimentgate_public_url")), "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", port)
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))

	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:             port,
			PublicURL:        publicURL,
			ReadTimeout:      v.GetDuration("sentimentgate_read_timeout"),
			WriteTimeout:     v.GetDuration("sentimentgate_write_timeout"),
			ShutdownTimeout:  v.GetDuration("sentimentgate_shutdown_timeout"),
			AuthFailureRPS:   v.GetFloat64("sentimentgate_auth_failure_rps"),
			AuthFailureBurst: v.GetInt("sentimentgate_auth_failure_burst"),
		},
		Ledger: LedgerConfig{
			Backend:     strings.ToLower(strings.TrimSpace(v.GetString("ledger_backend"))),
			SQLitePath:  strings.TrimSpace(v.GetString("ledger_sqlite_path")),
			PostgresDSN: strings.TrimSpace(v.GetString("ledger_postgres_dsn")),
			RedisAddr:   strings.TrimSpace(v.GetString("ledger_redis_addr")),
			RedisPrefix: strings.TrimSpace(v.GetString("ledger_redis_prefix")),
		},
		Storage: StorageConfig{
			S3Bucket:          strings.TrimSpace(v.GetString("s3_bucket")),
			S3Region:          strings.TrimSpace(v.GetString("s3_region")),
			S3Endpoint:        strings.TrimSpace(v.GetString("s3_endpoint")),
			S3UsePathStyle:    v.GetBool("s3_use_path_style"),
			S3AccessKeyID:     strings.TrimSpace(v.GetString("s3_access_key_id")),
			S3SecretAccessKey: strings.TrimSpace(v.GetString("s3_secret_access_key")),
			MemorySecret:      v.GetString("memory_store_secret"),
		},
		Engine: EngineConfig{
			Kind:              strings.ToLower(strings.TrimSpace(v.GetString("engine_kind"))),
			URL:               strings.TrimSpace(v.GetString("engine_url")),
			APIKey:            strings.TrimSpace(v.GetString("engine_api_key")),
			SigningKey:        strings.TrimSpace(v.GetString("engine_signing_key")),
			SageMakerEndpoint: strings.TrimSpace(v.GetString("sagemaker_endpoint")),
			Timeout:           v.GetDuration("engine_timeout"),
		},
		Pipeline: PipelineConfig{
			ConfigPath: strings.TrimSpace(v.GetString("pipeline_config")),
			Settlement: strings.ToLower(strings.TrimSpace(v.GetString("pipeline_settlement"))),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: v.GetBool("metrics_enabled"),
			TracingEnabled: otlpEndpoint != "",
			OTLPEndpoint:   otlpEndpoint,
			ServiceName:    strings.TrimSpace(v.GetString("otel_service_name")),
			ServiceVer:     strings.TrimSpace(v.GetString("sentimentgate_version")),
			SamplingRatio:  samplingRatio,
		},
	}

	if cfg.Server.AuthFailureBurst <= 0 {
		cfg.Server.AuthFailureBurst = 10
	}
	if cfg.Engine.Timeout <= 0 {
		cfg.Engine.Timeout = 5 * time.Minute
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Ledger.Backend {
	case "memory":
	case "sqlite":
		if c.Ledger.SQLitePath == "" {
			return fmt.Errorf("LEDGER_SQLITE_PATH is required for the sqlite ledger")
		}
	case "postgres":
		if c.Ledger.PostgresDSN == "" {
			return fmt.Errorf("LEDGER_POSTGRES_DSN is required for the postgres ledger")
		}
	case "redis":
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("LEDGER_REDIS_ADDR is required for the redis ledger")
		}
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND: %q", c.Ledger.Backend)
	}

	switch c.Engine.Kind {
	case "mock":
		if !c.IsLocalDevelopment() {
			return fmt.Errorf("ENGINE_KIND=mock is only allowed in local/dev environments")
		}
	case "http":
		if c.Engine.URL == "" {
			return fmt.Errorf("ENGINE_URL is required for the http engine")
		}
	case "sagemaker":
		if c.Engine.SageMakerEndpoint == "" {
			return fmt.Errorf("SAGEMAKER_ENDPOINT is required for the sagemaker engine")
		}
	default:
		return fmt.Errorf("invalid ENGINE_KIND: %q", c.Engine.Kind)
	}

	if (c.Storage.S3AccessKeyID == "") != (c.Storage.S3SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	if c.Storage.S3Bucket == "" && !c.IsLocalDevelopment() {
		return fmt.Errorf("S3_BUCKET is required outside local/dev environments")
	}
	return nil
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// UseS3 reports whether uploads go to S3 rather than the in-process store.
func (c Config) UseS3() bool {
	return c.Storage.S3Bucket != ""
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"sentimentgate_env", "app_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
