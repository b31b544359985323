package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/sentimentgate"
	"github.com/ineyio/sentimentgate/engine/httpengine"
	"github.com/ineyio/sentimentgate/engine/mock"
	"github.com/ineyio/sentimentgate/engine/sagemaker"
	"github.com/ineyio/sentimentgate/internal/config"
	"github.com/ineyio/sentimentgate/internal/observability"
	"github.com/ineyio/sentimentgate/quota"
	"github.com/ineyio/sentimentgate/quota/postgres"
	"github.com/ineyio/sentimentgate/quota/redis"
	"github.com/ineyio/sentimentgate/quota/sqlite"
	"github.com/ineyio/sentimentgate/storage/memory"
	"github.com/ineyio/sentimentgate/storage/s3"
)

func openLedger(ctx context.Context, cfg config.LedgerConfig) (sentimentgate.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "memory":
		return quota.NewMemoryStore(), noop, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create ledger directory: %w", err)
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() error { pool.Close(); return nil }, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		var opts []redis.Option
		if cfg.RedisPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(cfg.RedisPrefix))
		}
		return redis.New(client, opts...), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3Region),
		awsconfig.WithHTTPClient(&http.Client{Transport: observability.InstrumentTransport(nil)}),
	}
	if cfg.Storage.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.S3AccessKeyID, cfg.Storage.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// openObjectStore returns S3 when a bucket is configured, otherwise the
// in-process store, which the caller must mount on the server.
func openObjectStore(ctx context.Context, cfg config.Config) (sentimentgate.ObjectStore, *memory.Store, error) {
	if !cfg.UseS3() {
		var opts []memory.Option
		if cfg.Storage.MemorySecret != "" {
			opts = append(opts, memory.WithSecret([]byte(cfg.Storage.MemorySecret)))
		}
		store := memory.New(cfg.Server.PublicURL, opts...)
		return store, store, nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := s3.NewFromConfig(awsCfg, cfg.Storage.S3Bucket, func(o *awss3.Options) {
		if cfg.Storage.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3UsePathStyle
	})
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}

func openEngine(ctx context.Context, cfg config.Config) (sentimentgate.Engine, error) {
	switch cfg.Engine.Kind {
	case "mock":
		return mock.New(), nil

	case "http":
		opts := []httpengine.Option{
			httpengine.WithHTTPClient(&http.Client{
				Timeout:   cfg.Engine.Timeout,
				Transport: observability.InstrumentTransport(nil),
			}),
		}
		if cfg.Engine.APIKey != "" {
			opts = append(opts, httpengine.WithAPIKey(cfg.Engine.APIKey))
		}
		if cfg.Engine.SigningKey != "" {
			opts = append(opts, httpengine.WithSigningKey(cfg.Engine.SigningKey))
		}
		engine, err := httpengine.New(cfg.Engine.URL, opts...)
		if err != nil {
			return nil, err
		}
		return engine, nil

	case "sagemaker":
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		engine, err := sagemaker.NewFromConfig(awsCfg, cfg.Engine.SageMakerEndpoint)
		if err != nil {
			return nil, err
		}
		return engine, nil

	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}
