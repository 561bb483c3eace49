package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"fileflow/internal/config"
)

// Open builds the configured Driver and wraps it in a read cache when one is
// requested.
func Open(cfg *config.Config) (Driver, error) {
	drv, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedDriver(drv, cfg.CacheSize)
	}
	return drv, nil
}

func open(cfg *config.Config) (Driver, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileDriver(cfg.File.Root)

	case config.BackendS3:
		bucket := cfg.S3.Bucket
		// Non-production environments get the environment name appended so
		// buckets stay tied to environments.
		if cfg.Environment != "" && cfg.Environment != config.EnvProduction {
			bucket += cfg.Environment
			logrus.WithFields(logrus.Fields{
				"bucket":      bucket,
				"environment": cfg.Environment,
			}).Info("using environment-suffixed bucket")
		}
		return NewS3Driver(S3Options{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Bucket:         bucket,
			Prefix:         cfg.S3.Prefix,
			UseSSL:         cfg.S3.UseSSL,
			DefaultCharset: cfg.DefaultCharset,
			ContentTypes:   cfg.ContentTypes,
		})

	case config.BackendPostgres:
		return NewPostgresDriver(cfg.Postgres.URL)

	case config.BackendMemory:
		logrus.Warn("memory backend keeps payloads in process memory only")
		return NewMemoryDriver(), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}
