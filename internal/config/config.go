// Package config loads backend configuration from a .env file and the
// process environment. Values are read once at startup and never mutated.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backend selectors.
const (
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Environment names. Outside production the environment is appended to the
// configured bucket name.
const (
	EnvProduction  = "production"
	EnvQA          = "qa"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

type Config struct {
	Backend     string
	Environment string

	File     FileConfig
	S3       S3Config
	Postgres PostgresConfig

	// DefaultCharset labels text payloads that carry no charset of their own.
	DefaultCharset string

	// ContentTypes maps a slot suffix (".json") to the content-type recorded
	// by backends that keep one.
	ContentTypes map[string]string

	// CacheSize enables an in-process read LRU when positive.
	CacheSize int
}

type FileConfig struct {
	Root string
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type PostgresConfig struct {
	URL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Backend:        firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_BACKEND")), BackendFile),
		Environment:    firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_ENVIRONMENT")), EnvProduction),
		DefaultCharset: firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_CHARSET")), "utf-8"),
		File: FileConfig{
			Root: firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_FILE_ROOT")), "storage"),
		},
		S3: S3Config{
			Endpoint:  strings.TrimSpace(os.Getenv("FILEFLOW_S3_ENDPOINT")),
			Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_S3_REGION")), "us-east-1"),
			AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
			SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("FILEFLOW_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
			Bucket:    strings.TrimSpace(os.Getenv("FILEFLOW_S3_BUCKET")),
			Prefix:    strings.Trim(strings.TrimSpace(os.Getenv("FILEFLOW_S3_PREFIX")), "/"),
			UseSSL:    parseBool(os.Getenv("FILEFLOW_S3_USE_SSL"), true),
		},
		Postgres: PostgresConfig{
			URL: strings.TrimSpace(os.Getenv("FILEFLOW_POSTGRES_URL")),
		},
		ContentTypes: parseContentTypes(os.Getenv("FILEFLOW_CONTENT_TYPES")),
		CacheSize:    parseInt(os.Getenv("FILEFLOW_CACHE_SIZE"), 0),
	}

	switch cfg.Backend {
	case BackendFile, BackendS3, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
	switch cfg.Environment {
	case EnvProduction, EnvQA, EnvDevelopment, EnvTest:
	default:
		return nil, fmt.Errorf("config: unknown environment %q", cfg.Environment)
	}
	return cfg, nil
}

// parseContentTypes reads "suffix=content-type" pairs separated by commas,
// e.g. ".json=application/json,.csv=text/csv". Configured pairs extend the
// built-in defaults.
func parseContentTypes(raw string) map[string]string {
	out := map[string]string{
		".json": "application/json",
		".csv":  "text/csv",
	}
	for _, pair := range strings.Split(strings.TrimSpace(raw), ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		if !strings.HasPrefix(k, ".") {
			k = "." + k
		}
		out[k] = v
	}
	return out
}

func parseBool(raw string, def bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func parseInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
