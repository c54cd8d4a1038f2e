// Package config centralizes how docvalidator reads environment variables and
// exposes them as strongly typed Go values. The Config value is built once in
// main and handed to constructors; nothing reads the environment afterwards.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config represents runtime configuration for every binary.
type Config struct {
	Address       string
	MaxFileSize   int64
	SigningSecret []byte
	SignedURLTTL  time.Duration
	Workers       int
	LogLevel      string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StorageBackend   string
	StorageLocalPath string
	S3               S3Config

	LLM LLMConfig
}

// S3Config describes the MinIO/S3 bucket holding uploaded documents.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

const (
	defaultAddress     = ":8080"
	defaultMaxFileSize = 10 << 20 // 10 MiB
	defaultSignedTTL   = 5 * time.Minute
	defaultWorkerCount = 2
	defaultLogLevel    = "info"
	defaultRedisAddr   = "localhost:6379"
	defaultLocalPath   = "./data/uploads"
	defaultBucket      = "docvalidator"
	defaultRegion      = "us-east-1"
	defaultLLMBaseURL  = "https://api.openai.com/v1"
	defaultLLMModel    = "gpt-4o-mini"
	defaultLLMTimeout  = 60 * time.Second
)

// Load reads configuration from environment variables falling back to
// defaults. A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Address:       readEnv("DOCVALIDATOR_ADDRESS", defaultAddress),
		MaxFileSize:   parseInt64("DOCVALIDATOR_MAX_FILE_BYTES", defaultMaxFileSize),
		SigningSecret: parseSecret("DOCVALIDATOR_SIGNING_SECRET"),
		SignedURLTTL:  parseDuration("DOCVALIDATOR_SIGNED_TTL", defaultSignedTTL),
		Workers:       parseInt("DOCVALIDATOR_WORKERS", defaultWorkerCount),
		LogLevel:      readEnv("DOCVALIDATOR_LOG_LEVEL", defaultLogLevel),

		DatabaseURL:   readEnv("DATABASE_URL", ""),
		RedisAddr:     readEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt("REDIS_DB", 0),

		StorageBackend:   strings.ToLower(readEnv("STORAGE_BACKEND", StorageLocal)),
		StorageLocalPath: readEnv("STORAGE_LOCAL_PATH", defaultLocalPath),
		S3: S3Config{
			Endpoint:  readEnv("S3_ENDPOINT", ""),
			AccessKey: readEnv("S3_ACCESS_KEY", ""),
			SecretKey: readEnv("S3_SECRET_KEY", ""),
			UseSSL:    parseBool("S3_USE_SSL", false),
			Region:    readEnv("S3_REGION", defaultRegion),
			Bucket:    readEnv("S3_BUCKET", defaultBucket),
		},

		LLM: LLMConfig{
			BaseURL:     strings.TrimRight(readEnv("LLM_BASE_URL", defaultLLMBaseURL), "/"),
			APIKey:      readEnv("LLM_API_KEY", ""),
			Model:       readEnv("LLM_MODEL", defaultLLMModel),
			Temperature: parseFloat("LLM_TEMPERATURE", 0),
			Timeout:     parseDuration("LLM_TIMEOUT", defaultLLMTimeout),
		},
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}
	return cfg, nil
}

// Requirement names a dependency a binary needs configured.
type Requirement int

const (
	NeedDatabase Requirement = iota + 1
	NeedQueue
	NeedLLM
)

// Validate checks that everything the calling binary needs is present.
func (c *Config) Validate(needs ...Requirement) error {
	var errs []error
	switch c.StorageBackend {
	case StorageLocal:
		if c.StorageLocalPath == "" {
			errs = append(errs, errors.New("STORAGE_LOCAL_PATH is required for local storage"))
		}
	case StorageS3:
		if c.S3.Endpoint == "" || c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, errors.New("S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	for _, need := range needs {
		switch need {
		case NeedDatabase:
			if c.DatabaseURL == "" {
				errs = append(errs, errors.New("DATABASE_URL is required"))
			}
		case NeedQueue:
			if c.RedisAddr == "" {
				errs = append(errs, errors.New("REDIS_ADDR is required"))
			}
		case NeedLLM:
			if c.LLM.APIKey == "" {
				errs = append(errs, errors.New("LLM_API_KEY is required"))
			}
		}
	}
	return errors.Join(errs...)
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
