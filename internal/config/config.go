// Package config loads process configuration from the environment,
// with an optional YAML file overlay pointed at by MEX_CONFIG_FILE.
// Environment variables win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config is the shared configuration for the worker and gateway
// binaries.
type Config struct {
	TemporalAddress   string `yaml:"temporalAddress"`
	TemporalNamespace string `yaml:"temporalNamespace"`
	TaskQueue         string `yaml:"taskQueue"`

	// MaxConcurrentActivities caps activity executions per worker, so
	// worker-wide source connections stay bounded regardless of how
	// many extraction futures a run fans out.
	MaxConcurrentActivities int `yaml:"maxConcurrentActivities"`

	HTTPAddr string `yaml:"httpAddr"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	StagingProvider string `yaml:"stagingProvider"`
	StagingDir      string `yaml:"stagingDir"`

	Minio MinioSettings `yaml:"minio"`
}

// MinioSettings configures the object-store staging provider. Left
// empty, the provider is not registered.
type MinioSettings struct {
	EndpointURL     string `yaml:"endpointUrl"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	UseSSL          bool   `yaml:"useSsl"`
}

func defaults() *Config {
	return &Config{
		TemporalAddress:         "127.0.0.1:7233",
		TemporalNamespace:       "default",
		TaskQueue:               "metadata-extract",
		MaxConcurrentActivities: 16,
		HTTPAddr:                ":8080",
		LogLevel:                "info",
		LogFormat:               "text",
		StagingProvider:         "",
		StagingDir:              "",
	}
}

// Load builds the configuration: defaults, then the optional YAML
// file, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("MEX_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.TemporalAddress = getEnv("TEMPORAL_ADDRESS", cfg.TemporalAddress)
	cfg.TemporalNamespace = getEnv("TEMPORAL_NAMESPACE", cfg.TemporalNamespace)
	cfg.TaskQueue = getEnv("MEX_TASK_QUEUE", cfg.TaskQueue)
	cfg.MaxConcurrentActivities = getEnvInt("MEX_MAX_CONCURRENT_ACTIVITIES", cfg.MaxConcurrentActivities)
	cfg.HTTPAddr = getEnv("MEX_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("MEX_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("MEX_LOG_FORMAT", cfg.LogFormat)
	cfg.StagingProvider = getEnv("MEX_STAGING_PROVIDER", cfg.StagingProvider)
	cfg.StagingDir = getEnv("MEX_STAGING_DIR", cfg.StagingDir)

	cfg.Minio.EndpointURL = getEnv("MEX_MINIO_ENDPOINT", cfg.Minio.EndpointURL)
	cfg.Minio.AccessKeyID = getEnv("MEX_MINIO_ACCESS_KEY", cfg.Minio.AccessKeyID)
	cfg.Minio.SecretAccessKey = getEnv("MEX_MINIO_SECRET_KEY", cfg.Minio.SecretAccessKey)
	cfg.Minio.Bucket = getEnv("MEX_MINIO_BUCKET", cfg.Minio.Bucket)
	cfg.Minio.Region = getEnv("MEX_MINIO_REGION", cfg.Minio.Region)
	if v := os.Getenv("MEX_MINIO_USE_SSL"); v != "" {
		cfg.Minio.UseSSL, _ = strconv.ParseBool(v)
	}

	return cfg, nil
}

// Logger builds the process logger per LogLevel/LogFormat.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
