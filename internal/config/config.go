package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmancini/pickflow/pkg/models"
)

// Config holds all configuration for the PickFlow server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Blob     BlobConfig
	Models   ModelsConfig
}

type ServerConfig struct {
	Port        int
	MetricsPort int
	Env         string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL             string
	QueueKey        string
	ProgressChannel string
	DequeueTimeout  time.Duration
}

type BlobConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

type ModelsConfig struct {
	// Endpoints maps model type to the base URL of its prediction endpoint.
	Endpoints       map[string]string
	ExecuteTimeout  time.Duration
	InlineLimit     int
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        envInt("PICKFLOW_PORT", 8080),
			MetricsPort: envInt("PICKFLOW_METRICS_PORT", 9091),
			Env:         envString("PICKFLOW_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:             os.Getenv("REDIS_URL"),
			QueueKey:        envString("DISPATCH_QUEUE_KEY", "jobs:dispatch"),
			ProgressChannel: envString("PROGRESS_CHANNEL", "jobs:progress"),
			DequeueTimeout:  envDuration("DISPATCH_DEQUEUE_TIMEOUT", 5*time.Second),
		},
		Blob: BlobConfig{
			AccountName: os.Getenv("BLOB_ACCOUNT_NAME"),
			AccountKey:  os.Getenv("BLOB_ACCOUNT_KEY"),
			Container:   envString("BLOB_CONTAINER", "results"),
		},
		Models: ModelsConfig{
			Endpoints:       parseEndpoints(os.Getenv("MODEL_ENDPOINTS")),
			ExecuteTimeout:  envDurationSecs("MODEL_EXECUTE_TIMEOUT_SECS", 5*time.Minute),
			InlineLimit:     envInt("INLINE_RESULT_LIMIT", 30000),
			RefreshInterval: envDuration("ENDPOINT_REFRESH_INTERVAL", 0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Blob.AccountName == "" {
		return fmt.Errorf("BLOB_ACCOUNT_NAME is required")
	}
	if c.Blob.AccountKey == "" {
		return fmt.Errorf("BLOB_ACCOUNT_KEY is required")
	}

	if len(c.Models.Endpoints) == 0 {
		return fmt.Errorf("MODEL_ENDPOINTS is required (e.g. \"nba=http://nba-model:8000,nfl=http://nfl-model:8000\")")
	}
	for model, endpoint := range c.Models.Endpoints {
		if !models.IsSupportedModel(model) {
			return fmt.Errorf("MODEL_ENDPOINTS contains unsupported model %q; supported: %s",
				model, strings.Join(models.SupportedModels, ", "))
		}
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			return fmt.Errorf("endpoint for model %q must start with http:// or https://, got %q", model, endpoint)
		}
	}

	if c.Models.InlineLimit <= 0 {
		return fmt.Errorf("INLINE_RESULT_LIMIT must be positive, got %d", c.Models.InlineLimit)
	}

	return nil
}

// parseEndpoints parses "nba=http://a,nfl=http://b" into a model-to-URL map.
func parseEndpoints(raw string) map[string]string {
	endpoints := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return endpoints
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
