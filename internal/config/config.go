// Package config loads service configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-person-etl/internal/logging"
)

// DefaultRateURL is the public source for the official COP/USD rate.
const DefaultRateURL = "https://www.datos.gov.co/resource/32sa-8pi3.json?$limit=1&$order=vigenciadesde%20DESC"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  logging.Config `yaml:"logging"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Rate     RateConfig     `yaml:"rate"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
}

// InputConfig holds extraction settings.
type InputConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// OutputConfig holds artifact settings.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	BackupDir string `yaml:"backup_dir"`
}

// RateConfig configures the exchange-rate provider and its cache.
type RateConfig struct {
	APIURL       string        `yaml:"api_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Fallback     float64       `yaml:"fallback"`
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheFile    string        `yaml:"cache_file"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Driver       string `yaml:"driver"` // sqlite3 | postgres
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Name         string `yaml:"name"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	BatchSize    int    `yaml:"batch_size"`
}

// StorageConfig configures the object-storage sink.
type StorageConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // s3 | gcs | local
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	LocalDir string `yaml:"local_dir"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			MaxUploadMB:  32,
		},
		Logging: logging.Config{Format: "json", Level: "info"},
		Input:   InputConfig{UploadDir: "data/input"},
		Output: OutputConfig{
			Dir:       "data/output",
			BackupDir: "data/cloud_backup",
		},
		Rate: RateConfig{
			APIURL:       DefaultRateURL,
			Timeout:      10 * time.Second,
			Fallback:     4200.00,
			CacheEnabled: true,
			CacheFile:    "data/trm_cache.json",
			CacheTTL:     24 * time.Hour,
		},
		Database: DatabaseConfig{
			Enabled:      true,
			Driver:       "sqlite3",
			DSN:          "data/etl.db",
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 4,
			BatchSize:    100,
		},
		Storage: StorageConfig{
			Backend:  "local",
			Prefix:   "etl/",
			LocalDir: "data/object_store",
		},
		Metrics: MetricsConfig{Enabled: true, Namespace: "etl"},
	}
}

// Load builds a Config from defaults, an optional YAML file, and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Address = getenvDefault("ETL_SERVER_ADDRESS", cfg.Server.Address)
	cfg.Logging.Format = getenvDefault("ETL_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("ETL_LOG_LEVEL", cfg.Logging.Level)
	cfg.Output.Dir = getenvDefault("ETL_OUTPUT_DIR", cfg.Output.Dir)
	cfg.Output.BackupDir = getenvDefault("ETL_BACKUP_DIR", cfg.Output.BackupDir)

	cfg.Rate.APIURL = getenvDefault("ETL_RATE_API_URL", cfg.Rate.APIURL)
	cfg.Rate.CacheFile = getenvDefault("ETL_RATE_CACHE_FILE", cfg.Rate.CacheFile)
	cfg.Rate.CacheEnabled = getenvBool("ETL_RATE_CACHE_ENABLED", cfg.Rate.CacheEnabled)
	cfg.Rate.CacheTTL = getenvDuration("ETL_RATE_CACHE_TTL", cfg.Rate.CacheTTL)
	cfg.Rate.Timeout = getenvDuration("ETL_RATE_TIMEOUT", cfg.Rate.Timeout)

	cfg.Database.Enabled = getenvBool("ETL_DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Driver = getenvDefault("ETL_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenvDefault("ETL_DB_DSN", cfg.Database.DSN)
	cfg.Database.Host = getenvDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getenvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = getenvDefault("DB_NAME", cfg.Database.Name)
	cfg.Database.User = getenvDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getenvDefault("DB_PASSWORD", cfg.Database.Password)

	cfg.Storage.Enabled = getenvBool("ETL_STORAGE_ENABLED", cfg.Storage.Enabled)
	cfg.Storage.Backend = getenvDefault("ETL_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getenvDefault("AWS_S3_BUCKET_NAME", cfg.Storage.Bucket)
	cfg.Storage.Region = getenvDefault("AWS_S3_REGION", cfg.Storage.Region)
	cfg.Storage.Endpoint = getenvDefault("AWS_S3_ENDPOINT_URL", cfg.Storage.Endpoint)

	cfg.Metrics.Enabled = getenvBool("ETL_METRICS_ENABLED", cfg.Metrics.Enabled)
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Rate.Timeout <= 0 {
		return fmt.Errorf("rate.timeout must be positive")
	}
	if c.Rate.CacheEnabled && c.Rate.CacheTTL <= 0 {
		return fmt.Errorf("rate.cache_ttl must be positive when the cache is enabled")
	}
	if c.Rate.Fallback <= 0 {
		return fmt.Errorf("rate.fallback must be positive")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite3":
			if c.Database.DSN == "" {
				return fmt.Errorf("database.dsn is required for sqlite3")
			}
		case "postgres":
			if c.Database.DSN == "" && c.Database.Host == "" {
				return fmt.Errorf("database.dsn or database.host is required for postgres")
			}
		default:
			return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
		}
		if c.Database.BatchSize < 1 {
			return fmt.Errorf("database.batch_size must be at least 1")
		}
	}

	if c.Storage.Enabled {
		switch c.Storage.Backend {
		case "s3", "gcs":
			if c.Storage.Bucket == "" {
				return fmt.Errorf("storage.bucket is required for %s", c.Storage.Backend)
			}
		case "local":
			if c.Storage.LocalDir == "" {
				return fmt.Errorf("storage.local_dir is required for local")
			}
		default:
			return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
		}
	}

	return nil
}

// ConnectionString returns the driver DSN for the configured database.
func (d *DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}
