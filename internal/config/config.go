package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"` // SQLite file path or ":memory:"
	} `yaml:"database"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	RateLimit struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Blocklist struct {
		Capacity          uint    `yaml:"capacity"`
		FalsePositiveRate float64 `yaml:"false_positive_rate"`
	} `yaml:"blocklist"`

	Whois struct {
		Enabled bool          `yaml:"enabled"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"whois"`

	Log struct {
		Format string `yaml:"format"` // "console" or "json"
	} `yaml:"log"`
}

// LoadConfig loads configuration from a YAML file, then applies .env and
// environment overrides. A missing file falls back to defaults.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{}

	file, err := os.Open(configPath)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)

	return config, nil
}

func applyEnv(config *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		config.CORS.Origins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Log.Format = v
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
		config.RateLimit.Enabled = rps > 0
		config.RateLimit.RequestsPerSecond = rps
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = "8001"
	}

	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 5 * time.Second
	}

	if config.Database.Path == "" {
		config.Database.Path = "./data/reports.db"
	}

	if len(config.CORS.Origins) == 0 {
		config.CORS.Origins = []string{"*"}
	}

	if config.RateLimit.RequestsPerSecond == 0 {
		config.RateLimit.RequestsPerSecond = 10
	}

	if config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = 20
	}

	if config.Blocklist.Capacity == 0 {
		config.Blocklist.Capacity = 100000
	}

	if config.Blocklist.FalsePositiveRate == 0 {
		config.Blocklist.FalsePositiveRate = 0.001
	}

	if config.Whois.Timeout == 0 {
		config.Whois.Timeout = 10 * time.Second
	}

	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
}
