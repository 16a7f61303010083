package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Remote struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"remote"`
	Catalog struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"catalog"`
	Log struct {
		Mode  string `yaml:"mode"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Backend names the progress store selected at startup.
type Backend string

const (
	BackendRemote   Backend = "remote"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMemory   Backend = "memory"
)

// Load reads YAML config from path and applies PROGRESS_* environment overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Server.Port = envStr("PROGRESS_PORT", c.Server.Port)
	c.Redis.Addr = envStr("PROGRESS_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envStr("PROGRESS_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("PROGRESS_REDIS_DB", c.Redis.DB)
	c.Postgres.URL = envStr("PROGRESS_DATABASE_URL", c.Postgres.URL)
	c.Remote.BaseURL = envStr("PROGRESS_REMOTE_URL", c.Remote.BaseURL)
	c.Catalog.Path = envStr("PROGRESS_CATALOG_PATH", c.Catalog.Path)
	c.Log.Mode = envStr("PROGRESS_LOG_MODE", c.Log.Mode)
	c.Log.Level = envStr("PROGRESS_LOG_LEVEL", c.Log.Level)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"remote.timeout": c.Remote.Timeout, "catalog.ttl": c.Catalog.TTL} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config redis.db must be >= 0")
	}
	return nil
}

// ProgressBackend picks the progress store: remote service, then Postgres, then Redis, else in-memory.
func (c Config) ProgressBackend() Backend {
	switch {
	case c.Remote.BaseURL != "":
		return BackendRemote
	case c.Postgres.URL != "":
		return BackendPostgres
	case c.Redis.Addr != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
