// Package config loads the broker's configuration from a YAML file,
// overridden by environment variables, following a sync.Once-guarded
// singleton so the rest of the process reads a stable snapshot.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration for both the broker (client mode)
// and the worker (server mode).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pool      PoolConfig      `yaml:"pool"`
	Worker    WorkerConfig    `yaml:"worker"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the broker's admin HTTP surface.
type ServerConfig struct {
	AdminAddr       string `yaml:"admin_addr"`
	ShutdownGraceMS int    `yaml:"shutdown_grace_ms"`
}

// PoolConfig controls the bounded FIFO container pool.
type PoolConfig struct {
	StartPort      int    `yaml:"start_port"`
	EndPort        int    `yaml:"end_port"`
	Image          string `yaml:"image"`
	RunscEnabled   bool   `yaml:"runsc_enabled"`
	ContainerPort  int    `yaml:"container_port"`
	ConnectRetries int    `yaml:"connect_retries"`
}

// WorkerConfig controls the in-container worker process (server mode).
type WorkerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	JobTimeoutMS int    `yaml:"job_timeout_ms"`
}

// DatabaseConfig selects the front-end's reply-pointer persistence backend.
type DatabaseConfig struct {
	Backend            string `yaml:"backend"` // "postgres" or "supabase"
	PostgresDSN        string `yaml:"postgres_dsn"`
	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"supabase_service_key"`
}

// RateLimitConfig controls the optional Redis-backed submission limiter.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	RedisAddr         string `yaml:"redis_addr"`
	MaxCallsPerMinute int    `yaml:"max_calls_per_minute"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance, loaded from CONFIG_PATH (or
// "config.yaml") on first call and overridden by environment variables.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file loaded", "error", err)
		}
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.AdminAddr = getEnv("ADMIN_ADDR", c.Server.AdminAddr)
	if v := getEnvInt("SHUTDOWN_GRACE_MS", 0); v > 0 {
		c.Server.ShutdownGraceMS = v
	}

	if v := getEnvInt("POOL_START_PORT", 0); v > 0 {
		c.Pool.StartPort = v
	}
	if v := getEnvInt("POOL_END_PORT", 0); v > 0 {
		c.Pool.EndPort = v
	}
	c.Pool.Image = getEnv("POOL_IMAGE", c.Pool.Image)
	c.Pool.RunscEnabled = getEnvBool("POOL_RUNSC_ENABLED", c.Pool.RunscEnabled)
	if v := getEnvInt("POOL_CONTAINER_PORT", 0); v > 0 {
		c.Pool.ContainerPort = v
	}
	if v := getEnvInt("POOL_CONNECT_RETRIES", 0); v > 0 {
		c.Pool.ConnectRetries = v
	}

	c.Worker.ListenAddr = getEnv("WORKER_LISTEN_ADDR", c.Worker.ListenAddr)
	if v := getEnvInt("WORKER_JOB_TIMEOUT_MS", 0); v > 0 {
		c.Worker.JobTimeoutMS = v
	}

	c.Database.Backend = getEnv("DATABASE_BACKEND", c.Database.Backend)
	c.Database.PostgresDSN = getEnv("DATABASE_POSTGRES_DSN", c.Database.PostgresDSN)
	c.Database.SupabaseURL = getEnv("SUPABASE_URL", c.Database.SupabaseURL)
	c.Database.SupabaseServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Database.SupabaseServiceKey)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RedisAddr = getEnv("RATE_LIMIT_REDIS_ADDR", c.RateLimit.RedisAddr)
	if v := getEnvInt("RATE_LIMIT_MAX_CALLS_PER_MINUTE", 0); v > 0 {
		c.RateLimit.MaxCallsPerMinute = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = ":8080"
	}
	if c.Server.ShutdownGraceMS == 0 {
		c.Server.ShutdownGraceMS = 5000
	}
	if c.Pool.StartPort == 0 {
		c.Pool.StartPort = 6090
	}
	if c.Pool.EndPort == 0 {
		c.Pool.EndPort = 6096
	}
	if c.Pool.Image == "" {
		c.Pool.Image = "codescord"
	}
	if c.Pool.ContainerPort == 0 {
		c.Pool.ContainerPort = 6090
	}
	if c.Pool.ConnectRetries == 0 {
		c.Pool.ConnectRetries = 5
	}
	if c.Worker.ListenAddr == "" {
		c.Worker.ListenAddr = ":6090"
	}
	if c.Worker.JobTimeoutMS == 0 {
		c.Worker.JobTimeoutMS = 30000
	}
	if c.Database.Backend == "" {
		c.Database.Backend = "postgres"
	}
	if c.RateLimit.MaxCallsPerMinute == 0 {
		c.RateLimit.MaxCallsPerMinute = 60
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
