// Package config provides configuration for the trace viewer service.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	glog "github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`
	// JSON-RPC port for producers; 0 disables it
	RPCPort int `yaml:"rpc_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Status policy; empty uses the built-in policy
	StatusPolicyFile string `yaml:"status_policy_file"`

	// Upper bound on events reconstructed for one run
	MaxEventsPerRun int `yaml:"max_events_per_run"`

	// WebSocket settings
	PingInterval   time.Duration `yaml:"ws_ping_interval"`
	WriteTimeout   time.Duration `yaml:"ws_write_timeout"`
	ReadTimeout    time.Duration `yaml:"ws_read_timeout"`
	MaxMessageSize int64         `yaml:"ws_max_message_size"`

	// Navigator sessions idle longer than this are dropped
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Logging: debug, info, warn, error or off
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:        8080,
		DatabaseURL:     "file:traceview.db?cache=shared&mode=rwc",
		MaxEventsPerRun: 50000,
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		MaxMessageSize:  65536,
		LogLevel:        "info",

		SessionIdleTimeout: 30 * time.Minute,
	}
}

// Load loads configuration from the YAML file named by TRACEVIEW_CONFIG, if
// any, then applies environment variables on top.
func Load() *Config {
	cfg := Default()
	if path := os.Getenv("TRACEVIEW_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			log.Printf("WARN: %v", err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.RPCPort = getEnvInt("RPC_PORT", cfg.RPCPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.StatusPolicyFile = getEnv("STATUS_POLICY_FILE", cfg.StatusPolicyFile)
	cfg.MaxEventsPerRun = getEnvInt("MAX_EVENTS_PER_RUN", cfg.MaxEventsPerRun)
	cfg.PingInterval = getEnvDurationMs("WS_PING_INTERVAL_MS", cfg.PingInterval)
	cfg.WriteTimeout = getEnvDurationMs("WS_WRITE_TIMEOUT_MS", cfg.WriteTimeout)
	cfg.ReadTimeout = getEnvDurationMs("WS_READ_TIMEOUT_MS", cfg.ReadTimeout)
	cfg.MaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(cfg.MaxMessageSize)))
	cfg.SessionIdleTimeout = getEnvDurationMs("SESSION_IDLE_TIMEOUT_MS", cfg.SessionIdleTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	return cfg
}

// LoadFile overlays the YAML file at path onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Level returns the configured log level. Unknown values mean info.
func (c *Config) Level() glog.Lvl {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return glog.DEBUG
	case "warn", "warning":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	default:
		return glog.INFO
	}
}

// InfoEnabled reports whether INFO lines should be logged.
func (c *Config) InfoEnabled() bool {
	return c.Level() <= glog.INFO
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
