package server

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/parley/internal/protocol"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	// Port is the TCP port the framed chat protocol listens on.
	Port int
	// WSPort is the port of the optional WebSocket gateway; zero disables it.
	WSPort int
	// AllowedOrigins restricts browser WebSocket upgrades; "*" allows any.
	AllowedOrigins []string
	// MaxMessageSize bounds one inbound frame in bytes.
	MaxMessageSize int64
	RateLimit      RateLimitConfig
}

func defaultConfig() Config {
	return Config{
		Port:           protocol.DefaultPort,
		WSPort:         0,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = protocol.DefaultPort
	}
	if cfg.WSPort < 0 || cfg.WSPort > 65535 {
		cfg.WSPort = 0
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("PARLEY_PORT"); port != "" {
		cfg.Port = parseIntValue(port, cfg.Port)
	}

	if port := os.Getenv("PARLEY_WS_PORT"); port != "" {
		cfg.WSPort = parseIntValue(port, cfg.WSPort)
	}

	if origins := os.Getenv("PARLEY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("PARLEY_MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("PARLEY_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("PARLEY_RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

// Startup validation errors for the port argument.
var (
	ErrPortNotInteger  = errors.New("Port must be an integer.")
	ErrPortOutOfBounds = errors.New("Port must be between 1 and 65535.")
)

// ParsePort validates a port argument from the command line. Leading zeros
// and surrounding whitespace are stripped for user-friendliness before
// parsing.
func ParsePort(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	trimmed := strings.TrimLeft(arg, "0")
	if trimmed == "" && arg != "" {
		trimmed = "0"
	}

	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, ErrPortNotInteger
	}
	if port < 1 || port > 65535 {
		return 0, ErrPortOutOfBounds
	}
	return port, nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
