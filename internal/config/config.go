package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Fetch    FetchConfig
	Pool     PoolConfig
	Buffer   BufferConfig
	Pacing   PacingConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type BrowserConfig struct {
	Headless   bool
	Timeout    time.Duration
	WSEndpoint string
	Locale     string
	TimezoneID string
	Proxy      string
}

type FetchConfig struct {
	URLTemplate string
	StepDelay   time.Duration
}

type PoolConfig struct {
	Size    int
	MaxIdle int
}

type BufferConfig struct {
	TTL      time.Duration
	Capacity int
}

type PacingConfig struct {
	JitterLow  float64
	JitterHigh float64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// Enabled reports whether a review store is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 150*time.Second),
			RequestTimeout:  getDurationOrDefault("SERVER_REQUEST_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Browser: BrowserConfig{
			Headless:   getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:    getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			WSEndpoint: getEnvOrDefault("BROWSER_WS_ENDPOINT", ""),
			Locale:     getEnvOrDefault("BROWSER_LOCALE", "en-GB"),
			TimezoneID: getEnvOrDefault("BROWSER_TIMEZONE", "Europe/London"),
			Proxy:      getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Fetch: FetchConfig{
			URLTemplate: getEnvOrDefault("TARGET_URL_TEMPLATE", "https://www.just-eat.co.uk/%s/reviews?openOnWeb=true"),
			StepDelay:   getDurationOrDefault("FETCH_STEP_DELAY", time.Second),
		},
		Pool: PoolConfig{
			Size:    getIntOrDefault("POOL_SIZE", 1),
			MaxIdle: getIntOrDefault("POOL_MAX_IDLE", 1),
		},
		Buffer: BufferConfig{
			TTL:      getDurationOrDefault("BUFFER_TTL", time.Hour),
			Capacity: getIntOrDefault("BUFFER_CAPACITY", 1000),
		},
		Pacing: PacingConfig{
			JitterLow:  getFloatOrDefault("PACING_JITTER_LOW", 0.75),
			JitterHigh: getFloatOrDefault("PACING_JITTER_HIGH", 1.25),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "reviews"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:reviews"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Pool.Size < 1 {
		return fmt.Errorf("POOL_SIZE must be at least 1")
	}

	if c.Pool.MaxIdle < 0 || c.Pool.MaxIdle > c.Pool.Size {
		return fmt.Errorf("POOL_MAX_IDLE must be between 0 and POOL_SIZE")
	}

	if c.Buffer.TTL <= 0 {
		return fmt.Errorf("BUFFER_TTL must be positive")
	}

	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("BUFFER_CAPACITY must be at least 1")
	}

	if c.Pacing.JitterLow <= 0 || c.Pacing.JitterLow > c.Pacing.JitterHigh {
		return fmt.Errorf("PACING_JITTER_LOW must be positive and not greater than PACING_JITTER_HIGH")
	}

	if strings.Count(c.Fetch.URLTemplate, "%s") != 1 {
		return fmt.Errorf("TARGET_URL_TEMPLATE must contain exactly one %%s")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
