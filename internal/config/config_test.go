package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Browser.Headless)
	assert.Empty(t, cfg.Browser.WSEndpoint)
	assert.Equal(t, 1, cfg.Pool.Size)
	assert.Equal(t, 1, cfg.Pool.MaxIdle)
	assert.Equal(t, time.Hour, cfg.Buffer.TTL)
	assert.Equal(t, 1000, cfg.Buffer.Capacity)
	assert.Equal(t, 0.75, cfg.Pacing.JitterLow)
	assert.Equal(t, 1.25, cfg.Pacing.JitterHigh)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "stream:reviews", cfg.Redis.Stream)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_WS_ENDPOINT", "ws://chrome:3000/playwright")
	t.Setenv("POOL_SIZE", "4")
	t.Setenv("POOL_MAX_IDLE", "2")
	t.Setenv("BUFFER_TTL", "15m")
	t.Setenv("PACING_JITTER_LOW", "0.5")
	t.Setenv("DB_HOST", "postgres")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "ws://chrome:3000/playwright", cfg.Browser.WSEndpoint)
	assert.Equal(t, 4, cfg.Pool.Size)
	assert.Equal(t, 2, cfg.Pool.MaxIdle)
	assert.Equal(t, 15*time.Minute, cfg.Buffer.TTL)
	assert.Equal(t, 0.5, cfg.Pacing.JitterLow)
	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("POOL_SIZE", "many")
	t.Setenv("BUFFER_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Pool.Size)
	assert.Equal(t, time.Hour, cfg.Buffer.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty pool", func(c *Config) { c.Pool.Size = 0 }},
		{"idle above size", func(c *Config) { c.Pool.MaxIdle = 2 }},
		{"negative idle", func(c *Config) { c.Pool.MaxIdle = -1 }},
		{"zero ttl", func(c *Config) { c.Buffer.TTL = 0 }},
		{"zero capacity", func(c *Config) { c.Buffer.Capacity = 0 }},
		{"inverted jitter", func(c *Config) { c.Pacing.JitterLow = 2 }},
		{"template without verb", func(c *Config) { c.Fetch.URLTemplate = "https://example.com/reviews" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
