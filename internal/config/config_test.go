package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":    "secret",
		"STORE_DRIVER":  "",
		"STORE_DSN":     "",
		"PORT":          "",
		"OBS_LOG_LEVEL": "",
	})
	require.NoError(t, err)
	require.Equal(t, config.StoreSQLite, cfg.StoreDriver)
	require.Equal(t, "file:storefront.db", cfg.StoreDSN)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, "refresh_token", cfg.RefreshCookieName)
	require.False(t, cfg.CookieSecure)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.MetricsEnabled)
	require.True(t, cfg.BreakerEnabled)
	require.Equal(t, 5, cfg.BreakerMinRequests)
	require.Equal(t, 10*time.Second, cfg.BreakerOpenFor)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.PprofEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":                   "secret",
		"STORE_DRIVER":                 "memory",
		"STORE_BREAKER_ENABLED":        "off",
		"STORE_BREAKER_OPEN_FOR":       "not-a-duration",
		"HTTP_MAX_BODY_BYTES":          "2048",
		"OBS_ENABLE_PPROF":             "true",
		"SECURE_PPROF_BASIC_AUTH_USER": " ops ",
		"REFRESH_TOKEN_TTL":            "48h",
		"AUTH_COOKIE_SECURE":           "true",
	})
	require.NoError(t, err)
	require.False(t, cfg.BreakerEnabled)
	require.Equal(t, 10*time.Second, cfg.BreakerOpenFor)
	require.Equal(t, int64(2048), cfg.MaxBodyBytes)
	require.True(t, cfg.PprofEnabled)
	require.Equal(t, "ops", cfg.PprofUser)
	require.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	require.True(t, cfg.CookieSecure)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"JWT_SECRET": ""})
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":   "secret",
		"STORE_DRIVER": "etcd",
	})
	require.Error(t, err)
}

func TestLoadRedisNeedsDSN(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":   "secret",
		"STORE_DRIVER": "redis",
		"STORE_DSN":    "",
	})
	require.Error(t, err)

	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":                 "secret",
		"STORE_DRIVER":               "REDIS",
		"STORE_DSN":                  "redis://localhost:6379/0",
		"CORS_ALLOWED_ORIGINS":       "http://a.test, http://b.test",
		"RATE_LIMIT_AUTH_PER_MINUTE": "3",
	})
	require.NoError(t, err)
	require.Equal(t, config.StoreRedis, cfg.StoreDriver)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 3, cfg.AuthRatePerMinute)
}
