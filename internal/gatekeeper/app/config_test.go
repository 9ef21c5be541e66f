package app

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "gatekeeper", cfg.JWTIssuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, 5*time.Second, cfg.DecisionTimeout)
	require.Equal(t, StoreMemory, cfg.StateStore)
	require.Equal(t, 5, cfg.LoginMaxAttempts)
	require.Equal(t, 15*time.Minute, cfg.LoginWindow)
	require.Equal(t, 10, cfg.LockoutThreshold)
	require.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	require.Equal(t, 30*time.Second, cfg.MaxProgressiveDelay)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, httpx.CriticalLimit, cfg.CriticalLimit)
	require.Equal(t, httpx.StandardLimit, cfg.StandardLimit)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("LOGIN_WINDOW", "30") // bare minutes
	t.Setenv("STATE_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("RATELIMIT_CRITICAL_REQUESTS", "3")
	t.Setenv("RATELIMIT_CRITICAL_BURST", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, 30*time.Minute, cfg.LoginWindow)
	require.Equal(t, StoreRedis, cfg.StateStore)
	require.False(t, cfg.CookieSecure)
	require.Equal(t, "10.0.0.0/8", cfg.TrustedProxies)
	require.Equal(t, 3, cfg.CriticalLimit.RequestsPerWindow)
	require.Equal(t, 1, cfg.CriticalLimit.Burst)
	require.Equal(t, httpx.CriticalLimit.Window, cfg.CriticalLimit.Window)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing secret",
			env:  map[string]string{"JWT_SECRET": ""},
			want: "JWTSecret",
		},
		{
			name: "short secret",
			env:  map[string]string{"JWT_SECRET": "too-short"},
			want: "JWTSecret",
		},
		{
			name: "refresh not longer than access",
			env:  map[string]string{"ACCESS_TOKEN_TTL": "1h", "REFRESH_TOKEN_TTL": "1h"},
			want: "RefreshTokenTTL",
		},
		{
			name: "unknown store",
			env:  map[string]string{"STATE_STORE": "etcd"},
			want: "StateStore",
		},
		{
			name: "redis without address",
			env:  map[string]string{"STATE_STORE": "redis"},
			want: "RedisAddr",
		},
		{
			name: "bad upstream",
			env:  map[string]string{"UPSTREAM_URL": "not a url"},
			want: "UpstreamURL",
		},
		{
			name: "bad trusted proxy",
			env:  map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8, proxy.internal"},
			want: "TrustedProxies",
		},
		{
			name: "weak service secret",
			env:  map[string]string{"SERVICE_AUTH_SECRET": "abc"},
			want: "ServiceAuthSecret",
		},
		{
			name: "bootstrap account without password",
			env:  map[string]string{"BOOTSTRAP_ADMIN_ACCOUNT": "admin@example.com"},
			want: "BootstrapAdminPassword",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testJWTSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	t.Setenv("GK_TEST_DURATION", "garbage")
	require.Equal(t, time.Minute, getEnvDurationOrDefault("GK_TEST_DURATION", time.Minute))

	t.Setenv("GK_TEST_DURATION", "90s")
	require.Equal(t, 90*time.Second, getEnvDurationOrDefault("GK_TEST_DURATION", time.Minute))
}
