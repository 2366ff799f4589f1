package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{
		"SERVER_PORT", "PORT", "LOGIN_DOMAIN", "SESSION_TTL_HOURS",
		"STATS_SNAPSHOT_SCHEDULE", "LOGIN_RATE_LIMIT_PER_MINUTE",
		"REGISTER_RATE_LIMIT_PER_MINUTE", "ALLOWED_ORIGINS",
		"REDIS_RATE_LIMIT_PREFIX",
	} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.LoginDomain != "unitymfi.com" {
		t.Fatalf("expected default login domain, got %q", cfg.LoginDomain)
	}
	if cfg.SessionTTLHours != 24 {
		t.Fatalf("expected default session TTL 24h, got %d", cfg.SessionTTLHours)
	}
	if cfg.StatsSnapshotSchedule != "@hourly" {
		t.Fatalf("expected default snapshot schedule, got %q", cfg.StatsSnapshotSchedule)
	}
	if cfg.LoginRateLimitPerMinute != 10 || cfg.RegisterRateLimitPerMinute != 5 {
		t.Fatalf("unexpected default rate limits: login=%d register=%d", cfg.LoginRateLimitPerMinute, cfg.RegisterRateLimitPerMinute)
	}
	if cfg.AllowedOrigins == "" {
		t.Fatal("expected a default allowed origins list")
	}
	if cfg.RedisRateLimitPrefix != "unitymfi:rate_limit" {
		t.Fatalf("expected default redis prefix, got %q", cfg.RedisRateLimitPrefix)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9999")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NormalizesLoginDomain(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "LOGIN_DOMAIN", " @portal.example ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LoginDomain != "portal.example" {
		t.Fatalf("expected trimmed login domain, got %q", cfg.LoginDomain)
	}
}

func TestLoadConfig_NonPositiveLimitsFallBack(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SESSION_TTL_HOURS", "-1")
	setEnvWithCleanup(t, "LOGIN_RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SessionTTLHours != 24 {
		t.Fatalf("expected TTL fallback to 24, got %d", cfg.SessionTTLHours)
	}
	if cfg.LoginRateLimitPerMinute != 10 {
		t.Fatalf("expected login limit fallback to 10, got %d", cfg.LoginRateLimitPerMinute)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
