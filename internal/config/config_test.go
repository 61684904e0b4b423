package config

import (
	"testing"
	"time"
)

func TestLoadForTests(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"REDIS_URL":            "redis://localhost:6379/0",
		"JWT_SECRET":           "secret",
		"SETTINGS_URL":         "https://example.com/settings.json",
		"PORT":                 "9090",
		"RATE_LIMIT_MAX":       "5",
		"SETTINGS_CACHE_TTL":   "30s",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.RateLimitMax != 5 {
		t.Fatalf("unexpected rate limit %d", cfg.RateLimitMax)
	}
	if cfg.SettingsCacheTTL != 30*time.Second {
		t.Fatalf("unexpected ttl %s", cfg.SettingsCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRequiredFields(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"REDIS_URL":     "",
		"JWT_SECRET":    "secret",
		"SETTINGS_URL":  "https://example.com/settings.json",
		"SETTINGS_FILE": "",
	})
	if err == nil {
		t.Fatal("expected error when REDIS_URL missing")
	}

	_, err = LoadForTests(map[string]string{
		"REDIS_URL":     "redis://localhost:6379/0",
		"JWT_SECRET":    "secret",
		"SETTINGS_URL":  "",
		"SETTINGS_FILE": "",
	})
	if err == nil {
		t.Fatal("expected error when no settings source configured")
	}
}
