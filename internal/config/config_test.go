package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Environment:        "local",
		LogLevel:           "info",
		DatabaseURL:        "postgres://localhost/pulse",
		DBMinConns:         1,
		DBMaxConns:         8,
		LLMTimeoutSeconds:  25,
		EnrichBatchSize:    50,
		EnrichWorkers:      4,
		EnrichMaxAttempts:  3,
		EnrichBaseDelayMS:  500,
		StuckTimeoutMin:    30,
		RawRetentionDays:   90,
		DashboardCacheSecs: 60,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "  " }, "DATABASE_URL"},
		{"min conns above max", func(c *Config) { c.DBMinConns = 9 }, "PULSE_DB_MIN_CONNS"},
		{"batch size too large", func(c *Config) { c.EnrichBatchSize = 500 }, "ENRICH_BATCH_SIZE"},
		{"batch size zero", func(c *Config) { c.EnrichBatchSize = 0 }, "ENRICH_BATCH_SIZE"},
		{"too many workers", func(c *Config) { c.EnrichWorkers = 32 }, "ENRICH_WORKERS"},
		{"zero attempts", func(c *Config) { c.EnrichMaxAttempts = 0 }, "ENRICH_MAX_ATTEMPTS"},
		{"zero stuck timeout", func(c *Config) { c.StuckTimeoutMin = 0 }, "STUCK_TIMEOUT_MINUTES"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateRequiresSecretOutsideLocal(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Environment = "production"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected TRIGGER_SECRET requirement in production")
	}

	cfg.TriggerSecret = "shhh"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config with secret, got %v", err)
	}
}

func TestCORSAllowedOriginsList(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CORSAllowedOrigins = "https://a.example, https://b.example,,https://a.example"
	origins := cfg.CORSAllowedOriginsList()
	if len(origins) != 2 {
		t.Fatalf("expected 2 unique origins, got %v", origins)
	}
}
