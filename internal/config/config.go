package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PULSE_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PULSE_DB_MAX_CONNS" default:"8"`

	HTTPHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`

	// Keyword batch config consumed by the collection commands.
	KeywordsFile string `envconfig:"KEYWORDS_FILE" default:"keywords.json"`

	// Tweet crawler actor (opaque external service).
	CrawlerEndpoint string `envconfig:"CRAWLER_ENDPOINT" default:""`
	CrawlerToken    string `envconfig:"CRAWLER_TOKEN" default:""`
	CrawlerActorID  string `envconfig:"CRAWLER_ACTOR_ID" default:"tweet-scraper"`

	// RSS feed aggregator.
	FeedsEndpoint string `envconfig:"FEEDS_ENDPOINT" default:""`
	FeedsToken    string `envconfig:"FEEDS_TOKEN" default:""`

	// Sentiment/summary model service (OpenAI-compatible).
	LLMEndpoint       string `envconfig:"LLM_ENDPOINT" default:"http://127.0.0.1:8845/v1"`
	LLMModel          string `envconfig:"LLM_MODEL" default:"gemini-2.5-flash"`
	LLMModelVersion   string `envconfig:"LLM_MODEL_VERSION" default:"v1"`
	LLMTimeoutSeconds int    `envconfig:"LLM_TIMEOUT_SECONDS" default:"25"`

	EnrichBatchSize    int `envconfig:"ENRICH_BATCH_SIZE" default:"50"`
	EnrichWorkers      int `envconfig:"ENRICH_WORKERS" default:"4"`
	EnrichMaxAttempts  int `envconfig:"ENRICH_MAX_ATTEMPTS" default:"3"`
	EnrichBaseDelayMS  int `envconfig:"ENRICH_BASE_DELAY_MS" default:"500"`
	StuckTimeoutMin    int `envconfig:"STUCK_TIMEOUT_MINUTES" default:"30"`
	RawRetentionDays   int `envconfig:"RAW_RETENTION_DAYS" default:"90"`
	DashboardCacheSecs int `envconfig:"DASHBOARD_CACHE_SECONDS" default:"60"`

	// Shared secret for scheduler-triggered endpoints. Optional in local
	// environments, required elsewhere (enforced by Validate).
	TriggerSecret      string `envconfig:"TRIGGER_SECRET" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PULSE_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PULSE_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PULSE_DB_MIN_CONNS (%d) cannot exceed PULSE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be a valid port")
	}
	if c.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be >= 1")
	}
	if c.EnrichBatchSize < 1 || c.EnrichBatchSize > 200 {
		return fmt.Errorf("ENRICH_BATCH_SIZE must be between 1 and 200")
	}
	if c.EnrichWorkers < 1 || c.EnrichWorkers > 8 {
		return fmt.Errorf("ENRICH_WORKERS must be between 1 and 8")
	}
	if c.EnrichMaxAttempts < 1 {
		return fmt.Errorf("ENRICH_MAX_ATTEMPTS must be >= 1")
	}
	if c.EnrichBaseDelayMS < 1 {
		return fmt.Errorf("ENRICH_BASE_DELAY_MS must be >= 1")
	}
	if c.StuckTimeoutMin < 1 {
		return fmt.Errorf("STUCK_TIMEOUT_MINUTES must be >= 1")
	}
	if c.RawRetentionDays < 0 {
		return fmt.Errorf("RAW_RETENTION_DAYS must be >= 0")
	}
	if !strings.EqualFold(strings.TrimSpace(c.Environment), "local") && strings.TrimSpace(c.TriggerSecret) == "" {
		return fmt.Errorf("TRIGGER_SECRET is required outside the local environment")
	}
	return nil
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

func (c *Config) EnrichBaseDelay() time.Duration {
	return time.Duration(c.EnrichBaseDelayMS) * time.Millisecond
}

func (c *Config) StuckTimeout() time.Duration {
	return time.Duration(c.StuckTimeoutMin) * time.Minute
}

func (c *Config) DashboardCacheTTL() time.Duration {
	return time.Duration(c.DashboardCacheSecs) * time.Second
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
