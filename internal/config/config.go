package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Tools      ToolsConfig      `yaml:"tools" mapstructure:"tools"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	Model        string `yaml:"model" mapstructure:"model"`
	ScoringModel string `yaml:"scoring_model" mapstructure:"scoring_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig configures the multi-strategy fan-out.
type SearchConfig struct {
	PerCallCap     int    `yaml:"per_call_cap" mapstructure:"per_call_cap"`
	MaxResults     int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BroadeningFile string `yaml:"broadening_file" mapstructure:"broadening_file"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// Timeout returns the per-strategy backend timeout.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheTTL returns how long backend responses stay cached.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// ScorerConfig configures opportunity scoring.
type ScorerConfig struct {
	AILimit     int `yaml:"ai_limit" mapstructure:"ai_limit"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// AgentConfig configures the orchestration loop.
type AgentConfig struct {
	MaxIterations      int `yaml:"max_iterations" mapstructure:"max_iterations"`
	ToolConcurrency    int `yaml:"tool_concurrency" mapstructure:"tool_concurrency"`
	MaxToolResultChars int `yaml:"max_tool_result_chars" mapstructure:"max_tool_result_chars"`
	MaxHistoryChars    int `yaml:"max_history_chars" mapstructure:"max_history_chars"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// CallTimeout returns the per-tool-call deadline.
func (c ToolsConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// ResilienceConfig configures retries and circuit breakers for provider calls.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CacheConfig configures the backend response cache.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite", "postgres" or "none"
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic    map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	GooglePlaces GooglePricing           `yaml:"google_places" mapstructure:"google_places"`
	Jina         JinaPricing             `yaml:"jina" mapstructure:"jina"`
	Perplexity   PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
	Firecrawl    FirecrawlPricing        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// GooglePricing holds Places Text Search pricing.
type GooglePricing struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PerScrape float64 `yaml:"per_scrape" mapstructure:"per_scrape"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a default are still registered so AutomaticEnv can
	// resolve them during Unmarshal.
	for _, key := range []string{
		"anthropic.key", "google.key", "perplexity.key", "jina.key",
		"firecrawl.key", "search.broadening_file", "cache.dsn",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.scoring_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 10)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("search.per_call_cap", 20)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.timeout_secs", 20)
	v.SetDefault("search.cache_ttl_hours", 24)
	v.SetDefault("scorer.ai_limit", 10)
	v.SetDefault("scorer.concurrency", 4)
	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.tool_concurrency", 4)
	v.SetDefault("agent.max_tool_result_chars", 12000)
	v.SetDefault("agent.max_history_chars", 120000)
	v.SetDefault("tools.call_timeout_secs", 45)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 10000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("cache.driver", "none")
	v.SetDefault("pricing.google_places.per_request", 0.032)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.firecrawl.per_scrape", 0.00633)
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-haiku-4-5-20251001": map[string]any{
			"input": 1.00, "output": 5.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1,
		},
		"claude-sonnet-4-5-20250929": map[string]any{
			"input": 3.00, "output": 15.00, "cache_write_mul": 1.25, "cache_read_mul": 0.1,
		},
	})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks the configuration for the given command mode
// ("search", "orchestrate" or "serve"). Provider keys are optional for
// searches: an unconfigured backend yields an empty result instead of an
// error. Orchestration cannot run without a reasoning model.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "search":
	case "orchestrate":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Search.PerCallCap < 1 || c.Search.PerCallCap > 20 {
		errs = append(errs, "search.per_call_cap must be between 1 and 20")
	}
	if c.Search.MaxResults < 1 {
		errs = append(errs, "search.max_results must be > 0")
	}
	if c.Agent.MaxIterations < 1 || c.Agent.MaxIterations > 25 {
		errs = append(errs, "agent.max_iterations must be between 1 and 25")
	}
	if c.Scorer.AILimit < 0 {
		errs = append(errs, "scorer.ai_limit must be >= 0")
	}
	switch c.Cache.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		errs = append(errs, "cache.driver must be one of none, sqlite, postgres")
	}
	if (c.Cache.Driver == "sqlite" || c.Cache.Driver == "postgres") && c.Cache.DSN == "" {
		errs = append(errs, "cache.dsn is required when cache.driver is set")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
