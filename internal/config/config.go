// Package config loads runtime settings from defaults, an optional YAML file and the
// environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/worldnews/internal/pipeline"
)

const configPathEnv = "WORLDNEWS_CONFIG"

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrInvalidConfig is returned by Load and Validate for any rejected setting.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Collection  CollectionConfig  `yaml:"collection"`
	Translation TranslationConfig `yaml:"translation"`
	Storage     StorageConfig     `yaml:"storage"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	LogLevel    string            `yaml:"log_level"`
}

type PipelineConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	DedupWindow         time.Duration `yaml:"dedup_window"`
	MinSummaryRunes     int           `yaml:"min_summary_runes"`
	DropThin            bool          `yaml:"drop_thin"`
	BatchSize           int           `yaml:"ranking_batch_size"`
	Concurrency         int           `yaml:"ranking_concurrency"`
	PoolSize            int           `yaml:"candidate_pool_size"`
	StoryCount          int           `yaml:"digest_story_count"`
	HeadlineCount       int           `yaml:"headline_count"`
}

type ReasoningConfig struct {
	Provider      string        `yaml:"provider"` // gemini | openai
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIModel   string        `yaml:"openai_model"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	Backoff       time.Duration `yaml:"backoff"`

	// Call pacing shared by scoring and clustering. Zero means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	MaxRequests       int `yaml:"max_requests"`
}

type CollectionConfig struct {
	FeedsPath            string        `yaml:"feeds_path"`
	MaxArticlesPerSource int           `yaml:"max_articles_per_source"`
	Timeout              time.Duration `yaml:"timeout"`
	Concurrency          int           `yaml:"concurrency"`

	// Page fetches for entries that arrive without a usable summary. Zero disables.
	ScrapeMaxArticles int `yaml:"scrape_max_articles"`
	ScrapeConcurrency int `yaml:"scrape_concurrency"`
}

type TranslationConfig struct {
	Enabled        bool          `yaml:"enabled"`
	TargetLanguage string        `yaml:"target_language"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// Enabled reports whether delivery credentials are present.
func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != "" }

type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

func defaultConfig() *Config {
	p := pipeline.DefaultConfig()
	return &Config{
		Pipeline: PipelineConfig{
			SimilarityThreshold: p.SimilarityThreshold,
			DedupWindow:         p.DedupWindow,
			MinSummaryRunes:     p.MinSummaryRunes,
			BatchSize:           p.BatchSize,
			Concurrency:         p.Concurrency,
			PoolSize:            p.PoolSize,
			StoryCount:          p.StoryCount,
			HeadlineCount:       5,
		},
		Reasoning: ReasoningConfig{
			Provider:          ProviderGemini,
			GeminiModel:       "gemini-1.5-flash",
			OpenAIModel:       "gpt-4o-mini",
			Timeout:           p.Timeout,
			MaxRetries:        p.MaxRetries,
			Backoff:           p.Backoff,
			RequestsPerMinute: 15,
		},
		Collection: CollectionConfig{
			FeedsPath:            "configs/feeds.yaml",
			MaxArticlesPerSource: 10,
			Timeout:              30 * time.Second,
			Concurrency:          10,
			ScrapeMaxArticles:    10,
			ScrapeConcurrency:    8,
		},
		Translation: TranslationConfig{
			Enabled:        true,
			TargetLanguage: "en",
			CacheTTL:       48 * time.Hour,
		},
		Storage:    StorageConfig{DBPath: "data/news_archive.db"},
		Monitoring: MonitoringConfig{Port: "8080"},
		LogLevel:   "info",
	}
}

// Load reads .env (if present), the YAML file named by WORLDNEWS_CONFIG (if set) and
// then applies environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: cannot read .env", "error", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
		}
		if err := cfg.merge(raw); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// merge decodes raw over the current values; keys missing from the file keep their value.
func (c *Config) merge(raw []byte) error {
	return yaml.Unmarshal(raw, c)
}

func (c *Config) applyEnvOverrides() error {
	env := &envReader{}

	env.float("SIMILARITY_THRESHOLD", &c.Pipeline.SimilarityThreshold)
	env.duration("DEDUP_WINDOW", &c.Pipeline.DedupWindow)
	env.integer("MIN_SUMMARY_RUNES", &c.Pipeline.MinSummaryRunes)
	env.boolean("DROP_THIN", &c.Pipeline.DropThin)
	env.integer("RANKING_BATCH_SIZE", &c.Pipeline.BatchSize)
	env.integer("RANKING_CONCURRENCY", &c.Pipeline.Concurrency)
	env.integer("CANDIDATE_POOL_SIZE", &c.Pipeline.PoolSize)
	env.integer("DIGEST_STORY_COUNT", &c.Pipeline.StoryCount)
	env.integer("HEADLINE_COUNT", &c.Pipeline.HeadlineCount)

	env.str("REASONING_PROVIDER", &c.Reasoning.Provider)
	env.str("GEMINI_API_KEY", &c.Reasoning.GeminiAPIKey)
	env.str("GEMINI_MODEL", &c.Reasoning.GeminiModel)
	env.str("OPENAI_API_KEY", &c.Reasoning.OpenAIAPIKey)
	env.str("OPENAI_MODEL", &c.Reasoning.OpenAIModel)
	env.str("OPENAI_BASE_URL", &c.Reasoning.OpenAIBaseURL)
	env.duration("REASONING_TIMEOUT", &c.Reasoning.Timeout)
	env.integer("REASONING_MAX_RETRIES", &c.Reasoning.MaxRetries)
	env.duration("REASONING_BACKOFF", &c.Reasoning.Backoff)
	env.integer("REASONING_REQUESTS_PER_MINUTE", &c.Reasoning.RequestsPerMinute)
	env.integer("MAX_REASONING_REQUESTS", &c.Reasoning.MaxRequests)

	env.str("FEEDS_CONFIG_PATH", &c.Collection.FeedsPath)
	env.integer("MAX_ARTICLES_PER_SOURCE", &c.Collection.MaxArticlesPerSource)
	env.duration("COLLECTION_TIMEOUT", &c.Collection.Timeout)
	env.integer("COLLECTION_CONCURRENCY", &c.Collection.Concurrency)
	env.integer("SCRAPE_MAX_ARTICLES", &c.Collection.ScrapeMaxArticles)
	env.integer("SCRAPE_CONCURRENCY", &c.Collection.ScrapeConcurrency)

	env.boolean("ENABLE_TRANSLATION", &c.Translation.Enabled)
	env.str("TARGET_LANGUAGE", &c.Translation.TargetLanguage)
	env.duration("TRANSLATION_CACHE_TTL", &c.Translation.CacheTTL)

	env.str("DB_PATH", &c.Storage.DBPath)
	env.str("TELEGRAM_TOKEN", &c.Telegram.Token)
	env.str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	env.boolean("ENABLE_HTTP_MONITORING", &c.Monitoring.Enabled)
	env.str("MONITORING_PORT", &c.Monitoring.Port)

	env.str("LOG_LEVEL", &c.LogLevel)
	if os.Getenv("DEBUG") == "true" {
		c.LogLevel = "debug"
	}

	if len(env.errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(env.errs...))
	}
	return nil
}

// PipelineConfig maps the loaded settings onto the reduction pipeline.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		SimilarityThreshold: c.Pipeline.SimilarityThreshold,
		DedupWindow:         c.Pipeline.DedupWindow,
		MinSummaryRunes:     c.Pipeline.MinSummaryRunes,
		DropThin:            c.Pipeline.DropThin,
		BatchSize:           c.Pipeline.BatchSize,
		PoolSize:            c.Pipeline.PoolSize,
		StoryCount:          c.Pipeline.StoryCount,
		Concurrency:         c.Pipeline.Concurrency,
		Timeout:             c.Reasoning.Timeout,
		MaxRetries:          c.Reasoning.MaxRetries,
		Backoff:             c.Reasoning.Backoff,
	}
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.PipelineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.HeadlineCount < 1 {
		errs = append(errs, fmt.Errorf("headline_count must be at least 1, got %d", c.Pipeline.HeadlineCount))
	}
	switch c.Reasoning.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("reasoning provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Reasoning.Provider))
	}
	if c.Reasoning.RequestsPerMinute < 0 || c.Reasoning.MaxRequests < 0 {
		errs = append(errs, errors.New("reasoning request limits must not be negative"))
	}
	if c.Collection.MaxArticlesPerSource < 1 {
		errs = append(errs, fmt.Errorf("max_articles_per_source must be at least 1, got %d", c.Collection.MaxArticlesPerSource))
	}
	if c.Collection.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("collection timeout must be positive, got %v", c.Collection.Timeout))
	}
	if c.Collection.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("collection concurrency must be at least 1, got %d", c.Collection.Concurrency))
	}
	if c.Collection.ScrapeMaxArticles < 0 || c.Collection.ScrapeConcurrency < 1 {
		errs = append(errs, errors.New("scrape_max_articles must not be negative and scrape_concurrency must be at least 1"))
	}
	if c.Translation.Enabled && c.Translation.TargetLanguage == "" {
		errs = append(errs, errors.New("target language is required when translation is enabled"))
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	if c.Monitoring.Enabled {
		if port, err := strconv.Atoi(c.Monitoring.Port); err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("MONITORING_PORT must be a valid port, got %q", c.Monitoring.Port))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateReasoning checks the credentials of the selected provider. Commands that only
// read the archive skip it.
func (c *Config) ValidateReasoning() error {
	switch c.Reasoning.Provider {
	case ProviderGemini:
		if c.Reasoning.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if c.Reasoning.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required", ErrInvalidConfig)
		}
	}
	return nil
}

type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}
