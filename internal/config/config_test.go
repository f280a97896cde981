package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	configPathEnv, "SIMILARITY_THRESHOLD", "DEDUP_WINDOW", "MIN_SUMMARY_RUNES", "DROP_THIN",
	"RANKING_BATCH_SIZE", "RANKING_CONCURRENCY", "CANDIDATE_POOL_SIZE", "DIGEST_STORY_COUNT",
	"HEADLINE_COUNT", "REASONING_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "OPENAI_API_KEY",
	"OPENAI_MODEL", "OPENAI_BASE_URL", "REASONING_TIMEOUT", "REASONING_MAX_RETRIES",
	"REASONING_BACKOFF", "REASONING_REQUESTS_PER_MINUTE", "MAX_REASONING_REQUESTS",
	"FEEDS_CONFIG_PATH", "MAX_ARTICLES_PER_SOURCE", "COLLECTION_TIMEOUT", "COLLECTION_CONCURRENCY",
	"SCRAPE_MAX_ARTICLES", "SCRAPE_CONCURRENCY",
	"ENABLE_TRANSLATION", "TARGET_LANGUAGE", "TRANSLATION_CACHE_TTL", "DB_PATH", "TELEGRAM_TOKEN",
	"TELEGRAM_CHAT_ID", "ENABLE_HTTP_MONITORING", "MONITORING_PORT", "LOG_LEVEL", "DEBUG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	p := cfg.PipelineConfig()
	if p.SimilarityThreshold != 0.7 || p.BatchSize != 50 || p.PoolSize != 45 || p.StoryCount != 15 {
		t.Errorf("unexpected pipeline defaults %+v", p)
	}
	if p.DedupWindow != 48*time.Hour {
		t.Errorf("dedup window = %v", p.DedupWindow)
	}
	if cfg.Pipeline.HeadlineCount != 5 || cfg.Collection.MaxArticlesPerSource != 10 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Telegram.Enabled() {
		t.Error("telegram enabled without credentials")
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "worldnews.yaml")
	yml := `
pipeline:
  similarity_threshold: 0.8
  candidate_pool_size: 30
  digest_story_count: 10
reasoning:
  provider: openai
  timeout: 45s
storage:
  db_path: /tmp/archive.db
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv("CANDIDATE_POOL_SIZE", "25")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.8 {
		t.Errorf("threshold from file not applied: %v", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Pipeline.PoolSize != 25 {
		t.Errorf("env should win over file, got pool %d", cfg.Pipeline.PoolSize)
	}
	if cfg.Pipeline.BatchSize != 50 {
		t.Errorf("key missing from file lost its default: %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Reasoning.Provider != ProviderOpenAI || cfg.Reasoning.Timeout != 45*time.Second {
		t.Errorf("reasoning settings %+v", cfg.Reasoning)
	}
	if cfg.Storage.DBPath != "/tmp/archive.db" || cfg.LogLevel != "debug" {
		t.Errorf("db=%q level=%q", cfg.Storage.DBPath, cfg.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad integer":      {"RANKING_BATCH_SIZE": "fifty"},
		"bad duration":     {"REASONING_TIMEOUT": "soon"},
		"threshold":        {"SIMILARITY_THRESHOLD": "1.2"},
		"story over pool":  {"DIGEST_STORY_COUNT": "50"},
		"provider":         {"REASONING_PROVIDER": "oracle"},
		"half telegram":    {"TELEGRAM_TOKEN": "abc"},
		"monitoring port":  {"ENABLE_HTTP_MONITORING": "true", "MONITORING_PORT": "http"},
		"zero headlines":   {"HEADLINE_COUNT": "0"},
		"missing the file": {configPathEnv: "/does/not/exist.yaml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateReasoning(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.ValidateReasoning(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing gemini key accepted: %v", err)
	}
	cfg.Reasoning.GeminiAPIKey = "key"
	if err := cfg.ValidateReasoning(); err != nil {
		t.Fatal(err)
	}
	cfg.Reasoning.Provider = ProviderOpenAI
	if err := cfg.ValidateReasoning(); err == nil {
		t.Fatal("missing openai key accepted")
	}
}
