package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/worldnews/internal/cache"
	"github.com/deusflow/worldnews/internal/config"
	"github.com/deusflow/worldnews/internal/gemini"
	"github.com/deusflow/worldnews/internal/metrics"
	"github.com/deusflow/worldnews/internal/openai"
	"github.com/deusflow/worldnews/internal/pipeline"
	"github.com/deusflow/worldnews/internal/ratelimit"
	"github.com/deusflow/worldnews/internal/reasoning"
	"github.com/deusflow/worldnews/internal/rss"
	"github.com/deusflow/worldnews/internal/scraper"
	"github.com/deusflow/worldnews/internal/storage"
	"github.com/deusflow/worldnews/internal/telegram"
	"github.com/deusflow/worldnews/internal/translate"
)

// Build assembles a ready-to-run App from cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*App, error) {
	if err := cfg.ValidateReasoning(); err != nil {
		return nil, err
	}

	sources, err := rss.LoadSources(cfg.Collection.FeedsPath, log.With("component", "sources"))
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	log.Info("loaded sources", "count", len(sources),
		"need_translation", len(rss.NeedTranslation(sources, cfg.Translation.TargetLanguage)))

	a := &App{
		Sources:       sources,
		Collector:     rss.NewCollector(cfg.Collection.MaxArticlesPerSource, cfg.Collection.Timeout, cfg.Collection.Concurrency, log.With("component", "collector")),
		Metrics:       m,
		HeadlineCount: cfg.Pipeline.HeadlineCount,
		Logger:        log,
	}

	if cfg.Collection.ScrapeMaxArticles > 0 {
		a.Enricher = scraper.New(cfg.Pipeline.MinSummaryRunes, cfg.Collection.ScrapeMaxArticles, cfg.Collection.ScrapeConcurrency, log.With("component", "scraper"))
	}

	completer, err := a.completer(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	limiter := ratelimit.NewCallLimiter(cfg.Reasoning.RequestsPerMinute, cfg.Reasoning.MaxRequests, log.With("component", "ratelimit"))
	a.Limiter = limiter
	svc := reasoning.WithLimit(reasoning.WithObserver(reasoning.NewLLM(completer), m), limiter)

	a.Pipeline, err = pipeline.New(cfg.PipelineConfig(), svc,
		pipeline.WithObserver(m),
		pipeline.WithLogger(log),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Translation.Enabled {
		c := cache.New[string](cfg.Translation.CacheTTL, time.Hour)
		a.closers = append(a.closers, c.Close)
		engines := []translate.Engine{translate.NewGoogle()}
		if cfg.Reasoning.OpenAIAPIKey != "" {
			engines = append(engines, openai.NewClient(cfg.Reasoning.OpenAIAPIKey, cfg.Reasoning.OpenAIModel, cfg.Reasoning.OpenAIBaseURL))
		}
		tr := translate.New(cfg.Translation.TargetLanguage, c, log.With("component", "translate"), engines...)
		tr.OnResult = m.IncrementTranslation
		a.Translator = tr
	}

	store, err := storage.Open(ctx, cfg.Storage.DBPath, log.With("component", "storage"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { store.Close() })
	a.Archive = store

	if cfg.Telegram.Enabled() {
		a.Sender = telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID, log.With("component", "telegram"))
	}
	return a, nil
}

func (a *App) completer(ctx context.Context, cfg *config.Config) (reasoning.Completer, error) {
	switch cfg.Reasoning.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.Reasoning.OpenAIAPIKey, cfg.Reasoning.OpenAIModel, cfg.Reasoning.OpenAIBaseURL), nil
	default:
		c, err := gemini.NewClient(ctx, cfg.Reasoning.GeminiAPIKey, cfg.Reasoning.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	}
}
