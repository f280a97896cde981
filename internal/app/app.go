// Package app wires collection, translation, the reduction pipeline, the archive and
// delivery into one daily run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/metrics"
	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/pipeline"
	"github.com/deusflow/worldnews/internal/rss"
)

type Collector interface {
	CollectAll(ctx context.Context, sources []news.Source) ([]news.RawArticle, rss.CollectStats, error)
}

type Enricher interface {
	Enrich(ctx context.Context, raws []news.RawArticle) []news.RawArticle
}

type Translator interface {
	Articles(ctx context.Context, raws []news.RawArticle) []news.RawArticle
}

type Archive interface {
	SaveDigest(ctx context.Context, d *digest.Digest) error
	MarkDigestSent(ctx context.Context, runID string) error
}

type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

type CallStats interface {
	GetStats() map[string]interface{}
}

// App holds the collaborators of a run. Enricher, Translator, Archive, Sender and
// Limiter are optional.
type App struct {
	Sources       []news.Source
	Collector     Collector
	Enricher      Enricher
	Translator    Translator
	Pipeline      *pipeline.Pipeline
	Archive       Archive
	Sender        Sender
	Limiter       CallStats
	Metrics       *metrics.Metrics
	HeadlineCount int
	Logger        *slog.Logger

	closers []func()
}

type RunOptions struct {
	SkipDelivery bool
}

// Run collects, reduces, archives and delivers one digest. Archive and delivery
// failures are reported after the other steps have had their chance.
func (a *App) Run(ctx context.Context, opts RunOptions) (*digest.Digest, error) {
	start := time.Now()
	log := a.Logger

	raws, cstats, err := a.Collector.CollectAll(ctx, a.Sources)
	if err != nil {
		return nil, a.fail(fmt.Errorf("collect: %w", err))
	}
	a.Metrics.AddCollected(len(raws))
	log.Info("collected articles", "count", len(raws), "sources_ok", cstats.SourcesSucceeded, "sources", cstats.SourcesAttempted)

	if a.Enricher != nil {
		raws = a.Enricher.Enrich(ctx, raws)
	}
	if a.Translator != nil {
		raws = a.Translator.Articles(ctx, raws)
	}

	d, err := a.Pipeline.Run(ctx, raws)
	if err != nil {
		return nil, a.fail(err)
	}
	d.Stats.SourcesAttempted = cstats.SourcesAttempted
	d.Stats.SourcesSucceeded = cstats.SourcesSucceeded
	d.Stats.Errors = append(d.Stats.Errors, cstats.Errors...)
	a.Metrics.RecordDigest(d)

	var errs []error
	if a.Archive != nil {
		if err := a.Archive.SaveDigest(ctx, d); err != nil {
			log.Error("failed to archive digest", "run_id", d.RunID, "error", err)
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}

	switch {
	case opts.SkipDelivery || a.Sender == nil:
		log.Info("delivery skipped", "run_id", d.RunID)
	case len(d.Entries) == 0:
		log.Warn("no stories to deliver", "run_id", d.RunID)
	default:
		if err := a.deliver(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}

	a.Metrics.RecordProcessingTime(time.Since(start))
	if a.Limiter != nil {
		log.Info("reasoning call usage", "stats", a.Limiter.GetStats())
	}
	if err := errors.Join(errs...); err != nil {
		return d, a.fail(err)
	}
	a.Metrics.SetLastRun()
	log.Info("run complete", "run_id", d.RunID, "stories", len(d.Entries), "duration", time.Since(start))
	return d, nil
}

func (a *App) deliver(ctx context.Context, d *digest.Digest) error {
	msg := digest.FormatHeadlines(d, a.HeadlineCount)
	err := a.Sender.SendMessage(ctx, msg)
	a.Metrics.IncrementTelegramMessagesSent(err == nil)
	if err != nil {
		a.Logger.Error("failed to deliver digest", "run_id", d.RunID, "error", err)
		return fmt.Errorf("deliver: %w", err)
	}
	if a.Archive != nil {
		if err := a.Archive.MarkDigestSent(ctx, d.RunID); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
	}
	return nil
}

func (a *App) fail(err error) error {
	a.Metrics.SetError(err.Error())
	return err
}

// Close releases clients opened by Build, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
