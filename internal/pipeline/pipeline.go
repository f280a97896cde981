// Package pipeline runs the reduction stages in order: normalize, dedup, rank,
// cluster and assemble.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/worldnews/internal/cluster"
	"github.com/deusflow/worldnews/internal/dedup"
	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/ranker"
	"github.com/deusflow/worldnews/internal/reasoning"
)

// Stage names a pipeline step in errors and logs.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageDedup     Stage = "dedup"
	StageRank      Stage = "rank"
	StageCluster   Stage = "cluster"
	StageAssemble  Stage = "assemble"
)

// StageError reports which stage ended a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ErrInvalidConfig marks settings rejected before any article is processed.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

type Config struct {
	SimilarityThreshold float64
	DedupWindow         time.Duration
	MinSummaryRunes     int
	DropThin            bool

	BatchSize   int
	PoolSize    int
	StoryCount  int
	Concurrency int

	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: dedup.DefaultThreshold,
		DedupWindow:         dedup.DefaultWindow,
		MinSummaryRunes:     dedup.DefaultMinSummaryRunes,
		BatchSize:           ranker.DefaultBatchSize,
		PoolSize:            ranker.DefaultPoolSize,
		StoryCount:          cluster.DefaultStoryCount,
		Concurrency:         ranker.DefaultConcurrency,
		Timeout:             30 * time.Second,
		MaxRetries:          2,
		Backoff:             2 * time.Second,
	}
}

func (c Config) Validate() error {
	var errs []error
	if !(c.SimilarityThreshold > 0 && c.SimilarityThreshold <= 1) {
		errs = append(errs, fmt.Errorf("similarity_threshold must be in (0,1], got %v", c.SimilarityThreshold))
	}
	if c.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("dedup_window must not be negative, got %v", c.DedupWindow))
	}
	if c.MinSummaryRunes < 0 {
		errs = append(errs, fmt.Errorf("min_summary_runes must not be negative, got %d", c.MinSummaryRunes))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("ranking_batch_size must be at least 1, got %d", c.BatchSize))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("candidate_pool_size must be at least 1, got %d", c.PoolSize))
	}
	if c.StoryCount < 1 {
		errs = append(errs, fmt.Errorf("digest_story_count must be at least 1, got %d", c.StoryCount))
	}
	if c.StoryCount > c.PoolSize {
		errs = append(errs, fmt.Errorf("digest_story_count (%d) must not exceed candidate_pool_size (%d)", c.StoryCount, c.PoolSize))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("ranking_concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("reasoning_timeout must be positive, got %v", c.Timeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("reasoning_max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.Backoff < 0 {
		errs = append(errs, fmt.Errorf("reasoning_backoff must not be negative, got %v", c.Backoff))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Observer receives stage timings. It may be nil.
type Observer interface {
	ObserveStage(stage string, d time.Duration, err error)
}

// Pipeline is safe to reuse across runs; it holds no per-run state.
type Pipeline struct {
	cfg       Config
	dedup     *dedup.Deduplicator
	ranker    *ranker.Ranker
	clusterer *cluster.Clusterer
	observer  Observer
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option   { return func(p *Pipeline) { p.observer = o } }
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and builds the stages around svc.
func New(cfg Config, svc reasoning.Service, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: reasoning service is required", ErrInvalidConfig)
	}

	p := &Pipeline{cfg: cfg, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	d := dedup.New(cfg.SimilarityThreshold)
	d.Window = cfg.DedupWindow
	d.MinSummaryRunes = cfg.MinSummaryRunes
	d.DropThin = cfg.DropThin
	d.Logger = p.log.With("component", "dedup")
	p.dedup = d

	p.ranker = ranker.New(svc, ranker.Config{
		BatchSize:   cfg.BatchSize,
		PoolSize:    cfg.PoolSize,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		Backoff:     cfg.Backoff,
		Rubric:      reasoning.DefaultRubric,
	}, p.log.With("component", "ranker"))

	p.clusterer = cluster.New(svc, cluster.Config{
		StoryCount: cfg.StoryCount,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.Backoff,
	}, p.log.With("component", "cluster"))

	return p, nil
}

// Run reduces raw articles to a ranked digest. A failure is returned as *StageError.
func (p *Pipeline) Run(ctx context.Context, raws []news.RawArticle) (*digest.Digest, error) {
	start := p.now()
	d := &digest.Digest{RunID: uuid.NewString(), Date: start.UTC()}
	d.Stats.Collected = len(raws)
	log := p.log.With("run_id", d.RunID)

	// Undated articles share one timestamp per run so reruns order them identically.
	normalizer := news.Normalizer{Now: func() time.Time { return start }}

	var articles []news.Article
	err := p.stage(ctx, StageNormalize, func() error {
		var skipped []news.Skipped
		articles, skipped = normalizer.NormalizeAll(raws)
		for _, s := range skipped {
			log.Warn("skipping article", "source", s.Raw.Source, "url", s.Raw.URL, "reason", s.Reason)
		}
		d.Stats.Normalized = len(articles)
		d.Stats.Skipped = len(skipped)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var deduped []news.Article
	err = p.stage(ctx, StageDedup, func() error {
		deduped = p.dedup.Deduplicate(articles).Articles
		d.Stats.AfterDedup = len(deduped)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var ranked ranker.Result
	err = p.stage(ctx, StageRank, func() error {
		var err error
		ranked, err = p.ranker.Rank(ctx, deduped)
		d.Scored = ranked.Scored
		d.Stats.Unscored = ranked.Unscored()
		d.Stats.Scored = len(ranked.Scored) - d.Stats.Unscored
		d.Stats.FailedBatches = ranked.FailedBatches
		d.Stats.Candidates = len(ranked.Candidates)
		return err
	})
	if err != nil {
		return nil, err
	}

	var clustered cluster.Result
	err = p.stage(ctx, StageCluster, func() error {
		var err error
		clustered, err = p.clusterer.Cluster(ctx, ranked.Candidates)
		d.Stats.Clusters = len(clustered.Clusters)
		d.Stats.Repairs = clustered.Repairs.Total()
		d.Stats.ClusterDegraded = clustered.Degraded
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, StageAssemble, func() error {
		d.Entries = digest.Assemble(clustered.Selected, clustered.Representatives)
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.Stats.Duration = p.now().Sub(start)
	log.Info("digest ready",
		"collected", d.Stats.Collected,
		"after_dedup", d.Stats.AfterDedup,
		"candidates", d.Stats.Candidates,
		"clusters", d.Stats.Clusters,
		"stories", len(d.Entries),
		"duration", d.Stats.Duration)
	return d, nil
}

func (p *Pipeline) stage(ctx context.Context, name Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	started := time.Now()
	err := fn()
	if p.observer != nil {
		p.observer.ObserveStage(string(name), time.Since(started), err)
	}
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}
