// Package ranker scores articles for global significance and selects the candidate pool.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/reasoning"
	"github.com/deusflow/worldnews/internal/retry"
)

// ErrReasoningUnavailable means no batch could be scored at all.
var ErrReasoningUnavailable = errors.New("reasoning service failed for every batch")

var errNoValidScores = fmt.Errorf("%w: no valid scores in answer", reasoning.ErrMalformedResponse)

const (
	DefaultBatchSize   = 50
	DefaultPoolSize    = 45
	DefaultConcurrency = 4
)

type Config struct {
	BatchSize   int
	PoolSize    int
	Concurrency int
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
	Rubric      reasoning.Rubric
}

func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		PoolSize:    DefaultPoolSize,
		Concurrency: DefaultConcurrency,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		Backoff:     2 * time.Second,
		Rubric:      reasoning.DefaultRubric,
	}
}

type Ranker struct {
	svc reasoning.Service
	cfg Config
	log *slog.Logger
}

func New(svc reasoning.Service, cfg Config, log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Rubric.Criteria) == 0 {
		cfg.Rubric = reasoning.DefaultRubric
	}
	return &Ranker{svc: svc, cfg: cfg, log: log}
}

// Result holds every scored article and the selected candidate pool.
type Result struct {
	// Scored is in input order and includes unscored articles.
	Scored []news.ScoredArticle
	// Candidates are the top PoolSize scored articles, best first.
	Candidates    []news.ScoredArticle
	Batches       int
	FailedBatches int
	// Rejected counts answer entries that were out of range or named unknown articles.
	Rejected int
}

// Unscored counts articles without a valid score.
func (r Result) Unscored() int {
	n := 0
	for _, s := range r.Scored {
		if !s.Scored {
			n++
		}
	}
	return n
}

type batchOutcome struct {
	scored   []news.ScoredArticle
	rejected int
	err      error
}

// Rank scores articles in batches and selects the candidate pool. Batch failures degrade
// the affected articles to unscored; the call fails only when every batch failed or ctx
// was cancelled. No batch is started after cancellation is observed.
func (r *Ranker) Rank(ctx context.Context, articles []news.Article) (Result, error) {
	batches := split(articles, r.cfg.BatchSize)
	outcomes := make([]batchOutcome, len(batches))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	dispatched := 0
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			outcomes[i] = r.scoreBatch(ctx, i, batch)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Batches: len(batches), Scored: make([]news.ScoredArticle, 0, len(articles))}
	for i, batch := range batches {
		out := outcomes[i]
		if i >= dispatched {
			out = unscoredBatch(batch, "not dispatched: run cancelled")
			out.err = ctx.Err()
		}
		if out.err != nil {
			res.FailedBatches++
		}
		res.Rejected += out.rejected
		res.Scored = append(res.Scored, out.scored...)
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("ranking cancelled after %d of %d batches: %w", dispatched, len(batches), err)
	}
	if len(batches) > 0 && res.FailedBatches == len(batches) {
		return res, fmt.Errorf("%w (%d batches)", ErrReasoningUnavailable, len(batches))
	}

	res.Candidates = topN(res.Scored, r.cfg.PoolSize)
	r.log.Info("ranking finished",
		"articles", len(articles),
		"batches", len(batches),
		"failed_batches", res.FailedBatches,
		"unscored", res.Unscored(),
		"rejected_entries", res.Rejected,
		"candidates", len(res.Candidates))
	return res, nil
}

func (r *Ranker) scoreBatch(ctx context.Context, idx int, batch []news.Article) batchOutcome {
	var out batchOutcome
	err := retry.WithRetry(ctx, retry.RetryConfig{
		MaxAttempts: r.cfg.MaxRetries + 1,
		Delay:       r.cfg.Backoff,
		Backoff:     true,
		Timeout:     r.cfg.Timeout,
		Logger:      r.log,
		Name:        fmt.Sprintf("score batch %d", idx),
	}, func(ctx context.Context) error {
		scores, err := r.svc.Score(ctx, batch, r.cfg.Rubric)
		if err != nil {
			return err
		}
		o := applyScores(batch, scores)
		if o.valid == 0 {
			return errNoValidScores
		}
		out = o.batchOutcome
		return nil
	})
	if err != nil {
		r.log.Error("batch left unscored", "batch", idx, "size", len(batch), "error", err)
		o := unscoredBatch(batch, "reasoning service error")
		o.err = err
		return o
	}
	return out
}

type applied struct {
	batchOutcome
	valid int
}

// applyScores validates an answer against its batch. Entries for unknown IDs, repeated
// IDs and values outside [0,100] are rejected; articles left without a valid entry are
// marked unscored.
func applyScores(batch []news.Article, scores []reasoning.Score) applied {
	pos := make(map[string]int, len(batch))
	for i, a := range batch {
		pos[a.ID] = i
	}

	var res applied
	res.scored = make([]news.ScoredArticle, len(batch))
	for i, a := range batch {
		res.scored[i] = news.ScoredArticle{Article: a, Rationale: "unscored: missing from answer"}
	}
	for _, s := range scores {
		i, ok := pos[s.ArticleID]
		if !ok || res.scored[i].Scored || math.IsNaN(s.Value) || s.Value < 0 || s.Value > 100 {
			res.rejected++
			continue
		}
		res.scored[i].Score = s.Value
		res.scored[i].Rationale = s.Rationale
		res.scored[i].Scored = true
		res.valid++
	}
	return res
}

func unscoredBatch(batch []news.Article, reason string) batchOutcome {
	out := batchOutcome{scored: make([]news.ScoredArticle, len(batch))}
	for i, a := range batch {
		out.scored[i] = news.ScoredArticle{Article: a, Rationale: "unscored: " + reason}
	}
	return out
}

func split(articles []news.Article, size int) [][]news.Article {
	var out [][]news.Article
	for start := 0; start < len(articles); start += size {
		end := min(start+size, len(articles))
		out = append(out, articles[start:end:end])
	}
	return out
}

func topN(scored []news.ScoredArticle, n int) []news.ScoredArticle {
	pool := make([]news.ScoredArticle, 0, len(scored))
	for _, s := range scored {
		if s.Scored {
			pool = append(pool, s)
		}
	}
	news.SortScored(pool)
	if n > 0 && len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
