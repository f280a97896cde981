// Package cluster groups the candidate pool into real-world events and keeps one
// representative per event.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/reasoning"
	"github.com/deusflow/worldnews/internal/retry"
)

const DefaultStoryCount = 15

type Config struct {
	// StoryCount is the maximum number of clusters kept (K).
	StoryCount int
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type Clusterer struct {
	svc reasoning.Service
	cfg Config
	log *slog.Logger
}

func New(svc reasoning.Service, cfg Config, log *slog.Logger) *Clusterer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StoryCount <= 0 {
		cfg.StoryCount = DefaultStoryCount
	}
	return &Clusterer{svc: svc, cfg: cfg, log: log}
}

// Result of one clustering pass.
type Result struct {
	// Clusters partition the candidates.
	Clusters []news.EventCluster
	// Selected are at most StoryCount clusters, best representative first.
	Selected        []news.EventCluster
	Representatives []news.ScoredArticle
	Repairs         Repairs
	// Degraded is set when the service failed and every candidate became its own cluster.
	Degraded bool
}

// Cluster fails only when ctx is cancelled. A service failure degrades to singletons.
func (c *Clusterer) Cluster(ctx context.Context, candidates []news.ScoredArticle) (Result, error) {
	var res Result
	if len(candidates) == 0 {
		return res, nil
	}

	var groups []reasoning.Group
	err := retry.WithRetry(ctx, retry.RetryConfig{
		MaxAttempts: c.cfg.MaxRetries + 1,
		Delay:       c.cfg.Backoff,
		Backoff:     true,
		Timeout:     c.cfg.Timeout,
		Logger:      c.log,
		Name:        "cluster candidates",
	}, func(ctx context.Context) error {
		g, err := c.svc.Cluster(ctx, candidates)
		if err != nil {
			return err
		}
		groups = g
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("clustering cancelled: %w", ctxErr)
	}
	if err != nil {
		c.log.Error("clustering failed, every candidate becomes its own event", "candidates", len(candidates), "error", err)
		res.Degraded = true
	}

	if res.Degraded {
		res.Clusters, _ = Repair(candidates, nil)
	} else {
		res.Clusters, res.Repairs = Repair(candidates, groups)
	}
	if res.Repairs.Total() > 0 {
		c.log.Warn("repaired cluster answer",
			"unknown_ids", res.Repairs.UnknownIDs,
			"duplicates", res.Repairs.Duplicates,
			"empty_groups", res.Repairs.EmptyGroups,
			"missing", res.Repairs.Missing)
	}

	res.Selected, res.Representatives = selectTop(res.Clusters, candidates, c.cfg.StoryCount)
	c.log.Info("semantic clustering finished",
		"candidates", len(candidates),
		"clusters", len(res.Clusters),
		"selected", len(res.Selected),
		"degraded", res.Degraded)
	return res, nil
}

func selectTop(clusters []news.EventCluster, candidates []news.ScoredArticle, k int) ([]news.EventCluster, []news.ScoredArticle) {
	byID := make(map[string]news.ScoredArticle, len(candidates))
	for _, cand := range candidates {
		byID[cand.ID] = cand
	}

	ordered := append([]news.EventCluster(nil), clusters...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return news.CompareScored(byID[ordered[i].RepresentativeID], byID[ordered[j].RepresentativeID]) < 0
	})
	if len(ordered) > k {
		ordered = ordered[:k]
	}

	reps := make([]news.ScoredArticle, len(ordered))
	for i, cl := range ordered {
		reps[i] = byID[cl.RepresentativeID]
	}
	return ordered, reps
}
