// Package dedup collapses near-identical wire copies of the same story.
package dedup

import (
	"log/slog"
	"sort"
	"time"

	"github.com/deusflow/worldnews/internal/news"
)

const (
	DefaultThreshold       = 0.7
	DefaultWindow          = 48 * time.Hour
	DefaultMinSummaryRunes = 20
)

// Deduplicator merges articles whose pairwise similarity reaches Threshold and keeps
// one representative per connected component.
type Deduplicator struct {
	Threshold float64
	// Window bounds the publication gap of compared pairs. Zero compares every pair.
	Window time.Duration
	// MinSummaryRunes marks shorter summaries as thin; thin articles are never merged.
	MinSummaryRunes int
	// DropThin removes thin articles from the output instead of keeping them as singletons.
	DropThin   bool
	Similarity SimilarityFunc
	Logger     *slog.Logger
}

// New returns a Deduplicator with the lexical similarity and default window.
func New(threshold float64) *Deduplicator {
	return &Deduplicator{
		Threshold:       threshold,
		Window:          DefaultWindow,
		MinSummaryRunes: DefaultMinSummaryRunes,
		Similarity:      Lexical,
	}
}

// Group is one connected component of duplicates.
type Group struct {
	Representative news.Article
	// Members are in input order and include the representative.
	Members []news.Article
}

// Result is the outcome of one deduplication pass.
type Result struct {
	// Articles holds one representative per group, ordered by the input position
	// of the group's first member.
	Articles []news.Article
	Groups   []Group
	// Edges are the above-threshold pairs that joined components.
	Edges   []news.SimilarityEdge
	Dropped []news.Article
}

// Removed is the number of input articles that did not survive.
func (r Result) Removed(input int) int { return input - len(r.Articles) }

// Deduplicate does not modify its input.
func (d *Deduplicator) Deduplicate(articles []news.Article) Result {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	sim := d.Similarity
	if sim == nil {
		sim = Lexical
	}

	docs := make([]Document, len(articles))
	for i, a := range articles {
		docs[i] = NewDocument(a, d.MinSummaryRunes)
	}

	// Compare in publication order so the window check can stop early.
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		a, b := docs[order[x]].Article, docs[order[y]].Article
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})

	uf := newUnionFind(len(docs))
	var edges []news.SimilarityEdge
	for x, i := range order {
		if docs[i].Thin {
			continue
		}
		for _, j := range order[x+1:] {
			if d.Window > 0 && docs[j].Article.PublishedAt.Sub(docs[i].Article.PublishedAt) > d.Window {
				break
			}
			if docs[j].Thin {
				continue
			}
			score := sim(&docs[i], &docs[j])
			if score < d.Threshold {
				continue
			}
			edges = append(edges, news.SimilarityEdge{A: docs[i].Article.ID, B: docs[j].Article.ID, Score: score})
			uf.union(i, j)
		}
	}

	var res Result
	res.Edges = edges
	byRoot := make(map[int]int)
	for i, doc := range docs {
		if doc.Thin && d.DropThin {
			res.Dropped = append(res.Dropped, doc.Article)
			continue
		}
		root := uf.find(i)
		g, ok := byRoot[root]
		if !ok {
			g = len(res.Groups)
			byRoot[root] = g
			res.Groups = append(res.Groups, Group{})
		}
		res.Groups[g].Members = append(res.Groups[g].Members, doc.Article)
	}

	res.Articles = make([]news.Article, len(res.Groups))
	for g := range res.Groups {
		rep := res.Groups[g].Members[0]
		for _, m := range res.Groups[g].Members[1:] {
			if news.ComparePreferred(m, rep) < 0 {
				rep = m
			}
		}
		res.Groups[g].Representative = rep
		res.Articles[g] = rep
		if n := len(res.Groups[g].Members); n > 1 {
			log.Debug("collapsed duplicates", "kept", rep.Title, "source", rep.Source, "removed", n-1)
		}
	}

	log.Info("lexical dedup finished",
		"input", len(articles),
		"output", len(res.Articles),
		"edges", len(edges),
		"dropped_thin", len(res.Dropped))
	return res
}
