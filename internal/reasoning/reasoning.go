// Package reasoning abstracts the external model that scores and groups articles.
package reasoning

import (
	"context"
	"errors"

	"github.com/deusflow/worldnews/internal/news"
)

// ErrMalformedResponse is returned when an answer cannot be parsed at all.
var ErrMalformedResponse = errors.New("malformed reasoning response")

// Score is the service's verdict on one article. Callers must still validate the range.
type Score struct {
	ArticleID string
	Value     float64
	Rationale string
}

// Group is one event group proposed by the service. Callers must repair overlaps and omissions.
type Group struct {
	Label      string
	ArticleIDs []string
}

// Criterion is one weighted dimension of the scoring rubric.
type Criterion struct {
	Name   string
	Weight int
}

// Rubric is applied to every article on its own, never comparatively.
type Rubric struct {
	Criteria []Criterion
	Guidance []string
}

// DefaultRubric scores global significance.
var DefaultRubric = Rubric{
	Criteria: []Criterion{
		{Name: "Global impact of the event", Weight: 45},
		{Name: "Breadth of the affected population", Weight: 30},
		{Name: "Novelty, whether this is a genuinely new development", Weight: 25},
	},
	Guidance: []string{
		"Major global events (wars, disasters, elections in large countries) score 80-100",
		"Policy or economic news affecting several countries scores 60-80",
		"Regional news with limited global impact scores 40-60",
		"Local or niche stories score 20-40",
		"Score each story on its own merits; do not compare stories with each other",
	},
}

// Service is the capability the ranker and clusterer depend on.
type Service interface {
	Score(ctx context.Context, batch []news.Article, rubric Rubric) ([]Score, error)
	Cluster(ctx context.Context, candidates []news.ScoredArticle) ([]Group, error)
}
