package reasoning

import (
	"context"

	"github.com/deusflow/worldnews/internal/news"
)

// Acquirer hands out permission for one outbound call.
type Acquirer interface {
	Acquire(ctx context.Context, task string) error
}

// Limited gates every call of the wrapped Service through an Acquirer.
type Limited struct {
	next  Service
	limit Acquirer
}

var _ Service = (*Limited)(nil)

func WithLimit(next Service, limit Acquirer) *Limited {
	return &Limited{next: next, limit: limit}
}

func (l *Limited) Score(ctx context.Context, batch []news.Article, rubric Rubric) ([]Score, error) {
	if err := l.limit.Acquire(ctx, "score"); err != nil {
		return nil, err
	}
	return l.next.Score(ctx, batch, rubric)
}

func (l *Limited) Cluster(ctx context.Context, candidates []news.ScoredArticle) ([]Group, error) {
	if err := l.limit.Acquire(ctx, "cluster"); err != nil {
		return nil, err
	}
	return l.next.Cluster(ctx, candidates)
}
