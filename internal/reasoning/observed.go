package reasoning

import (
	"context"
	"time"

	"github.com/deusflow/worldnews/internal/news"
)

// CallObserver is told about every call, including failed ones.
type CallObserver interface {
	ObserveReasoningCall(task string, d time.Duration, err error)
}

// Observed reports the latency and outcome of each call of the wrapped Service.
type Observed struct {
	next Service
	obs  CallObserver
}

var _ Service = (*Observed)(nil)

func WithObserver(next Service, obs CallObserver) *Observed {
	return &Observed{next: next, obs: obs}
}

func (o *Observed) Score(ctx context.Context, batch []news.Article, rubric Rubric) ([]Score, error) {
	start := time.Now()
	scores, err := o.next.Score(ctx, batch, rubric)
	o.obs.ObserveReasoningCall("score", time.Since(start), err)
	return scores, err
}

func (o *Observed) Cluster(ctx context.Context, candidates []news.ScoredArticle) ([]Group, error) {
	start := time.Now()
	groups, err := o.next.Cluster(ctx, candidates)
	o.obs.ObserveReasoningCall("cluster", time.Since(start), err)
	return groups, err
}
