package reasoning

import (
	"context"
	"sync"

	"github.com/deusflow/worldnews/internal/news"
)

// Mock is a deterministic Service for tests. Scores answers from a fixed table keyed by
// article ID, so the result never depends on batch composition. Cluster returns Groups verbatim.
type Mock struct {
	Scores map[string]Score
	Groups []Group

	// ScoreHook runs before every Score call with the 1-based call number; a non-nil
	// error fails the call.
	ScoreHook   func(ctx context.Context, call int, batch []news.Article) error
	ClusterHook func(ctx context.Context, call int, candidates []news.ScoredArticle) error

	mu           sync.Mutex
	scoreCalls   int
	clusterCalls int
	batches      [][]string
}

var _ Service = (*Mock)(nil)

func (m *Mock) Score(ctx context.Context, batch []news.Article, _ Rubric) ([]Score, error) {
	m.mu.Lock()
	m.scoreCalls++
	call := m.scoreCalls
	ids := make([]string, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
	}
	m.batches = append(m.batches, ids)
	m.mu.Unlock()

	if m.ScoreHook != nil {
		if err := m.ScoreHook(ctx, call, batch); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Score, 0, len(batch))
	for _, a := range batch {
		if s, ok := m.Scores[a.ID]; ok {
			s.ArticleID = a.ID
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Mock) Cluster(ctx context.Context, candidates []news.ScoredArticle) ([]Group, error) {
	m.mu.Lock()
	m.clusterCalls++
	call := m.clusterCalls
	m.mu.Unlock()

	if m.ClusterHook != nil {
		if err := m.ClusterHook(ctx, call, candidates); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Group, len(m.Groups))
	for i, g := range m.Groups {
		out[i] = Group{Label: g.Label, ArticleIDs: append([]string(nil), g.ArticleIDs...)}
	}
	return out, nil
}

func (m *Mock) ScoreCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreCalls
}

func (m *Mock) ClusterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clusterCalls
}

// Batches returns the article IDs of every Score call in call order.
func (m *Mock) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}
