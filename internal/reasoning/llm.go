package reasoning

import (
	"context"
	"fmt"

	"github.com/deusflow/worldnews/internal/news"
)

// Completer sends one prompt to a text model and returns its raw answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLM implements Service on top of any Completer.
type LLM struct {
	completer Completer
}

var _ Service = (*LLM)(nil)

func NewLLM(c Completer) *LLM {
	return &LLM{completer: c}
}

func (l *LLM) Score(ctx context.Context, batch []news.Article, rubric Rubric) ([]Score, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	answer, err := l.completer.Complete(ctx, BuildScorePrompt(batch, rubric))
	if err != nil {
		return nil, fmt.Errorf("score batch of %d: %w", len(batch), err)
	}
	return ParseScores(answer, batch)
}

func (l *LLM) Cluster(ctx context.Context, candidates []news.ScoredArticle) ([]Group, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	answer, err := l.completer.Complete(ctx, BuildClusterPrompt(candidates))
	if err != nil {
		return nil, fmt.Errorf("cluster %d candidates: %w", len(candidates), err)
	}
	return ParseGroups(answer, candidates)
}
