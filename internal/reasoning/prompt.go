package reasoning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/worldnews/internal/news"
)

const maxPromptSummaryRunes = 200

// BuildScorePrompt lists the batch by position; answers refer back to those positions.
func BuildScorePrompt(batch []news.Article, rubric Rubric) string {
	var b strings.Builder
	b.WriteString("You are an expert news editor ranking stories for a daily world news digest.\n\n")
	b.WriteString("Rate each story from 0-100 using these criteria:\n")
	for _, c := range rubric.Criteria {
		fmt.Fprintf(&b, "- %s (weight: %d%%)\n", c.Name, c.Weight)
	}
	if len(rubric.Guidance) > 0 {
		b.WriteString("\nGuidelines:\n")
		for _, g := range rubric.Guidance {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	b.WriteString("\nStories:\n")
	for i, a := range batch {
		summary := truncateRunes(a.Summary, maxPromptSummaryRunes)
		if summary == "" {
			summary = "N/A"
		}
		fmt.Fprintf(&b, "\n[%d]\nTitle: %s\nSource: %s (%s)\nCategory: %s\nDescription: %s\n",
			i, a.Title, a.Source, a.Region, a.Category, summary)
	}
	b.WriteString(`
Return ONLY a JSON array with one item per story:
[{"index": 0, "score": 85, "rationale": "one sentence"}]
`)
	return b.String()
}

// BuildClusterPrompt asks for an index-based grouping of the candidates by event.
func BuildClusterPrompt(candidates []news.ScoredArticle) string {
	var b strings.Builder
	b.WriteString("You are an expert news editor. Group the headlines below by the underlying real-world EVENT they cover.\n")
	b.WriteString("Different aspects of the same breaking story belong to the same event, even when the wording differs.\n")
	b.WriteString("Stories that only share a topic are different events.\n\nHeadlines:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, c.Title)
	}
	b.WriteString(`
Every headline must appear in exactly one group; single-story events get their own group.
Return ONLY a JSON array:
[{"label": "short event name", "members": [0, 2, 4]}, {"label": "other event", "members": [1]}]
`)
	return b.String()
}

// missingIndexID stands in for answer entries that name no position.
const missingIndexID = "index:missing"

type scoreItem struct {
	Index     *int            `json:"index"`
	Score     json.RawMessage `json:"score"`
	Rationale string          `json:"rationale"`
}

// ParseScores maps the answer back to article IDs. Unknown or missing positions are kept
// under a placeholder ID so callers can count them as rejected.
func ParseScores(answer string, batch []news.Article) ([]Score, error) {
	var items []scoreItem
	if err := decodeJSONArray(answer, &items); err != nil {
		return nil, err
	}
	out := make([]Score, 0, len(items))
	for _, it := range items {
		v, err := parseNumber(it.Score)
		if err != nil {
			continue
		}
		id := missingIndexID
		if it.Index != nil {
			id = idAt(batch, *it.Index, func(a news.Article) string { return a.ID })
		}
		out = append(out, Score{ArticleID: id, Value: v, Rationale: strings.TrimSpace(it.Rationale)})
	}
	return out, nil
}

// ParseGroups accepts both labelled objects and bare index arrays.
func ParseGroups(answer string, candidates []news.ScoredArticle) ([]Group, error) {
	var raw []json.RawMessage
	if err := decodeJSONArray(answer, &raw); err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(raw))
	for _, r := range raw {
		var g struct {
			Label   string `json:"label"`
			Members []int  `json:"members"`
		}
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '[' {
			if err := json.Unmarshal(r, &g.Members); err != nil {
				return nil, fmt.Errorf("%w: group %s: %v", ErrMalformedResponse, r, err)
			}
		} else if err := json.Unmarshal(r, &g); err != nil {
			return nil, fmt.Errorf("%w: group %s: %v", ErrMalformedResponse, r, err)
		}
		grp := Group{Label: strings.TrimSpace(g.Label)}
		for _, idx := range g.Members {
			grp.ArticleIDs = append(grp.ArticleIDs, idAt(candidates, idx, func(a news.ScoredArticle) string { return a.ID }))
		}
		out = append(out, grp)
	}
	return out, nil
}

func idAt[T any](items []T, idx int, id func(T) string) string {
	if idx < 0 || idx >= len(items) {
		return "index:" + strconv.Itoa(idx)
	}
	return id(items[idx])
}

// decodeJSONArray tolerates markdown fences and chatter around the array.
func decodeJSONArray(answer string, v any) error {
	s := stripFences(answer)
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON array in %q", ErrMalformedResponse, truncateRunes(answer, 120))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
