// Package scraper fills in the summary of feed entries that arrived without one by
// reading the article page.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/worldnews/internal/news"
)

const maxSummaryRunes = 500

// Enricher fetches pages of thin articles. Failures leave the article untouched.
type Enricher struct {
	MinSummaryRunes int
	MaxArticles     int
	Concurrency     int
	Client          *http.Client
	Logger          *slog.Logger
}

func New(minSummaryRunes, maxArticles, concurrency int, log *slog.Logger) *Enricher {
	return &Enricher{
		MinSummaryRunes: minSummaryRunes,
		MaxArticles:     maxArticles,
		Concurrency:     concurrency,
		Client:          &http.Client{Timeout: 15 * time.Second},
		Logger:          log,
	}
}

// Enrich returns a copy of raws in which up to MaxArticles thin summaries were
// replaced by text taken from the article page.
func (e *Enricher) Enrich(ctx context.Context, raws []news.RawArticle) []news.RawArticle {
	out := append([]news.RawArticle(nil), raws...)

	var targets []int
	for i, a := range out {
		if len([]rune(a.Summary)) >= e.MinSummaryRunes {
			continue
		}
		if e.MaxArticles > 0 && len(targets) >= e.MaxArticles {
			break
		}
		targets = append(targets, i)
	}
	if len(targets) == 0 {
		return out
	}

	summaries := make([]string, len(targets))
	var g errgroup.Group
	g.SetLimit(max(e.Concurrency, 1))
	for n, i := range targets {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			text, err := e.extract(ctx, out[i].URL)
			if err != nil {
				e.Logger.Debug("enrich failed", "url", out[i].URL, "error", err)
				return nil
			}
			summaries[n] = text
			return nil
		})
	}
	_ = g.Wait()

	enriched := 0
	for n, i := range targets {
		if len([]rune(summaries[n])) > len([]rune(out[i].Summary)) {
			out[i].Summary = summaries[n]
			enriched++
		}
	}
	e.Logger.Info("enriched thin articles", "count", enriched, "attempted", len(targets))
	return out
}

func (e *Enricher) extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}

	text := metaDescription(doc)
	if text == "" {
		text = leadParagraphs(doc)
	}
	if text == "" {
		return "", fmt.Errorf("can't get content")
	}
	return truncateRunes(text, maxSummaryRunes), nil
}

func metaDescription(doc *goquery.Document) string {
	selectors := []string{
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[name="twitter:description"]`,
	}
	for _, selector := range selectors {
		if v, ok := doc.Find(selector).First().Attr("content"); ok {
			if v = collapse(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// leadParagraphs joins the first paragraphs of the article body.
func leadParagraphs(doc *goquery.Document) string {
	selectors := []string{
		"article p",
		".article-body p",
		".content p",
		".entry-content p",
		"main p",
		"p",
	}

	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapse(s.Text())
			if len([]rune(text)) > 30 && !isJunk(text) {
				paragraphs = append(paragraphs, text)
			}
			return len(paragraphs) < 3
		})
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, " ")
		}
	}
	return ""
}

func isJunk(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range []string{"cookie", "subscribe", "newsletter", "sign in", "advertisement", "all rights reserved"} {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
