// Package rss collects raw articles from RSS and Atom feeds.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/worldnews/internal/news"
)

const (
	maxSummaryRunes = 500
	userAgent       = "WorldNewsDigest/1.0"
)

type CollectStats struct {
	SourcesAttempted int
	SourcesSucceeded int
	Errors           []string
}

type Collector struct {
	MaxPerSource int
	Timeout      time.Duration
	Concurrency  int
	Client       *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

func NewCollector(maxPerSource int, timeout time.Duration, concurrency int, log *slog.Logger) *Collector {
	return &Collector{
		MaxPerSource: maxPerSource,
		Timeout:      timeout,
		Concurrency:  concurrency,
		Client:       &http.Client{},
		Logger:       log,
		Now:          time.Now,
	}
}

// CollectAll fetches every source, at most Concurrency at a time. A failing source is
// logged and counted, never fatal. Articles keep the order of sources.
func (c *Collector) CollectAll(ctx context.Context, sources []news.Source) ([]news.RawArticle, CollectStats, error) {
	stats := CollectStats{SourcesAttempted: len(sources)}
	results := make([][]news.RawArticle, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(max(c.Concurrency, 1))
	for i, src := range sources {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		g.Go(func() error {
			results[i], errs[i] = c.Collect(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var all []news.RawArticle
	for i, src := range sources {
		if errs[i] != nil {
			c.Logger.Warn("feed failed", "source", src.Name, "error", errs[i])
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", src.Name, errs[i]))
			continue
		}
		stats.SourcesSucceeded++
		all = append(all, results[i]...)
	}

	c.Logger.Info("processed feeds", "ok", stats.SourcesSucceeded, "total", stats.SourcesAttempted, "articles", len(all))
	if err := ctx.Err(); err != nil {
		return all, stats, err
	}
	return all, stats, nil
}

// Collect fetches one source and converts up to MaxPerSource entries.
func (c *Collector) Collect(ctx context.Context, src news.Source) ([]news.RawArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.Client = c.Client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	collected := c.Now().UTC()
	var out []news.RawArticle
	for _, item := range feed.Items {
		if c.MaxPerSource > 0 && len(out) >= c.MaxPerSource {
			break
		}
		if a, ok := toRaw(item, src, collected); ok {
			out = append(out, a)
		}
	}
	c.Logger.Debug("loaded feed", "source", src.Name, "articles", len(out))
	return out, nil
}

func toRaw(item *gofeed.Item, src news.Source, collected time.Time) (news.RawArticle, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return news.RawArticle{}, false
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}

	var published *time.Time
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed
	}

	return news.RawArticle{
		Source:      src.Name,
		Region:      src.Region,
		Category:    src.Category,
		Priority:    src.Priority,
		Language:    src.Language,
		Title:       cleanHTML(title),
		Summary:     truncateRunes(cleanHTML(desc), maxSummaryRunes),
		URL:         link,
		PublishedAt: published,
		CollectedAt: collected,
	}, true
}

// cleanHTML strips markup and collapses whitespace.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
