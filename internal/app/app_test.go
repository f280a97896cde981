package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/worldnews/internal/metrics"
	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/pipeline"
	"github.com/deusflow/worldnews/internal/reasoning"
	"github.com/deusflow/worldnews/internal/rss"
	"github.com/deusflow/worldnews/internal/storage"
)

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	now   = time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
)

type fakeCollector struct {
	raws  []news.RawArticle
	stats rss.CollectStats
	err   error
}

func (f *fakeCollector) CollectAll(context.Context, []news.Source) ([]news.RawArticle, rss.CollectStats, error) {
	return f.raws, f.stats, f.err
}

type countingTranslator struct{ calls int }

func (u *countingTranslator) Articles(_ context.Context, raws []news.RawArticle) []news.RawArticle {
	u.calls++
	return raws
}

type fakeSender struct {
	msgs []string
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, text string) error {
	f.msgs = append(f.msgs, text)
	return f.err
}

func raw(source, slug, title, summary string) news.RawArticle {
	published := now.Add(-time.Hour)
	return news.RawArticle{
		Source: source, Region: news.RegionGlobal, Category: news.CategoryGeneral,
		Priority: news.PriorityMedium, Language: "en", Title: title, Summary: summary,
		URL: "https://" + source + ".example/" + slug, PublishedAt: &published, CollectedAt: now,
	}
}

func newTestApp(t *testing.T, sender *fakeSender) (*App, *storage.Store) {
	t.Helper()

	raws := []news.RawArticle{
		raw("bbc", "quake", "Earthquake strikes central Turkey", "Rescue teams search collapsed buildings overnight."),
		raw("ft", "rates", "Central bank raises interest rates", "Borrowing costs reach their highest level in years."),
		raw("dw", "drought", "Drought threatens harvest in Kenya", "Farmers report failed maize crops for a third season."),
	}
	scores := map[string]reasoning.Score{}
	for i, r := range raws {
		scores[news.ArticleID(r.Source, r.URL)] = reasoning.Score{Value: float64(90 - 10*i)}
	}

	cfg := pipeline.DefaultConfig()
	cfg.PoolSize = 3
	cfg.StoryCount = 3
	cfg.Timeout = time.Second
	cfg.Backoff = time.Millisecond
	p, err := pipeline.New(cfg, &reasoning.Mock{Scores: scores}, pipeline.WithLogger(quiet), pipeline.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.Open(context.Background(), ":memory:", quiet)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	a := &App{
		Collector:     &fakeCollector{raws: raws, stats: rss.CollectStats{SourcesAttempted: 4, SourcesSucceeded: 3, Errors: []string{"x: 500"}}},
		Translator:    &countingTranslator{},
		Pipeline:      p,
		Archive:       store,
		Metrics:       metrics.New(),
		HeadlineCount: 2,
		Logger:        quiet,
	}
	if sender != nil {
		a.Sender = sender
	}
	return a, store
}

func TestRun_ArchivesAndDelivers(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	a, store := newTestApp(t, sender)

	d, err := a.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Entries) != 3 || d.Stats.SourcesAttempted != 4 || len(d.Stats.Errors) != 1 {
		t.Fatalf("digest = %+v", d.Stats)
	}
	if a.Translator.(*countingTranslator).calls != 1 {
		t.Error("translator not called")
	}

	if len(sender.msgs) != 1 {
		t.Fatalf("sent %d messages", len(sender.msgs))
	}
	want := "News 06/02:\n1. Earthquake strikes central Turkey\n2. Central bank raises interest rates"
	if sender.msgs[0] != want {
		t.Errorf("message\n%q\nwant\n%q", sender.msgs[0], want)
	}

	st, err := store.Stats(context.Background(), 36500)
	if err != nil {
		t.Fatal(err)
	}
	if st.Digests != 1 || st.DigestsSent != 1 || st.TotalArticles != 3 {
		t.Errorf("archive stats = %+v", st)
	}
	if !a.Metrics.GetStats()["is_healthy"].(bool) {
		t.Error("successful run marked unhealthy")
	}
}

func TestRun_SkipDelivery(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	a, store := newTestApp(t, sender)
	if _, err := a.Run(context.Background(), RunOptions{SkipDelivery: true}); err != nil {
		t.Fatal(err)
	}
	if len(sender.msgs) != 0 {
		t.Error("message sent despite skip")
	}
	st, _ := store.Stats(context.Background(), 36500)
	if st.Digests != 1 || st.DigestsSent != 0 {
		t.Errorf("archive stats = %+v", st)
	}
}

func TestRun_DeliveryFailureReported(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.New("telegram down")}
	a, _ := newTestApp(t, sender)
	d, err := a.Run(context.Background(), RunOptions{})
	if err == nil || !strings.Contains(err.Error(), "telegram down") {
		t.Fatalf("err = %v", err)
	}
	if d == nil || len(d.Entries) == 0 {
		t.Error("digest lost on delivery failure")
	}
	if a.Metrics.GetStats()["is_healthy"].(bool) {
		t.Error("failed delivery not reflected in health")
	}
}

func TestRun_CollectionCancelled(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t, nil)
	a.Collector = &fakeCollector{err: context.Canceled}
	if _, err := a.Run(context.Background(), RunOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
