package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/news"
)

var now = time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now }
	t.Cleanup(func() { s.Close() })
	return s
}

func scored(id string, region news.Region, score float64, ok bool) news.ScoredArticle {
	return news.ScoredArticle{
		Article: news.Article{
			ID: id, Source: "src-" + id, Region: region, Category: news.CategoryGeneral,
			Priority: news.PriorityMedium, Language: "en", Title: "Title " + id,
			URL: "https://example.com/" + id, PublishedAt: now.Add(-time.Hour), CollectedAt: now,
		},
		Score:  score,
		Scored: ok,
	}
}

func testDigest(runID string, date time.Time) *digest.Digest {
	a := scored("a", news.RegionEurope, 90, true)
	b := scored("b", news.RegionEurope, 70, true)
	c := scored("c", news.RegionAfrica, 0, false)
	d := &digest.Digest{
		RunID:  runID,
		Date:   date,
		Scored: []news.ScoredArticle{a, b, c},
		Entries: []news.DigestEntry{
			{Rank: 1, Article: a, ClusterLabel: "Quake", MemberIDs: []string{"a"}},
			{Rank: 2, Article: b, ClusterLabel: "Summit", MemberIDs: []string{"b"}},
		},
	}
	d.Stats.SourcesAttempted = 3
	d.Stats.SourcesSucceeded = 2
	d.Stats.Errors = []string{"broken: 500"}
	return d
}

func TestSaveDigest_ArticlesByDate(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveDigest(ctx, testDigest("run-1", now)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ArticlesByDate(ctx, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Rank != 1 || got[0].Article.ID != "a" || got[0].ClusterLabel != "Quake" {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Article.Score != 70 || !got[1].Article.Scored || got[1].Article.Region != news.RegionEurope {
		t.Errorf("second entry = %+v", got[1].Article)
	}
	if !got[0].Article.PublishedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("published = %v", got[0].Article.PublishedAt)
	}

	limited, err := s.ArticlesByDate(ctx, now, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit ignored: %d, %v", len(limited), err)
	}
	none, err := s.ArticlesByDate(ctx, now.AddDate(0, 0, -1), 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("other date returned %d, %v", len(none), err)
	}
}

func TestSaveDigest_LatestRunOfDayWins(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveDigest(ctx, testDigest("run-1", now)); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now.Add(time.Hour) }
	second := testDigest("run-2", now)
	second.Entries = second.Entries[:1]
	if err := s.SaveDigest(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.ArticlesByDate(ctx, now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].RunID != "run-2" {
		t.Fatalf("got %+v", got)
	}

	if err := s.SaveDigest(ctx, testDigest("run-2", now)); err == nil {
		t.Error("duplicate run id accepted")
	}
}

func TestMarkDigestSent_Stats(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveDigest(ctx, testDigest("run-1", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDigestSent(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDigestSent(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	st, err := s.Stats(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalArticles != 3 || st.CollectionRuns != 1 || st.Digests != 1 || st.DigestsSent != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.ArticlesByRegion["europe"] != 2 || st.ArticlesByRegion["africa"] != 1 {
		t.Errorf("by region = %v", st.ArticlesByRegion)
	}

	s.now = func() time.Time { return now.AddDate(0, 0, 30) }
	st, err = s.Stats(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalArticles != 0 || st.Digests != 0 {
		t.Errorf("old rows counted: %+v", st)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	s, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.SaveDigest(context.Background(), testDigest("run-1", now)); err != nil {
		t.Fatal(err)
	}
}

func TestRecentArticles(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveDigest(ctx, testDigest("run-1", now)); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentArticles(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d articles", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("order = %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if !got[0].Scored || got[0].Score != 90 || got[2].Scored {
		t.Errorf("scores = %+v / %+v", got[0], got[2])
	}
	if got[0].Region != news.RegionEurope || !got[0].CollectedAt.Equal(now) || got[0].URL != "https://example.com/a" {
		t.Errorf("fields lost: %+v", got[0].Article)
	}

	top, err := s.RecentArticles(ctx, 1, 2)
	if err != nil || len(top) != 2 {
		t.Fatalf("limit ignored: %d, %v", len(top), err)
	}

	s.now = func() time.Time { return now.AddDate(0, 0, 3) }
	old, err := s.RecentArticles(ctx, 1, 0)
	if err != nil || len(old) != 0 {
		t.Fatalf("articles outside the period returned: %d, %v", len(old), err)
	}
}
