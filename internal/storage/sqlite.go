// Package storage archives digests and the articles behind them in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/news"
)

const dateLayout = "2006-01-02"

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS digests (
	run_id          TEXT PRIMARY KEY,
	digest_date     TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	article_count   INTEGER NOT NULL,
	story_count     INTEGER NOT NULL,
	sent            INTEGER NOT NULL DEFAULT 0,
	sent_at         INTEGER
);
CREATE INDEX IF NOT EXISTS idx_digests_date ON digests(digest_date);

CREATE TABLE IF NOT EXISTS articles (
	run_id             TEXT NOT NULL REFERENCES digests(run_id),
	id                 TEXT NOT NULL,
	source             TEXT NOT NULL,
	region             TEXT NOT NULL,
	category           TEXT NOT NULL,
	priority           TEXT NOT NULL,
	language           TEXT NOT NULL,
	title              TEXT NOT NULL,
	original_title     TEXT NOT NULL DEFAULT '',
	summary            TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL,
	published_at       INTEGER NOT NULL,
	collected_at       INTEGER NOT NULL,
	score              REAL,
	rationale          TEXT NOT NULL DEFAULT '',
	included_in_digest INTEGER NOT NULL DEFAULT 0,
	digest_rank        INTEGER,
	cluster_label      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, id)
);
CREATE INDEX IF NOT EXISTS idx_articles_collected_at ON articles(collected_at);
CREATE INDEX IF NOT EXISTS idx_articles_region ON articles(region);

CREATE TABLE IF NOT EXISTS collection_runs (
	run_id             TEXT PRIMARY KEY,
	run_at             INTEGER NOT NULL,
	sources_attempted  INTEGER NOT NULL,
	sources_succeeded  INTEGER NOT NULL,
	articles_collected INTEGER NOT NULL,
	articles_after_dedup INTEGER NOT NULL,
	duration_ms        INTEGER NOT NULL,
	errors             TEXT NOT NULL DEFAULT '[]',
	stats              TEXT NOT NULL DEFAULT '{}'
);
`

// Store is the SQLite archive.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	log *slog.Logger
	now func() time.Time
}

// Open creates the parent directory of path when needed, opens the database and
// applies the schema. ":memory:" opens a private in-memory archive.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create archive directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and each ":memory:" connection
	// would otherwise see its own database.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log: log,
		now: time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Debug("archive ready", "path", path)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// SaveDigest stores the digest header, every scored article of the run and the run
// statistics in one transaction.
func (s *Store) SaveDigest(ctx context.Context, d *digest.Digest) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = s.sb.Insert("digests").
		Columns("run_id", "digest_date", "created_at", "article_count", "story_count").
		Values(d.RunID, d.Date.UTC().Format(dateLayout), s.now().Unix(), len(d.Scored), len(d.Entries)).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}

	included := make(map[string]news.DigestEntry, len(d.Entries))
	for _, e := range d.Entries {
		included[e.Article.ID] = e
	}

	for _, a := range d.Scored {
		var score, rank any
		if a.Scored {
			score = a.Score
		}
		e, in := included[a.ID]
		if in {
			rank = e.Rank
		}
		_, err = s.sb.Insert("articles").
			Columns("run_id", "id", "source", "region", "category", "priority", "language",
				"title", "original_title", "summary", "url", "published_at", "collected_at",
				"score", "rationale", "included_in_digest", "digest_rank", "cluster_label").
			Values(d.RunID, a.ID, a.Source, string(a.Region), string(a.Category), string(a.Priority), a.Language,
				a.Title, a.OriginalTitle, a.Summary, a.URL, a.PublishedAt.Unix(), a.CollectedAt.Unix(),
				score, a.Rationale, in, rank, e.ClusterLabel).
			RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert article %s: %w", a.ID, err)
		}
	}

	errs, err := json.Marshal(nonNil(d.Stats.Errors))
	if err != nil {
		return err
	}
	stats, err := json.Marshal(d.Stats)
	if err != nil {
		return err
	}
	_, err = s.sb.Insert("collection_runs").
		Columns("run_id", "run_at", "sources_attempted", "sources_succeeded", "articles_collected",
			"articles_after_dedup", "duration_ms", "errors", "stats").
		Values(d.RunID, d.Date.Unix(), d.Stats.SourcesAttempted, d.Stats.SourcesSucceeded, d.Stats.Collected,
			d.Stats.AfterDedup, d.Stats.Duration.Milliseconds(), string(errs), string(stats)).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert collection run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.log.Info("digest archived", "run_id", d.RunID, "articles", len(d.Scored), "stories", len(d.Entries))
	return nil
}

// ArchivedEntry is one story of an archived digest.
type ArchivedEntry struct {
	RunID        string
	Rank         int
	ClusterLabel string
	Article      news.ScoredArticle
}

// ArticlesByDate returns the stories of the latest digest produced on date, in rank
// order. A limit of zero returns all of them.
func (s *Store) ArticlesByDate(ctx context.Context, date time.Time, limit int) ([]ArchivedEntry, error) {
	q := s.sb.Select("run_id", "id", "source", "region", "category", "priority", "language",
		"title", "original_title", "summary", "url", "published_at", "collected_at",
		"score", "rationale", "digest_rank", "cluster_label").
		From("articles").
		Where(sq.Expr("run_id = (SELECT run_id FROM digests WHERE digest_date = ? ORDER BY created_at DESC, run_id DESC LIMIT 1)",
			date.UTC().Format(dateLayout))).
		Where(sq.Eq{"included_in_digest": true}).
		OrderBy("digest_rank ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedEntry
	for rows.Next() {
		var (
			e                  ArchivedEntry
			a                  news.ScoredArticle
			region, cat, prio  string
			published, collect int64
			score              sql.NullFloat64
		)
		if err := rows.Scan(&e.RunID, &a.ID, &a.Source, &region, &cat, &prio, &a.Language,
			&a.Title, &a.OriginalTitle, &a.Summary, &a.URL, &published, &collect,
			&score, &a.Rationale, &e.Rank, &e.ClusterLabel); err != nil {
			return nil, err
		}
		a.Region, a.Category, a.Priority = news.Region(region), news.Category(cat), news.Priority(prio)
		a.PublishedAt = time.Unix(published, 0).UTC()
		a.CollectedAt = time.Unix(collect, 0).UTC()
		a.Score, a.Scored = score.Float64, score.Valid
		e.Article = a
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentArticles returns articles collected in the last days, highest score first.
// Unscored articles come last. An article kept by several runs is listed once per run.
func (s *Store) RecentArticles(ctx context.Context, days, limit int) ([]news.ScoredArticle, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	q := s.sb.Select("id", "source", "region", "category", "priority", "language",
		"title", "original_title", "summary", "url", "published_at", "collected_at",
		"score", "rationale").
		From("articles").
		Where(sq.Gt{"collected_at": since}).
		OrderBy("score IS NULL", "score DESC", "collected_at DESC", "id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer rows.Close()

	var out []news.ScoredArticle
	for rows.Next() {
		var (
			a                  news.ScoredArticle
			region, cat, prio  string
			published, collect int64
			score              sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.Source, &region, &cat, &prio, &a.Language,
			&a.Title, &a.OriginalTitle, &a.Summary, &a.URL, &published, &collect,
			&score, &a.Rationale); err != nil {
			return nil, err
		}
		a.Region, a.Category, a.Priority = news.Region(region), news.Category(cat), news.Priority(prio)
		a.PublishedAt = time.Unix(published, 0).UTC()
		a.CollectedAt = time.Unix(collect, 0).UTC()
		a.Score, a.Scored = score.Float64, score.Valid
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkDigestSent flags a digest as delivered.
func (s *Store) MarkDigestSent(ctx context.Context, runID string) error {
	res, err := s.sb.Update("digests").
		Set("sent", true).
		Set("sent_at", s.now().Unix()).
		Where(sq.Eq{"run_id": runID}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("digest %s: %w", runID, ErrNotFound)
	}
	return nil
}

// Stats summarizes the archive over the last days.
type Stats struct {
	PeriodDays       int
	TotalArticles    int
	ArticlesByRegion map[string]int
	CollectionRuns   int
	Digests          int
	DigestsSent      int
}

func (s *Store) Stats(ctx context.Context, days int) (Stats, error) {
	st := Stats{PeriodDays: days, ArticlesByRegion: map[string]int{}}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	err := s.sb.Select("COUNT(*)").From("articles").
		Where(sq.Gt{"collected_at": since}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&st.TotalArticles)
	if err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}

	rows, err := s.sb.Select("region", "COUNT(*) AS n").From("articles").
		Where(sq.Gt{"collected_at": since}).
		GroupBy("region").OrderBy("n DESC").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return st, fmt.Errorf("count by region: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var region string
		var n int
		if err := rows.Scan(&region, &n); err != nil {
			return st, err
		}
		st.ArticlesByRegion[region] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	err = s.sb.Select("COUNT(*)").From("collection_runs").
		Where(sq.Gt{"run_at": since}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&st.CollectionRuns)
	if err != nil {
		return st, fmt.Errorf("count runs: %w", err)
	}

	err = s.sb.Select("COUNT(*)", "COALESCE(SUM(sent), 0)").From("digests").
		Where(sq.Gt{"created_at": since}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&st.Digests, &st.DigestsSent)
	if err != nil {
		return st, fmt.Errorf("count digests: %w", err)
	}
	return st, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
