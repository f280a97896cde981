// Package digest orders the selected events and packages them for delivery and archiving.
package digest

import (
	"sort"
	"time"

	"github.com/deusflow/worldnews/internal/news"
)

// Stats describes one pipeline run.
type Stats struct {
	SourcesAttempted int
	SourcesSucceeded int
	Collected        int
	Normalized       int
	Skipped          int
	AfterDedup       int
	Scored           int
	Unscored         int
	FailedBatches    int
	Candidates       int
	Clusters         int
	Repairs          int
	ClusterDegraded  bool
	Errors           []string
	Duration         time.Duration
}

// Digest is the output of a run: the ranked entries plus the full scored set for audit.
type Digest struct {
	RunID   string
	Date    time.Time
	Entries []news.DigestEntry
	Scored  []news.ScoredArticle
	Stats   Stats
}

// Headlines returns the first n entries.
func (d *Digest) Headlines(n int) []news.DigestEntry {
	if n < 0 || n > len(d.Entries) {
		n = len(d.Entries)
	}
	return d.Entries[:n]
}

// Assemble ranks cluster representatives by score, with the shared tie-break, and
// numbers them from 1. It does not modify its inputs.
func Assemble(clusters []news.EventCluster, representatives []news.ScoredArticle) []news.DigestEntry {
	byID := make(map[string]news.ScoredArticle, len(representatives))
	for _, r := range representatives {
		byID[r.ID] = r
	}

	entries := make([]news.DigestEntry, 0, len(clusters))
	for _, c := range clusters {
		rep, ok := byID[c.RepresentativeID]
		if !ok {
			continue
		}
		entries = append(entries, news.DigestEntry{
			Article:      rep,
			ClusterLabel: c.Label,
			MemberIDs:    append([]string(nil), c.MemberIDs...),
		})
	}

	sortEntries(entries)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func sortEntries(entries []news.DigestEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return news.CompareScored(entries[i].Article, entries[j].Article) < 0
	})
}
