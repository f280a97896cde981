// Package news holds the records that flow through the digest pipeline.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Priority is the editorial weight of a source.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities, higher is more important. Unknown values rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool { return p.Rank() > 0 }

// Region is the geographic area a source covers.
type Region string

const (
	RegionAmericasUS    Region = "americas_us"
	RegionAmericasLatAm Region = "americas_latam"
	RegionEurope        Region = "europe"
	RegionAsiaPacific   Region = "asia_pacific"
	RegionMiddleEast    Region = "middle_east"
	RegionAfrica        Region = "africa"
	RegionLocalNY       Region = "local_ny"
	RegionGlobal        Region = "global"
)

func (r Region) Valid() bool {
	switch r {
	case RegionAmericasUS, RegionAmericasLatAm, RegionEurope, RegionAsiaPacific,
		RegionMiddleEast, RegionAfrica, RegionLocalNY, RegionGlobal:
		return true
	}
	return false
}

// Category is the beat of a source.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryPolitics   Category = "politics"
	CategoryEconomy    Category = "economy"
	CategoryTechnology Category = "technology"
	CategoryLocal      Category = "local"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryPolitics, CategoryEconomy, CategoryTechnology, CategoryLocal:
		return true
	}
	return false
}

// Source describes one configured feed.
type Source struct {
	Name     string   `yaml:"name"`
	Region   Region   `yaml:"region"`
	Category Category `yaml:"category"`
	URL      string   `yaml:"url"`
	Language string   `yaml:"language"`
	Priority Priority `yaml:"priority"`
	Enabled  *bool    `yaml:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (s Source) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// RawArticle is a feed entry as the collector produced it.
type RawArticle struct {
	Source      string
	Region      Region
	Category    Category
	Priority    Priority
	Language    string
	Title       string
	Summary     string
	URL         string
	PublishedAt *time.Time

	// OriginalTitle is set by translation when Title no longer holds the source text.
	OriginalTitle string
	CollectedAt   time.Time
}

// Article is a normalized, immutable news item.
type Article struct {
	ID            string
	Source        string
	Region        Region
	Category      Category
	Priority      Priority
	Language      string
	Title         string
	OriginalTitle string
	Summary       string
	URL           string
	PublishedAt   time.Time
	CollectedAt   time.Time
}

// SimilarityEdge links two articles the lexical pass judged to be copies of each other.
type SimilarityEdge struct {
	A     string
	B     string
	Score float64
}

// ScoredArticle is an Article with its significance score. Scored is false when the
// reasoning service gave no valid score; such articles never enter the candidate pool.
type ScoredArticle struct {
	Article
	Score     float64
	Rationale string
	Scored    bool
}

// EventCluster groups candidates describing the same real-world event.
type EventCluster struct {
	RepresentativeID string
	MemberIDs        []string
	Label            string
}

// DigestEntry is one ranked story of the final digest.
type DigestEntry struct {
	Rank         int
	Article      ScoredArticle
	ClusterLabel string
	MemberIDs    []string
}

// ArticleID derives the stable identifier of an article from its source and URL.
func ArticleID(source, url string) string {
	sum := sha256.Sum256([]byte(source + "|" + url))
	return hex.EncodeToString(sum[:])[:16]
}
