package news

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrMalformedInput marks a raw article that cannot be normalized. It is never fatal.
var ErrMalformedInput = errors.New("malformed article")

// Skipped records why a raw article did not make it into the run.
type Skipped struct {
	Raw    RawArticle
	Reason error
}

// Normalizer turns collector output into Articles.
type Normalizer struct {
	// Now stamps articles that carry no collection or publication time. Defaults to
	// time.Now; set it to a fixed instant when output must not depend on the wall clock.
	Now func() time.Time
}

// Normalize canonicalizes one raw article.
func (n Normalizer) Normalize(raw RawArticle) (Article, error) {
	title := cleanText(raw.Title)
	source := strings.TrimSpace(raw.Source)
	link := strings.TrimSpace(raw.URL)

	switch {
	case source == "":
		return Article{}, fmt.Errorf("%w: missing source", ErrMalformedInput)
	case title == "":
		return Article{}, fmt.Errorf("%w: missing title", ErrMalformedInput)
	case link == "":
		return Article{}, fmt.Errorf("%w: missing url", ErrMalformedInput)
	}

	collected := raw.CollectedAt
	if collected.IsZero() {
		collected = n.now()
	}
	published := collected
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		published = *raw.PublishedAt
	}

	priority := raw.Priority
	if !priority.Valid() {
		priority = PriorityMedium
	}
	original := cleanText(raw.OriginalTitle)
	if original == "" {
		original = title
	}
	lang := strings.ToLower(strings.TrimSpace(raw.Language))
	if lang == "" {
		lang = "en"
	}

	return Article{
		ID:            ArticleID(source, link),
		Source:        source,
		Region:        raw.Region,
		Category:      raw.Category,
		Priority:      priority,
		Language:      lang,
		Title:         title,
		OriginalTitle: original,
		Summary:       cleanText(raw.Summary),
		URL:           link,
		PublishedAt:   published.UTC(),
		CollectedAt:   collected.UTC(),
	}, nil
}

// NormalizeAll normalizes a batch, keeping input order. Malformed articles and repeated
// IDs are reported in the skip list instead of failing the batch.
func (n Normalizer) NormalizeAll(raws []RawArticle) ([]Article, []Skipped) {
	out := make([]Article, 0, len(raws))
	var skipped []Skipped
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		a, err := n.Normalize(raw)
		if err != nil {
			skipped = append(skipped, Skipped{Raw: raw, Reason: err})
			continue
		}
		if _, dup := seen[a.ID]; dup {
			skipped = append(skipped, Skipped{Raw: raw, Reason: fmt.Errorf("%w: duplicate url %s", ErrMalformedInput, a.URL)})
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out, skipped
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// cleanText drops control characters and collapses runs of whitespace.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
