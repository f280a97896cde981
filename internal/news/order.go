package news

import (
	"cmp"
	"sort"
)

// ComparePreferred orders articles by the shared tie-break policy: higher source
// priority first, then earlier publication, then lower ID. It returns a negative
// number when a is preferred.
func ComparePreferred(a, b Article) int {
	if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
		return c
	}
	if c := a.PublishedAt.Compare(b.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareScored orders scored articles by score descending, falling back to ComparePreferred.
func CompareScored(a, b ScoredArticle) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return ComparePreferred(a.Article, b.Article)
}

// SortScored sorts in place, best first.
func SortScored(items []ScoredArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		return CompareScored(items[i], items[j]) < 0
	})
}
