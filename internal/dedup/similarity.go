package dedup

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// SimilarityFunc returns a symmetric similarity in [0,1] between two documents.
type SimilarityFunc func(a, b *Document) float64

const (
	textWeight    = 0.6
	keywordWeight = 0.4
	// Titles with fewer significant tokens than this are compared on text alone.
	minKeywords = 3
)

var dice = metrics.NewSorensenDice()

// Lexical blends character-bigram Sørensen–Dice similarity with keyword Jaccard:
//
//	text  = max(dice(titles), dice(title+summary))
//	score = 0.6*text + 0.4*jaccard(title keywords)
func Lexical(a, b *Document) float64 {
	text := strutil.Similarity(a.Title, b.Title, dice)
	if full := strutil.Similarity(a.Text, b.Text, dice); full > text {
		text = full
	}
	if len(a.Keywords) < minKeywords || len(b.Keywords) < minKeywords {
		return text
	}
	return textWeight*text + keywordWeight*jaccard(a.Keywords, b.Keywords)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
