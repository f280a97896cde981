package dedup

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/deusflow/worldnews/internal/news"
)

var tokenRe = regexp.MustCompile(`[\pL]+|\pN+`)

// minKeywordRunes drops very short tokens from the keyword signal.
const minKeywordRunes = 3

var stopwords = toSet(
	// english
	"the", "and", "for", "are", "was", "were", "with", "from", "that", "this", "has", "have",
	"had", "its", "into", "over", "after", "amid", "says", "said", "new", "will", "been", "but",
	"not", "who", "what", "when", "where", "how", "why", "than", "out", "about", "more", "his",
	"her", "their", "they", "our", "you", "all", "can", "may", "could", "would", "should", "also",
	// danish
	"og", "til", "med", "der", "ikke", "det", "den", "som", "har", "var", "fra", "efter",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Document is an article prepared for lexical comparison.
type Document struct {
	Article  news.Article
	Title    string
	Text     string
	Keywords map[string]struct{}
	// Thin is set when the summary is too short for a safe merge.
	Thin bool
}

// NewDocument lowercases, strips diacritics and punctuation, and extracts the
// significant title tokens.
func NewDocument(a news.Article, minSummaryRunes int) Document {
	titleTokens := tokens(a.Title)
	textTokens := append(append([]string{}, titleTokens...), tokens(a.Summary)...)

	kw := make(map[string]struct{}, len(titleTokens))
	for _, t := range titleTokens {
		if utf8.RuneCountInString(t) < minKeywordRunes {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		kw[t] = struct{}{}
	}

	return Document{
		Article:  a,
		Title:    strings.Join(titleTokens, " "),
		Text:     strings.Join(textTokens, " "),
		Keywords: kw,
		Thin:     utf8.RuneCountInString(strings.TrimSpace(a.Summary)) < minSummaryRunes,
	}
}

func tokens(s string) []string {
	return tokenRe.FindAllString(foldText(s), -1)
}

func foldText(s string) string {
	s = strings.ToLower(norm.NFD.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)
}
