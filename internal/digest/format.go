package digest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const headlineRunes = 55

// FormatHeadlines renders the top n entries as a short plain-text message.
func FormatHeadlines(d *Digest, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News %s:", d.Date.Format("01/02"))
	for _, e := range d.Headlines(n) {
		fmt.Fprintf(&b, "\n%d. %s", e.Rank, shorten(e.Article.Title, headlineRunes))
	}
	return b.String()
}

// FormatText renders the whole digest for a terminal.
func FormatText(d *Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "World news digest for %s (%d stories)\n", d.Date.Format("2006-01-02"), len(d.Entries))
	for _, e := range d.Entries {
		a := e.Article
		fmt.Fprintf(&b, "\n%2d. [%.0f] %s\n", e.Rank, a.Score, a.Title)
		fmt.Fprintf(&b, "    %s | %s | %s\n", a.Source, a.Region, a.URL)
		if e.ClusterLabel != "" && e.ClusterLabel != a.Title {
			fmt.Fprintf(&b, "    event: %s", e.ClusterLabel)
			if len(e.MemberIDs) > 1 {
				fmt.Fprintf(&b, " (%d reports)", len(e.MemberIDs))
			}
			b.WriteString("\n")
		}
		if a.Rationale != "" {
			fmt.Fprintf(&b, "    why: %s\n", a.Rationale)
		}
	}
	return b.String()
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
