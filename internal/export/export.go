// Package export writes archived articles as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/worldnews/internal/news"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

const maxCSVDescriptionRunes = 200

// FormatFor picks the output format. A .json file name wins over the flag.
func FormatFor(path, flag string) (Format, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON, nil
	}
	switch Format(strings.ToLower(strings.TrimSpace(flag))) {
	case JSON:
		return JSON, nil
	case CSV, "":
		return CSV, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv or json)", flag)
}

// Record is the JSON shape of one exported article.
type Record struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	OriginalTitle     string   `json:"original_title"`
	URL               string   `json:"url"`
	Source            string   `json:"source"`
	Region            string   `json:"region"`
	Category          string   `json:"category"`
	SignificanceScore *float64 `json:"significance_score"`
	CollectedAt       string   `json:"collected_at"`
	Description       string   `json:"description"`
}

func NewRecord(a news.ScoredArticle) Record {
	r := Record{
		ID:            a.ID,
		Title:         a.Title,
		OriginalTitle: a.OriginalTitle,
		URL:           a.URL,
		Source:        a.Source,
		Region:        string(a.Region),
		Category:      string(a.Category),
		CollectedAt:   a.CollectedAt.UTC().Format(time.RFC3339),
		Description:   a.Summary,
	}
	if a.Scored {
		score := a.Score
		r.SignificanceScore = &score
	}
	return r
}

func Write(w io.Writer, f Format, articles []news.ScoredArticle) error {
	switch f {
	case JSON:
		return WriteJSON(w, articles)
	case CSV:
		return WriteCSV(w, articles)
	}
	return fmt.Errorf("unknown export format %q", f)
}

func WriteJSON(w io.Writer, articles []news.ScoredArticle) error {
	records := make([]Record, len(articles))
	for i, a := range articles {
		records[i] = NewRecord(a)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteCSV writes a header row and one row per article. Unscored articles leave the
// score column empty and descriptions are cut to 200 runes.
func WriteCSV(w io.Writer, articles []news.ScoredArticle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "url", "source", "region", "category", "score", "collected_at", "description"}); err != nil {
		return err
	}
	for _, a := range articles {
		r := NewRecord(a)
		score := ""
		if r.SignificanceScore != nil {
			score = strconv.FormatFloat(*r.SignificanceScore, 'f', -1, 64)
		}
		desc := r.Description
		if runes := []rune(desc); len(runes) > maxCSVDescriptionRunes {
			desc = string(runes[:maxCSVDescriptionRunes])
		}
		if err := cw.Write([]string{r.ID, r.Title, r.URL, r.Source, r.Region, r.Category, score, r.CollectedAt, desc}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
