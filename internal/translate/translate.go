// Package translate renders non-target-language articles in the target language.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/worldnews/internal/cache"
	"github.com/deusflow/worldnews/internal/news"
)

const (
	defaultGoogleURL = "https://translate.googleapis.com/translate_a/single"
	maxTextLen       = 4000
)

// Engine translates a single text.
type Engine interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Google uses the public Google Translate web endpoint.
type Google struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogle() *Google {
	return &Google{BaseURL: defaultGoogleURL, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (g *Google) Translate(ctx context.Context, text, from, to string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate returned status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	return parseGoogleTranslateResponse(body)
}

// parseGoogleTranslateResponse joins the translated segments of the nested array answer.
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if parts, ok := translation.([]interface{}); ok && len(parts) > 0 {
			if text, ok := parts[0].(string); ok {
				result.WriteString(text)
			}
		}
	}
	if result.Len() == 0 {
		return "", errors.New("no translated text in response")
	}
	return result.String(), nil
}

// Translator tries each engine in order and caches successful results. It never fails
// an article: on error the original text is kept.
type Translator struct {
	Target  string
	Engines []Engine
	Cache   *cache.Cache[string]
	Logger  *slog.Logger

	// OnResult, when set, is told whether each text was translated.
	OnResult func(ok bool)
}

func New(target string, c *cache.Cache[string], log *slog.Logger, engines ...Engine) *Translator {
	return &Translator{Target: target, Engines: engines, Cache: c, Logger: log}
}

// Text translates text from lang into the target language.
func (t *Translator) Text(ctx context.Context, text, lang string) (string, error) {
	if text == "" || lang == t.Target {
		return text, nil
	}

	key := cache.Key(lang, t.Target, text)
	if t.Cache != nil {
		if v, ok := t.Cache.Get(key); ok {
			return v, nil
		}
	}

	input := text
	if r := []rune(input); len(r) > maxTextLen {
		input = string(r[:maxTextLen])
	}

	var errs []error
	for _, e := range t.Engines {
		out, err := e.Translate(ctx, input, lang, t.Target)
		if err == nil && strings.TrimSpace(out) != "" {
			out = strings.TrimSpace(out)
			if t.Cache != nil {
				t.Cache.Set(key, out)
			}
			return out, nil
		}
		if err == nil {
			err = errors.New("empty translation")
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return text, fmt.Errorf("translate %s->%s: %w", lang, t.Target, errors.Join(errs...))
}

// Articles translates title and summary of every article not in the target language.
// The translated title replaces Title and the source title moves to OriginalTitle.
func (t *Translator) Articles(ctx context.Context, raws []news.RawArticle) []news.RawArticle {
	out := make([]news.RawArticle, len(raws))
	translated := 0
	for i, a := range raws {
		out[i] = a
		if a.Language == "" || a.Language == t.Target || ctx.Err() != nil {
			continue
		}

		title, err := t.Text(ctx, a.Title, a.Language)
		t.report(err)
		if err != nil {
			t.Logger.Warn("translation failed, keeping original", "source", a.Source, "lang", a.Language, "error", err)
			continue
		}
		out[i].OriginalTitle = a.Title
		out[i].Title = title

		if a.Summary != "" {
			summary, err := t.Text(ctx, a.Summary, a.Language)
			t.report(err)
			if err == nil {
				out[i].Summary = summary
			}
		}
		translated++
	}
	t.Logger.Info("translated articles", "count", translated, "total", len(raws))
	return out
}

func (t *Translator) report(err error) {
	if t.OnResult != nil {
		t.OnResult(err == nil)
	}
}
