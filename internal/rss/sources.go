package rss

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/worldnews/internal/news"
)

// SourcesConfig is the YAML layout of the feeds file:
//
//	sources:
//	  - name: BBC World
//	    region: europe
//	    category: general
//	    url: https://...
type SourcesConfig struct {
	Sources []news.Source `yaml:"sources"`
}

// LoadSources reads the feeds file and returns the enabled, valid sources. Broken
// entries are logged and skipped so one typo does not stop collection.
func LoadSources(path string, log *slog.Logger) ([]news.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg SourcesConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var out []news.Source
	for _, s := range cfg.Sources {
		if err := prepareSource(&s); err != nil {
			log.Warn("failed to load source", "name", s.Name, "error", err)
			continue
		}
		if !s.IsEnabled() {
			log.Debug("source disabled", "name", s.Name)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func prepareSource(s *news.Source) error {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("invalid url %q", s.URL)
	}
	if !s.Region.Valid() {
		return fmt.Errorf("unknown region %q", s.Region)
	}
	if !s.Category.Valid() {
		return fmt.Errorf("unknown category %q", s.Category)
	}
	if s.Language == "" {
		s.Language = "en"
	}
	if s.Priority == "" {
		s.Priority = news.PriorityMedium
	}
	if !s.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", s.Priority)
	}
	return nil
}

// NeedTranslation returns the sources not written in lang.
func NeedTranslation(sources []news.Source, lang string) []news.Source {
	var out []news.Source
	for _, s := range sources {
		if s.Language != lang {
			out = append(out, s)
		}
	}
	return out
}
