package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deusflow/worldnews/internal/config"
	"github.com/deusflow/worldnews/internal/export"
	"github.com/deusflow/worldnews/internal/rss"
)

const exportLimit = 10000

var SourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured news sources",
	Args:  cobra.NoArgs,
	RunE:  listSources,
}

var RecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently archived articles, highest score first",
	Args:  cobra.NoArgs,
	RunE:  showRecent,
}

var ExportCmd = &cobra.Command{
	Use:   "export OUTPUT",
	Short: "Export archived articles to a CSV or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  exportArticles,
}

func init() {
	RecentCmd.Flags().IntP("days", "d", 1, "Number of days to look back")
	RecentCmd.Flags().IntP("limit", "l", 10, "Maximum number of articles")
	ExportCmd.Flags().IntP("days", "d", 30, "Number of days to export")
	ExportCmd.Flags().StringP("format", "f", "csv", "Output format: csv or json")
}

func listSources(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := setupLogger(cfg)

	sources, err := rss.LoadSources(cfg.Collection.FeedsPath, log.With("component", "sources"))
	if err != nil {
		return err
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Region != sources[j].Region {
			return sources[i].Region < sources[j].Region
		}
		return sources[i].Name < sources[j].Name
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREGION\tCATEGORY\tLANGUAGE\tPRIORITY")
	counts := make(map[string]int)
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncate(s.Name, 30), s.Region, s.Category, s.Language, s.Priority)
		counts[string(s.Region)]++
	}
	if err := w.Flush(); err != nil {
		return err
	}

	regions := make([]string, 0, len(counts))
	for r := range counts {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	fmt.Printf("\nSources by region (%d total)\n", len(sources))
	for _, r := range regions {
		fmt.Printf("  %-16s %d\n", r+":", counts[r])
	}
	return nil
}

func showRecent(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")
	limit, _ := cmd.Flags().GetInt("limit")
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	articles, err := store.RecentArticles(cmd.Context(), days, limit)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No recent articles found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tREGION\tTITLE\tSOURCE")
	for _, a := range articles {
		score := "-"
		if a.Scored {
			score = fmt.Sprintf("%.0f", a.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", score, truncate(string(a.Region), 12), truncate(a.Title, 50), truncate(a.Source, 15))
	}
	return w.Flush()
}

func exportArticles(cmd *cobra.Command, args []string) error {
	path := args[0]
	days, _ := cmd.Flags().GetInt("days")
	formatFlag, _ := cmd.Flags().GetString("format")
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	format, err := export.FormatFor(path, formatFlag)
	if err != nil {
		return err
	}

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	articles, err := store.RecentArticles(cmd.Context(), days, exportLimit)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No articles to export")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, articles); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d articles to %s\n", len(articles), path)
	return nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
