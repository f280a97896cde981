package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/worldnews/internal/config"
	"github.com/deusflow/worldnews/internal/storage"
)

var DigestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print an archived digest",
	RunE:  showDigest,
}

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE:  showStats,
}

func init() {
	DigestCmd.Flags().String("date", "", "Digest date as YYYY-MM-DD (default today, UTC)")
	DigestCmd.Flags().Int("limit", 0, "Maximum number of stories to print (0 = all)")
	StatsCmd.Flags().IntP("days", "d", 30, "Period to summarize, in days")
}

func openArchive(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := setupLogger(cfg)
	return storage.Open(cmd.Context(), cfg.Storage.DBPath, log.With("component", "storage"))
}

func showDigest(cmd *cobra.Command, _ []string) error {
	dateFlag, _ := cmd.Flags().GetString("date")
	limit, _ := cmd.Flags().GetInt("limit")

	date := time.Now().UTC()
	if dateFlag != "" {
		d, err := time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", dateFlag, err)
		}
		date = d
	}

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ArticlesByDate(cmd.Context(), date, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No digest archived for %s\n", date.Format("2006-01-02"))
		return nil
	}

	fmt.Printf("Digest for %s (run %s)\n\n", date.Format("2006-01-02"), entries[0].RunID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCORE\tSOURCE\tTITLE")
	for _, e := range entries {
		score := "-"
		if e.Article.Scored {
			score = fmt.Sprintf("%.0f", e.Article.Score)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Rank, score, e.Article.Source, e.Article.Title)
	}
	return w.Flush()
}

func showStats(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")
	if days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.Stats(cmd.Context(), days)
	if err != nil {
		return err
	}

	fmt.Printf("Archive statistics, last %d days\n", st.PeriodDays)
	fmt.Printf("  articles:        %d\n", st.TotalArticles)
	fmt.Printf("  collection runs: %d\n", st.CollectionRuns)
	fmt.Printf("  digests:         %d (%d sent)\n", st.Digests, st.DigestsSent)

	regions := make([]string, 0, len(st.ArticlesByRegion))
	for r := range st.ArticlesByRegion {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool {
		ni, nj := st.ArticlesByRegion[regions[i]], st.ArticlesByRegion[regions[j]]
		if ni != nj {
			return ni > nj
		}
		return regions[i] < regions[j]
	})
	for _, r := range regions {
		fmt.Printf("  %-16s %d\n", r+":", st.ArticlesByRegion[r])
	}
	return nil
}
