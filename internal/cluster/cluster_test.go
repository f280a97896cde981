package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/reasoning"
)

var t0 = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

func cand(id, title string, score float64) news.ScoredArticle {
	return news.ScoredArticle{
		Article: news.Article{ID: id, Title: title, Priority: news.PriorityMedium, PublishedAt: t0},
		Score:   score,
		Scored:  true,
	}
}

func testConfig(k int) Config {
	return Config{StoryCount: k, Timeout: 50 * time.Millisecond, MaxRetries: 1, Backoff: time.Millisecond}
}

func TestCluster_LexicallyDistinctSameEvent(t *testing.T) {
	t.Parallel()

	cands := []news.ScoredArticle{
		cand("g1", "Summit opens in Geneva", 82),
		cand("g2", "Leaders arrive for talks", 88),
		cand("x1", "Drought threatens harvest in Kenya", 64),
	}
	mock := &reasoning.Mock{Groups: []reasoning.Group{
		{Label: "Geneva summit", ArticleIDs: []string{"g1", "g2"}},
		{Label: "Kenya drought", ArticleIDs: []string{"x1"}},
	}}

	res, err := New(mock, testConfig(15), nil).Cluster(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Selected) != 2 {
		t.Fatalf("want 2 events, got %d", len(res.Selected))
	}
	top := res.Selected[0]
	if top.RepresentativeID != "g2" || top.Label != "Geneva summit" || len(top.MemberIDs) != 2 {
		t.Errorf("geneva cluster %+v", top)
	}
	if res.Representatives[0].ID != "g2" {
		t.Errorf("representative article %s", res.Representatives[0].ID)
	}
	if res.Repairs.Total() != 0 {
		t.Errorf("unexpected repairs %+v", res.Repairs)
	}
}

func TestCluster_OmittedArticleBecomesSingleton(t *testing.T) {
	t.Parallel()

	cands := []news.ScoredArticle{
		cand("a", "A", 90),
		cand("b", "B", 80),
		cand("c", "Forgotten story", 85),
	}
	mock := &reasoning.Mock{Groups: []reasoning.Group{{Label: "AB", ArticleIDs: []string{"a", "b"}}}}

	res, err := New(mock, testConfig(15), nil).Cluster(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if res.Repairs.Missing != 1 {
		t.Errorf("missing = %d, want 1", res.Repairs.Missing)
	}
	if len(res.Selected) != 2 || res.Selected[1].RepresentativeID != "c" {
		t.Fatalf("selected %+v", res.Selected)
	}
	if res.Selected[1].Label != "Forgotten story" {
		t.Errorf("singleton label %q", res.Selected[1].Label)
	}
}

func TestCluster_NoPadding(t *testing.T) {
	t.Parallel()

	var cands []news.ScoredArticle
	var groups []reasoning.Group
	for i := 0; i < 9; i++ {
		a := cand(fmt.Sprintf("e%d-a", i), "A", float64(50+i))
		b := cand(fmt.Sprintf("e%d-b", i), "B", float64(40+i))
		cands = append(cands, a, b)
		groups = append(groups, reasoning.Group{Label: fmt.Sprintf("event %d", i), ArticleIDs: []string{a.ID, b.ID}})
	}

	res, err := New(&reasoning.Mock{Groups: groups}, testConfig(15), nil).Cluster(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Selected) != 9 {
		t.Errorf("selected = %d, want 9", len(res.Selected))
	}
}

func TestCluster_CapUsesRepresentativeScore(t *testing.T) {
	t.Parallel()

	cands := []news.ScoredArticle{
		cand("big1", "Big", 60), cand("big2", "Big", 60), cand("big3", "Big", 60),
		cand("solo", "Solo", 70),
	}
	mock := &reasoning.Mock{Groups: []reasoning.Group{
		{ArticleIDs: []string{"big1", "big2", "big3"}},
		{ArticleIDs: []string{"solo"}},
	}}

	res, err := New(mock, testConfig(1), nil).Cluster(context.Background(), cands)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Selected) != 1 || res.Selected[0].RepresentativeID != "solo" {
		t.Errorf("selected %+v", res.Selected)
	}
	if len(res.Clusters) != 2 {
		t.Errorf("all clusters should be kept in the partition, got %d", len(res.Clusters))
	}
}

func TestCluster_ServiceFailureDegrades(t *testing.T) {
	t.Parallel()

	cands := []news.ScoredArticle{cand("a", "A", 90), cand("b", "B", 80)}
	mock := &reasoning.Mock{ClusterHook: func(context.Context, int, []news.ScoredArticle) error {
		return errors.New("provider down")
	}}

	res, err := New(mock, testConfig(15), nil).Cluster(context.Background(), cands)
	if err != nil {
		t.Fatalf("service failure must not fail the stage: %v", err)
	}
	if !res.Degraded || len(res.Clusters) != 2 {
		t.Fatalf("degraded=%v clusters=%d", res.Degraded, len(res.Clusters))
	}
	if mock.ClusterCalls() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", mock.ClusterCalls())
	}
}

func TestRepair_Policy(t *testing.T) {
	t.Parallel()

	cands := []news.ScoredArticle{cand("a", "A", 10), cand("b", "B", 20), cand("c", "C", 30), cand("d", "D", 40)}
	groups := []reasoning.Group{
		{Label: "first", ArticleIDs: []string{"a", "b", "ghost"}},
		{Label: "second", ArticleIDs: []string{"b", "c"}},
		{Label: "empty", ArticleIDs: []string{"ghost2"}},
		{Label: "none"},
	}

	clusters, rep := Repair(cands, groups)
	want := Repairs{UnknownIDs: 2, Duplicates: 1, EmptyGroups: 2, Missing: 1}
	if rep != want {
		t.Errorf("repairs %+v, want %+v", rep, want)
	}

	var got []string
	for _, c := range clusters {
		got = append(got, c.Label+":"+strings.Join(c.MemberIDs, ","))
	}
	if strings.Join(got, " ") != "first:a,b second:c D:d" {
		t.Errorf("clusters %v", got)
	}
	if clusters[0].RepresentativeID != "b" {
		t.Errorf("representative %s, want b", clusters[0].RepresentativeID)
	}
}

// The union of cluster members must equal the candidate set with no overlaps, whatever the answer.
func TestRepair_AlwaysPartitions(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(45)
		cands := make([]news.ScoredArticle, n)
		for i := range cands {
			cands[i] = cand(fmt.Sprintf("c%d", i), "T", float64(rng.Intn(101)))
		}

		var groups []reasoning.Group
		for g := rng.Intn(12); g > 0; g-- {
			var ids []string
			for m := rng.Intn(6); m >= 0; m-- {
				ids = append(ids, fmt.Sprintf("c%d", rng.Intn(n+5)))
			}
			groups = append(groups, reasoning.Group{ArticleIDs: ids})
		}

		clusters, _ := Repair(cands, groups)
		var members []string
		for _, c := range clusters {
			if len(c.MemberIDs) == 0 {
				t.Fatalf("run %d: empty cluster", run)
			}
			members = append(members, c.MemberIDs...)
		}
		sort.Strings(members)
		var want []string
		for _, c := range cands {
			want = append(want, c.ID)
		}
		sort.Strings(want)
		if strings.Join(members, ",") != strings.Join(want, ",") {
			t.Fatalf("run %d: members %v, want %v", run, members, want)
		}
	}
}
