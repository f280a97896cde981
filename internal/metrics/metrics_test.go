package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/worldnews/internal/digest"
	"github.com/deusflow/worldnews/internal/news"
	"github.com/deusflow/worldnews/internal/reasoning"
)

func TestRecordDigest(t *testing.T) {
	t.Parallel()

	m := New()
	m.AddCollected(12)
	d := &digest.Digest{RunID: "run-1", Entries: make([]news.DigestEntry, 3)}
	d.Stats.Normalized = 10
	d.Stats.AfterDedup = 7
	m.RecordDigest(d)

	stats := m.GetStats()
	if stats["duplicates_filtered"].(int64) != 3 {
		t.Errorf("duplicates = %v", stats["duplicates_filtered"])
	}
	if stats["total_articles_collected"].(int64) != 12 || stats["last_run_id"] != "run-1" {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestHandler_HealthReflectsErrors(t *testing.T) {
	t.Parallel()

	m := New()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthy status = %d", resp.StatusCode)
	}

	m.SetError("feed timeout")
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "error" || body["last_error"] != "feed timeout" {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_PrometheusExposition(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveStage("dedup", 20*time.Millisecond, nil)
	svc := reasoning.WithObserver(&reasoning.Mock{}, m)
	if _, err := svc.Score(context.Background(), nil, reasoning.DefaultRubric); err != nil {
		t.Fatal(err)
	}
	failing := reasoning.WithObserver(&reasoning.Mock{
		ClusterHook: func(context.Context, int, []news.ScoredArticle) error { return errors.New("down") },
	}, m)
	if _, err := failing.Cluster(context.Background(), nil); err == nil {
		t.Fatal("hook error swallowed")
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := string(raw)

	for _, want := range []string{
		`worldnews_stage_duration_seconds_count{outcome="ok",stage="dedup"} 1`,
		`worldnews_reasoning_calls_total{outcome="ok",task="score"} 1`,
		`worldnews_reasoning_calls_total{outcome="error",task="cluster"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
	if m.GetStats()["reasoning_failures"].(int64) != 1 {
		t.Error("failure not counted in snapshot")
	}
}
