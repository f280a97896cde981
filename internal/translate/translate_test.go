package translate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/worldnews/internal/cache"
	"github.com/deusflow/worldnews/internal/news"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseGoogleTranslateResponse(t *testing.T) {
	t.Parallel()

	body := []byte(`[[["Hello ","Bonjour ",null,null,1],["world","monde",null,null,1]],null,"fr"]`)
	got, err := parseGoogleTranslateResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}

	for _, bad := range []string{`[]`, `{"a":1}`, `["x"]`, `[[]]`} {
		if _, err := parseGoogleTranslateResponse([]byte(bad)); err == nil {
			t.Errorf("%s accepted", bad)
		}
	}
}

func TestGoogle_Translate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sl") != "fr" || q.Get("tl") != "en" || q.Get("client") != "gtx" {
			t.Errorf("query = %v", q)
		}
		io.WriteString(w, `[[["Summit opens","`+q.Get("q")+`"]]]`)
	}))
	defer srv.Close()

	g := &Google{BaseURL: srv.URL, Client: srv.Client()}
	got, err := g.Translate(context.Background(), "Ouverture du sommet", "fr", "en")
	if err != nil || got != "Summit opens" {
		t.Fatalf("got %q, %v", got, err)
	}
}

type fakeEngine struct {
	out   string
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.out + text, nil
}

func TestTranslator_FallbackAndCache(t *testing.T) {
	t.Parallel()

	down := &fakeEngine{err: errors.New("503")}
	backup := &fakeEngine{out: "EN:"}
	c := cache.New[string](time.Hour, 0)
	defer c.Close()

	tr := New("en", c, quiet, down, backup)
	for i := 0; i < 2; i++ {
		got, err := tr.Text(context.Background(), "Hallo", "de")
		if err != nil || got != "EN:Hallo" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if down.calls.Load() != 1 || backup.calls.Load() != 1 {
		t.Errorf("cache not used: down=%d backup=%d", down.calls.Load(), backup.calls.Load())
	}

	if got, _ := tr.Text(context.Background(), "Hello", "en"); got != "Hello" {
		t.Errorf("target language text changed: %q", got)
	}
}

func TestTranslator_ArticlesKeepOriginalOnFailure(t *testing.T) {
	t.Parallel()

	var oks, fails int
	tr := New("en", nil, quiet, &fakeEngine{err: errors.New("down")})
	tr.OnResult = func(ok bool) {
		if ok {
			oks++
		} else {
			fails++
		}
	}

	raws := []news.RawArticle{
		{Title: "Storm hits coast", Language: "en"},
		{Title: "Sturm trifft Küste", Summary: "Viele Schäden.", Language: "de"},
	}
	got := tr.Articles(context.Background(), raws)
	if len(got) != 2 || got[1].Title != "Sturm trifft Küste" || got[1].OriginalTitle != "" {
		t.Fatalf("failed translation altered the article: %+v", got)
	}
	if oks != 0 || fails != 1 {
		t.Errorf("oks=%d fails=%d", oks, fails)
	}

	tr.Engines = []Engine{&fakeEngine{out: "EN:"}}
	got = tr.Articles(context.Background(), raws)
	if got[1].Title != "EN:Sturm trifft Küste" || got[1].OriginalTitle != "Sturm trifft Küste" || got[1].Summary != "EN:Viele Schäden." {
		t.Errorf("translated article = %+v", got[1])
	}
	if got[0].OriginalTitle != "" {
		t.Error("english article touched")
	}
	if raws[1].Title != "Sturm trifft Küste" {
		t.Error("input modified")
	}
}
