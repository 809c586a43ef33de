package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/feedgen/feedgen/internal/config"
	"github.com/feedgen/feedgen/internal/feedsurface"
	"github.com/feedgen/feedgen/internal/store"
)

type stubScheduler struct {
	known, enabled bool
}

func (s stubScheduler) Trigger(name string) (bool, bool) { return s.known, s.enabled }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSurface(t *testing.T) *feedsurface.Surface {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedgen.sqlite3")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{Feeds: map[string]config.FeedConfig{
		"hn": {RequestURL: "http://example.invalid"},
	}}
	return feedsurface.New(st, config.WrapConfig(cfg))
}

func TestGetFeed_UnknownNameReturns404(t *testing.T) {
	surface := newTestSurface(t)
	srv := New(surface, stubScheduler{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/feeds/missing", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetFeed_ConfiguredFeedReturnsRSS(t *testing.T) {
	surface := newTestSurface(t)
	srv := New(surface, stubScheduler{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/feeds/hn", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/rss+xml; charset=utf-8" {
		t.Errorf("expected an RSS content type, got %q", ct)
	}
}

func TestTriggerUpdate_MapsSchedulerResultToStatus(t *testing.T) {
	surface := newTestSurface(t)

	cases := []struct {
		known, enabled bool
		wantStatus     int
	}{
		{known: false, enabled: false, wantStatus: http.StatusNotFound},
		{known: true, enabled: false, wantStatus: http.StatusConflict},
		{known: true, enabled: true, wantStatus: http.StatusAccepted},
	}

	for _, tc := range cases {
		srv := New(surface, stubScheduler{known: tc.known, enabled: tc.enabled}, testLogger())
		req := httptest.NewRequest(http.MethodPost, "/feeds/hn/update", nil)
		rec := httptest.NewRecorder()
		srv.engine.ServeHTTP(rec, req)

		if rec.Code != tc.wantStatus {
			t.Errorf("known=%v enabled=%v: expected status %d, got %d", tc.known, tc.enabled, tc.wantStatus, rec.Code)
		}
	}
}

func TestIndex_RendersHTML(t *testing.T) {
	surface := newTestSurface(t)
	srv := New(surface, stubScheduler{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("expected an HTML content type, got %q", ct)
	}
}
