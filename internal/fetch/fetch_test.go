package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedgen/feedgen/internal/errs"
)

func TestFetch_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f, err := New(Config{UserAgent: "feedgen-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("expected %q, got %q", "hello", string(body))
	}
}

func TestFetch_NonRetryableStatusIsFetchKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.Fetch(context.Background(), srv.URL)
	if !errs.Is(err, errs.KindFetch) {
		t.Errorf("expected a Fetch-kind error, got %v", err)
	}
}

func TestFetch_BodyTooLargeIsFetchKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	f, err := New(Config{MaxBodyBytes: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.Fetch(context.Background(), srv.URL)
	if !errs.Is(err, errs.KindFetch) {
		t.Errorf("expected a Fetch-kind error, got %v", err)
	}
}
