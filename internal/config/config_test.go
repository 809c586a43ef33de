package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "feedgen.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
[feeds.hn.extractor]
kind = "xpath"
entry = "//tr[@class='athing']"
id = "@id"
title = ".//a[@class='titlelink']/text()"
description = "."
url = ".//a[@class='titlelink']/@href"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("expected bind-addr %q, got %q", ":8080", cfg.BindAddr)
	}
	feed, ok := cfg.Feeds["hn"]
	if !ok {
		t.Fatalf("expected feed %q to be present", "hn")
	}
	if feed.Extractor.Kind != "xpath" {
		t.Errorf("expected extractor kind %q, got %q", "xpath", feed.Extractor.Kind)
	}
	if !feed.IsEnabled() {
		t.Errorf("expected feed to default to enabled")
	}
}

func TestLoad_MissingBindAddrFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
db-path = "feedgen.sqlite3"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing bind-addr")
	}
}

func TestLoad_MissingDBPathFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing db-path")
	}
}

func TestLoad_MissingFeedRequestURLFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"

[feeds.hn]
[feeds.hn.extractor]
kind = "xpath"
entry = "//tr"
id = "@id"
title = "."
description = "."
url = "@href"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing feeds.hn.request-url")
	}
}

func TestLoad_MissingExtractorKindFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing extractor.kind")
	}
}

func TestLoad_UnknownExtractorKindFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
[feeds.hn.extractor]
kind = "regex"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown extractor.kind")
	}
}

func TestLoad_XPathExtractorMissingRequiredFieldFails(t *testing.T) {
	dir := t.TempDir()
	for _, missing := range []string{"entry", "id", "title", "description", "url"} {
		fields := map[string]string{
			"entry":       "//tr",
			"id":          "@id",
			"title":       ".",
			"description": ".",
			"url":         "@href",
		}
		delete(fields, missing)

		body := "bind-addr = \":8080\"\ndb-path = \"feedgen.sqlite3\"\n\n[feeds.hn]\nrequest-url = \"https://news.ycombinator.com/\"\n[feeds.hn.extractor]\nkind = \"xpath\"\n"
		for k, v := range fields {
			body += k + " = \"" + v + "\"\n"
		}

		path := writeConfig(t, dir, body)
		if _, err := Load(path); err == nil {
			t.Errorf("expected an error with %q missing from an xpath extractor", missing)
		}
	}
}

func TestLoad_LuaExtractorMissingPathFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
[feeds.hn.extractor]
kind = "lua"
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a missing lua extractor.path")
	}
}

func TestLoad_ResolvesPathsRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatalf("could not create scripts dir: %v", err)
	}

	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "data/feedgen.sqlite3"
cache-dir = "data/cache"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
[feeds.hn.extractor]
kind = "lua"
path = "scripts/hn.lua"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDB := filepath.Join(dir, "data/feedgen.sqlite3")
	if cfg.DBPath != wantDB {
		t.Errorf("expected db-path %q, got %q", wantDB, cfg.DBPath)
	}
	wantCache := filepath.Join(dir, "data/cache")
	if cfg.CacheDir != wantCache {
		t.Errorf("expected cache-dir %q, got %q", wantCache, cfg.CacheDir)
	}
	wantScript := filepath.Join(dir, "scripts/hn.lua")
	if cfg.Feeds["hn"].Extractor.Path != wantScript {
		t.Errorf("expected script path %q, got %q", wantScript, cfg.Feeds["hn"].Extractor.Path)
	}
}

func TestLoad_AbsolutePathsAreNotRewritten(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "feedgen.sqlite3")
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "`+filepath.ToSlash(abs)+`"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
[feeds.hn.extractor]
kind = "xpath"
entry = "//tr"
id = "@id"
title = "."
description = "."
url = "@href"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != abs {
		t.Errorf("expected db-path to remain %q, got %q", abs, cfg.DBPath)
	}
}

func TestLoad_DefaultsFetchIntervalAndMaxInitialFetchSleep(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchInterval != defaultFetchInterval {
		t.Errorf("expected default fetch-interval %v, got %v", defaultFetchInterval, cfg.FetchInterval)
	}
	if cfg.MaxInitialFetchSleep != defaultMaxInitialFetchSleep {
		t.Errorf("expected default max-initial-fetch-sleep %v, got %v", defaultMaxInitialFetchSleep, cfg.MaxInitialFetchSleep)
	}
}

func TestLoad_ExplicitFetchIntervalOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"
fetch-interval = "30m"
max-initial-fetch-sleep = 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchInterval.Std() != 30*time.Minute {
		t.Errorf("expected fetch-interval %v, got %v", 30*time.Minute, cfg.FetchInterval.Std())
	}
	if cfg.MaxInitialFetchSleep.Std() != 5*time.Second {
		t.Errorf("expected max-initial-fetch-sleep %v, got %v", 5*time.Second, cfg.MaxInitialFetchSleep.Std())
	}
}

func TestLoad_PerFeedFetchIntervalOverridesGlobalDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
bind-addr = ":8080"
db-path = "feedgen.sqlite3"
fetch-interval = "2h"

[feeds.hn]
request-url = "https://news.ycombinator.com/"
fetch-interval = "10m"
[feeds.hn.extractor]
kind = "xpath"
entry = "//tr"
id = "@id"
title = "."
description = "."
url = "@href"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.FetchIntervalFor(cfg.Feeds["hn"]).Std(); got != 10*time.Minute {
		t.Errorf("expected feed-specific fetch-interval %v, got %v", 10*time.Minute, got)
	}
}
