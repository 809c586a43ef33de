package xpathext

import (
	"net/url"
	"testing"
	"time"
)

const hnPage = `<html><body><table>
<tr class="athing" id="42">
  <td><span class="titleline"><a href="/item?id=42">Hello</a></span></td>
</tr>
<tr>
  <td><span class="age" title="2024-07-01T12:00:00Z">1 hour ago</span>
  <a class="hnuser">alice</a></td>
</tr>
</table></body></html>`

func newHNExtractor(t *testing.T) *Extractor {
	e, err := New(Config{
		Entry:       `//tr[contains(@class,"athing")]`,
		ID:          `@id`,
		Title:       `.//span[@class="titleline"]/a`,
		Description: `.//span[@class="titleline"]/a`,
		URL:         `.//span[@class="titleline"]/a/@href`,
		Author:      `./following-sibling::tr[1]//a[@class="hnuser"]`,
		PubDate:     `./following-sibling::tr[1]//span[@class="age"]/@title`,
	})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return e
}

func TestExtract_HappyPath(t *testing.T) {
	e := newHNExtractor(t)
	base, _ := url.Parse("https://news.ycombinator.com/")
	entries, err := e.Extract([]byte(hnPage), base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ID != "42" {
		t.Errorf("id: expected 42, got %q", got.ID)
	}
	if got.Title != "Hello" {
		t.Errorf("title: expected Hello, got %q", got.Title)
	}
	if got.URL != "https://news.ycombinator.com/item?id=42" {
		t.Errorf("url: expected resolved URL, got %q", got.URL)
	}
	if got.Author != "alice" {
		t.Errorf("author: expected alice, got %q", got.Author)
	}
	want, _ := time.Parse(time.RFC3339, "2024-07-01T12:00:00Z")
	if got.Published == nil || !got.Published.Equal(want) {
		t.Errorf("published: unexpected value %v", got.Published)
	}
}

func TestExtract_EmptyIDFails(t *testing.T) {
	e, err := New(Config{
		Entry:       `//tr`,
		ID:          `@missing`,
		Title:       `.`,
		Description: `.`,
		URL:         `@href`,
	})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	base, _ := url.Parse("https://example.com/")
	if _, err := e.Extract([]byte(`<table><tr href="/x"><td>text</td></tr></table>`), base); err == nil {
		t.Error("expected an Extract error for an empty id")
	}
}

func TestNew_RequiresCoreExpressions(t *testing.T) {
	if _, err := New(Config{Entry: `//tr`}); err == nil {
		t.Error("expected an error when required expressions are missing")
	}
}
