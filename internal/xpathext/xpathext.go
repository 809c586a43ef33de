// Package xpathext implements the declarative XPath extractor: a fixed set
// of XPath expressions evaluated against a parsed page to yield entries.
package xpathext

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/feedgen/feedgen/internal/date"
	"github.com/feedgen/feedgen/internal/extract"
)

// Config is the parsed `kind = "xpath"` extractor subtable.
type Config struct {
	Entry         string
	ID            string
	Title         string
	Description   string
	URL           string
	Author        string
	PubDate       string
	PubDateFormat string
}

// Extractor evaluates Config's expressions against a parsed document.
type Extractor struct {
	entry   *xpath.Expr
	id      *xpath.Expr
	title   *xpath.Expr
	desc    *xpath.Expr
	url     *xpath.Expr
	author  *xpath.Expr
	pubDate *xpath.Expr
	layout  string
}

// New compiles every XPath in cfg once, so compile failures surface at
// config-load time (a Config error) rather than on the first fetch.
func New(cfg Config) (*Extractor, error) {
	compile := func(field, expr string) (*xpath.Expr, error) {
		if expr == "" {
			return nil, nil
		}
		compiled, err := xpath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("could not compile %s XPath %q: %w", field, expr, err)
		}
		return compiled, nil
	}

	var err error
	e := &Extractor{layout: date.ParseFormat(cfg.PubDateFormat)}
	if e.entry, err = compile("entry", cfg.Entry); err != nil {
		return nil, err
	}
	if e.id, err = compile("id", cfg.ID); err != nil {
		return nil, err
	}
	if e.title, err = compile("title", cfg.Title); err != nil {
		return nil, err
	}
	if e.desc, err = compile("description", cfg.Description); err != nil {
		return nil, err
	}
	if e.url, err = compile("url", cfg.URL); err != nil {
		return nil, err
	}
	if e.author, err = compile("author", cfg.Author); err != nil {
		return nil, err
	}
	if e.pubDate, err = compile("pub-date", cfg.PubDate); err != nil {
		return nil, err
	}
	if e.entry == nil || e.id == nil || e.title == nil || e.desc == nil || e.url == nil {
		return nil, fmt.Errorf("xpath extractor requires entry, id, title, description, and url expressions")
	}
	return e, nil
}

// Extract implements extract.Extractor.
func (e *Extractor) Extract(body []byte, sourceURL *url.URL) ([]extract.Entry, error) {
	root, err := htmlquery.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, extract.Fail("xpath", fmt.Errorf("could not parse document: %w", err))
	}

	entryNodes := htmlquery.QuerySelectorAll(root, e.entry)
	entries := make([]extract.Entry, 0, len(entryNodes))
	for _, node := range entryNodes {
		entry, err := e.extractOne(node, sourceURL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Extractor) extractOne(node *html.Node, sourceURL *url.URL) (extract.Entry, error) {
	id, err := e.evalRequired(node, e.id, "id")
	if err != nil {
		return extract.Entry{}, err
	}
	title, err := e.evalRequired(node, e.title, "title")
	if err != nil {
		return extract.Entry{}, err
	}
	desc, err := e.eval(node, e.desc)
	if err != nil {
		return extract.Entry{}, extract.Fail("description", err)
	}
	rawURL, err := e.evalRequired(node, e.url, "url")
	if err != nil {
		return extract.Entry{}, err
	}
	resolved, err := date.ResolveURL(sourceURL, rawURL)
	if err != nil {
		return extract.Entry{}, extract.Fail("url", err)
	}

	author, err := e.eval(node, e.author)
	if err != nil {
		return extract.Entry{}, extract.Fail("author", err)
	}

	entry := extract.Entry{
		ID:          id,
		Title:       title,
		Description: desc,
		URL:         resolved.String(),
		Author:      author,
	}

	pubDateStr, err := e.eval(node, e.pubDate)
	if err != nil {
		return extract.Entry{}, extract.Fail("pub-date", err)
	}
	if pubDateStr != "" {
		t, err := date.ParsePublished(pubDateStr, e.layout)
		if err != nil {
			return extract.Entry{}, extract.Fail("pub-date", err)
		}
		entry.Published = &t
	}

	return entry, nil
}

func (e *Extractor) evalRequired(node *html.Node, expr *xpath.Expr, field string) (string, error) {
	v, err := e.eval(node, expr)
	if err != nil {
		return "", extract.Fail(field, err)
	}
	if v == "" {
		return "", extract.Fail(field, fmt.Errorf("evaluated to an empty string"))
	}
	return v, nil
}

// eval evaluates expr relative to node, concatenating the string values of
// every resulting node in document order (or returning a scalar result
// directly when the expression itself yields one).
func (e *Extractor) eval(node *html.Node, expr *xpath.Expr) (string, error) {
	if expr == nil {
		return "", nil
	}
	nav := htmlquery.CreateXPathNavigator(node)
	result := expr.Evaluate(nav)
	switch v := result.(type) {
	case *xpath.NodeIterator:
		var b strings.Builder
		for v.MoveNext() {
			b.WriteString(v.Current().Value())
		}
		return b.String(), nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", nil
	}
}
