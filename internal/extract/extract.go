// Package extract defines the one capability both extractor backends
// implement: given raw bytes and a base URL, yield normalized entries.
// Downstream components (the scheduler) depend only on this interface, not
// on which backend produced the entries.
package extract

import (
	"net/url"
	"time"

	"github.com/feedgen/feedgen/internal/errs"
)

// Entry is a normalized, transient extraction result, before persistence.
type Entry struct {
	ID          string
	Title       string
	Description string
	URL         string
	Author      string
	Published   *time.Time
}

// Extractor turns a fetched page body into entries, in source order.
type Extractor interface {
	// Extract parses body and returns entries. sourceURL is the page the
	// body was fetched from, used as the base for resolving relative entry
	// URLs. A returned error is always an Extract-kind failure: the whole
	// result is discarded, never partially used.
	Extract(body []byte, sourceURL *url.URL) ([]Entry, error)
}

// Fail builds an errs.Error of KindExtract, attaching context (e.g. the
// offending XPath key or a script's error message) for the WARN-level log
// line §7 requires.
func Fail(context string, err error) error {
	return errs.New(errs.KindExtract, context, err)
}
