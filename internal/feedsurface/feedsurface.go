// Package feedsurface implements C8: the read-side query that turns stored
// feeds/entries into the data the HTTP shell renders as RSS XML, plus the
// RSS 2.0 writer itself.
package feedsurface

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/feedgen/feedgen/internal/config"
	"github.com/feedgen/feedgen/internal/errs"
	"github.com/feedgen/feedgen/internal/store"
)

// maxEntries bounds how many of a feed's latest entries are ever rendered,
// matching original_source's MAX_FEED_ENTRY_COUNT.
const maxEntries = 100

// Meta is a feed's metadata for rendering (name, enabled state, and its
// last successful update, if any).
type Meta struct {
	Name        string
	Enabled     bool
	LastUpdated *time.Time
}

// Entry is one rendering-ready entry.
type Entry struct {
	ID          string
	Title       string
	Description string
	URL         string
	Author      string
	Published   *time.Time
}

// Surface is the read-only query surface the HTTP handlers use.
type Surface struct {
	store *store.Store
	cfg   *config.Cache
}

// New builds a Surface over the given store and resolved configuration.
func New(s *store.Store, cfg *config.Cache) *Surface {
	return &Surface{store: s, cfg: cfg}
}

// Index lists every configured feed's name, enabled state, and last update,
// for the HTML index page. Disabled feeds are included (they remain
// readable, per §4.7).
func (s *Surface) Index(ctx context.Context) ([]Meta, error) {
	cfg := s.cfg.Get()
	metas := make([]Meta, 0, len(cfg.Feeds))
	for name, feed := range cfg.Feeds {
		var lastUpdated *time.Time
		if row, err := s.store.GetFeedByName(ctx, name); err == nil {
			if t, ok := row.LastUpdatedTime(); ok {
				lastUpdated = &t
			}
		} else if err != store.ErrNotFound {
			return nil, errs.New(errs.KindStore, name, err)
		}
		metas = append(metas, Meta{Name: name, Enabled: feed.IsEnabled(), LastUpdated: lastUpdated})
	}
	return metas, nil
}

// Get returns a configured feed's metadata and its latest entries, bounded
// to maxEntries. It returns errs.KindNotFound if name is not configured.
func (s *Surface) Get(ctx context.Context, name string) (Meta, []Entry, error) {
	cfg := s.cfg.Get()
	feedCfg, ok := cfg.Feeds[name]
	if !ok {
		return Meta{}, nil, errs.New(errs.KindNotFound, name, fmt.Errorf("no such feed"))
	}

	row, err := s.store.GetFeedByName(ctx, name)
	if err == store.ErrNotFound {
		// Configured but never successfully fetched yet: valid, empty state.
		return Meta{Name: name, Enabled: feedCfg.IsEnabled()}, nil, nil
	}
	if err != nil {
		return Meta{}, nil, errs.New(errs.KindStore, name, err)
	}

	var lastUpdated *time.Time
	if t, ok := row.LastUpdatedTime(); ok {
		lastUpdated = &t
	}

	rows, err := s.store.ListEntries(ctx, row.ID, maxEntries)
	if err != nil {
		return Meta{}, nil, errs.New(errs.KindStore, name, err)
	}

	// Render order is by effective publication date (published, falling
	// back to retrieved when unset), newest first, not the store's
	// retrieved-order fetch order: a feed whose entries were backfilled
	// out of publish order would otherwise render out of publish order too.
	sort.SliceStable(rows, func(i, j int) bool {
		return effectiveTimestamp(rows[i]) > effectiveTimestamp(rows[j])
	})

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{ID: r.EntryID, Title: r.Title, Description: r.Description, URL: r.URL}
		if r.Author.Valid {
			e.Author = r.Author.String
		}
		if t, ok := r.PublishedTime(); ok {
			e.Published = &t
		}
		entries = append(entries, e)
	}

	return Meta{Name: name, Enabled: feedCfg.IsEnabled(), LastUpdated: lastUpdated}, entries, nil
}

// effectiveTimestamp is an entry's rendering sort key: published epoch
// seconds if set, otherwise retrieved epoch seconds.
func effectiveTimestamp(e store.Entry) int64 {
	if e.Published.Valid {
		return e.Published.Int64
	}
	return e.Retrieved
}
