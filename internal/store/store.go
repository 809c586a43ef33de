// Package store implements durable persistence of feeds and entries (C5):
// an embedded SQL engine (modernc.org/sqlite) wrapped with sqlx for struct
// scanning, schema-managed by golang-migrate.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Feed is the persisted feed row (§3): surrogate key, configured name, and
// the last successfully completed update's instant.
type Feed struct {
	ID          int64         `db:"id"`
	Name        string        `db:"name"`
	LastUpdated sql.NullInt64 `db:"last_updated"`
}

// LastUpdatedTime converts the stored epoch-seconds column, if set.
func (f Feed) LastUpdatedTime() (time.Time, bool) {
	if !f.LastUpdated.Valid {
		return time.Time{}, false
	}
	return time.Unix(f.LastUpdated.Int64, 0).UTC(), true
}

// Entry is the persisted entry row (§3).
type Entry struct {
	ID          int64          `db:"id"`
	FeedID      int64          `db:"feed_id"`
	Retrieved   int64          `db:"retrieved"`
	EntryID     string         `db:"entry_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	URL         string         `db:"url"`
	Author      sql.NullString `db:"author"`
	Published   sql.NullInt64  `db:"published"`
}

// PublishedTime converts the stored epoch-seconds column, if set.
func (e Entry) PublishedTime() (time.Time, bool) {
	if !e.Published.Valid {
		return time.Time{}, false
	}
	return time.Unix(e.Published.Int64, 0).UTC(), true
}

// NewEntry is one extractor-produced entry awaiting persistence.
type NewEntry struct {
	EntryID     string
	Title       string
	Description string
	URL         string
	Author      string
	Published   *time.Time
}

// Store wraps the database connection pool.
type Store struct {
	db *sqlx.DB
}

// Open connects to the sqlite file at path, applies pending migrations, and
// sets the same connection options original_source's Storage::new used:
// foreign keys on, DELETE journal mode.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one pool-wide connection avoids SQLITE_BUSY

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("could not enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = DELETE`); err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertFeedByName returns the feed's surrogate key, creating the row on
// first encounter of name (§3's "a feed row is created on first startup
// where a given configured name is encountered").
func (s *Store) UpsertFeedByName(ctx context.Context, name string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return 0, fmt.Errorf("could not upsert feed %q: %w", name, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM feeds WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("could not look up feed %q after upsert: %w", name, err)
	}
	return id, nil
}

// GetLastUpdated returns the feed's last_updated instant, if any.
func (s *Store) GetLastUpdated(ctx context.Context, feedID int64) (time.Time, bool, error) {
	var f Feed
	if err := s.db.GetContext(ctx, &f, `SELECT id, name, last_updated FROM feeds WHERE id = ?`, feedID); err != nil {
		return time.Time{}, false, fmt.Errorf("could not look up feed %d: %w", feedID, err)
	}
	t, ok := f.LastUpdatedTime()
	return t, ok, nil
}

// RecordSuccessfulUpdate inserts every new entry (skipping duplicates on
// (feed_id, entry_id), never updating an existing row — invariant #3: the
// first-seen version wins) and advances last_updated, in one transaction.
// Either the whole cycle's result becomes visible or none of it does.
func (s *Store) RecordSuccessfulUpdate(ctx context.Context, feedID int64, now time.Time, entries []NewEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	retrieved := now.Unix()
	for _, e := range entries {
		var published sql.NullInt64
		if e.Published != nil {
			published = sql.NullInt64{Int64: e.Published.Unix(), Valid: true}
		}
		var author sql.NullString
		if e.Author != "" {
			author = sql.NullString{String: e.Author, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (feed_id, retrieved, entry_id, title, description, url, author, published)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (feed_id, entry_id) DO NOTHING`,
			feedID, retrieved, e.EntryID, e.Title, e.Description, e.URL, author, published)
		if err != nil {
			return fmt.Errorf("could not insert entry %q: %w", e.EntryID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE feeds SET last_updated = ? WHERE id = ?`, now.Unix(), feedID); err != nil {
		return fmt.Errorf("could not advance last_updated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// ListEntries returns a feed's entries newest-first by retrieved, ties
// broken by insertion order (surrogate key descending).
func (s *Store) ListEntries(ctx context.Context, feedID int64, limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, feed_id, retrieved, entry_id, title, description, url, author, published
		FROM entries
		WHERE feed_id = ?
		ORDER BY retrieved DESC, id DESC
		LIMIT ?`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list entries for feed %d: %w", feedID, err)
	}
	return entries, nil
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("not found")

// GetFeedByName looks up a feed's persisted row by its configured name.
func (s *Store) GetFeedByName(ctx context.Context, name string) (Feed, error) {
	var f Feed
	err := s.db.GetContext(ctx, &f, `SELECT id, name, last_updated FROM feeds WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return Feed{}, ErrNotFound
	}
	if err != nil {
		return Feed{}, fmt.Errorf("could not look up feed %q: %w", name, err)
	}
	return f, nil
}
