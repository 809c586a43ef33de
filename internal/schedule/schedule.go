// Package schedule implements C7: one goroutine per enabled feed, each
// running its own jittered-start, interval-driven update-cycle loop, plus a
// single-slot trigger mailbox for on-demand updates. There is no shared
// mutable state between feed tasks; the store is the only cross-feed
// synchronization point, and it enforces its own guarantees transactionally.
package schedule

import (
	"context"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedgen/feedgen/internal/config"
	"github.com/feedgen/feedgen/internal/errs"
	"github.com/feedgen/feedgen/internal/extract"
	"github.com/feedgen/feedgen/internal/fetch"
	"github.com/feedgen/feedgen/internal/store"
)

// Task owns one feed's update-cycle loop.
type Task struct {
	name      string
	feedID    int64
	cfg       *config.Cache
	store     *store.Store
	fetcher   *fetch.Fetcher
	extractor extract.Extractor
	logger    *slog.Logger

	trigger chan struct{} // single-slot mailbox, overwrite on send
}

// Scheduler owns every feed's Task and their lifecycle.
type Scheduler struct {
	cfg    *config.Cache
	store  *store.Store
	tasks  map[string]*Task
	logger *slog.Logger

	wg sync.WaitGroup
}

// New builds a Scheduler for the given feeds. extractors holds one built
// extract.Extractor per feed name (built ahead of time by the caller, since
// building one may fail and the caller decides how to report that before
// the scheduler starts). Disabled feeds get no task: they remain queryable
// through the feed surface but never run an update cycle.
func New(cfg *config.Cache, st *store.Store, fetcher *fetch.Fetcher, extractors map[string]extract.Extractor, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{cfg: cfg, store: st, tasks: make(map[string]*Task), logger: logger}

	for name, feedCfg := range cfg.Get().Feeds {
		if !feedCfg.IsEnabled() {
			continue
		}
		extractor, ok := extractors[name]
		if !ok {
			continue
		}
		feedID, err := st.UpsertFeedByName(context.Background(), name)
		if err != nil {
			return nil, errs.New(errs.KindStore, name, err)
		}
		s.tasks[name] = &Task{
			name:      name,
			feedID:    feedID,
			cfg:       cfg,
			store:     st,
			fetcher:   fetcher,
			extractor: extractor,
			logger:    logger.With("feed", name),
			trigger:   make(chan struct{}, 1),
		}
	}
	return s, nil
}

// Run starts every task's loop and blocks until ctx is cancelled, then
// waits for all in-flight cycles to finish or be dropped before returning.
// It matches the shape oklog/run.Group expects of an actor's execute func.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t *Task) {
			defer s.wg.Done()
			t.run(ctx)
		}(t)
	}
	<-ctx.Done()
	s.wg.Wait()
	return nil
}

// Trigger delivers a single on-demand wake signal to the named feed's task.
// It reports whether the feed is known and, if known, whether it is
// enabled — the HTTP handler maps these to 202/404/409 per spec.md §6.
func (s *Scheduler) Trigger(name string) (known, enabled bool) {
	feedCfg, configured := s.cfg.Get().Feeds[name]
	if !configured {
		return false, false
	}
	if !feedCfg.IsEnabled() {
		return true, false
	}
	t, hasTask := s.tasks[name]
	if !hasTask {
		return true, false
	}
	select {
	case t.trigger <- struct{}{}:
	default:
		// A trigger is already pending; coalesce per spec.md §4.6.
	}
	return true, true
}

func (t *Task) run(ctx context.Context) {
	sleep := t.initialSleep()
	t.logger.Debug("scheduled initial sleep", "delay", sleep)

	select {
	case <-ctx.Done():
		return
	case <-time.After(sleep):
	case <-t.trigger:
	}

	for {
		if ctx.Err() != nil {
			return
		}
		t.runCycle(ctx)

		wait := t.untilDue(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		case <-t.trigger:
		}
	}
}

// initialSleep picks a uniformly random duration in
// [0, max-initial-fetch-sleep], avoiding a thundering herd against shared
// origins when many feeds start together.
func (t *Task) initialSleep() time.Duration {
	max := t.cfg.Get().MaxInitialFetchSleep.Std()
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// untilDue computes how long to sleep before the next tick is due: the gap
// between now and last_updated+interval, floored at zero.
func (t *Task) untilDue(ctx context.Context) time.Duration {
	cfg := t.cfg.Get()
	feedCfg := cfg.Feeds[t.name]
	interval := cfg.FetchIntervalFor(feedCfg).Std()

	lastUpdated, ok, err := t.store.GetLastUpdated(ctx, t.feedID)
	if err != nil || !ok {
		return interval
	}
	nextDue := lastUpdated.Add(interval)
	wait := time.Until(nextDue)
	if wait < 0 {
		return 0
	}
	return wait
}

// runCycle performs one fetch/extract/persist cycle, never leaving partial
// entries visible: either the store transaction commits or nothing is
// written, regardless of where in the cycle an error or cancellation hits.
func (t *Task) runCycle(ctx context.Context) {
	runID := uuid.NewString()
	logger := t.logger.With("run_id", runID)

	cfg := t.cfg.Get()
	feedCfg := cfg.Feeds[t.name]

	body, err := t.fetcher.Fetch(ctx, feedCfg.RequestURL)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return
	}

	sourceURL, err := url.Parse(feedCfg.RequestURL)
	if err != nil {
		logger.Warn("source url is not parseable", "error", err)
		return
	}

	entries, err := t.extractor.Extract(body, sourceURL)
	if err != nil {
		logger.Warn("extraction failed", "error", err)
		return
	}

	now := time.Now().UTC()
	newEntries := make([]store.NewEntry, 0, len(entries))
	for _, e := range entries {
		newEntries = append(newEntries, store.NewEntry{
			EntryID:     e.ID,
			Title:       e.Title,
			Description: e.Description,
			URL:         e.URL,
			Author:      e.Author,
			Published:   e.Published,
		})
	}

	if err := t.store.RecordSuccessfulUpdate(ctx, t.feedID, now, newEntries); err != nil {
		logger.Error("store update failed", "error", err)
		return
	}

	logger.Info("update cycle complete", "entries", len(entries))
}
