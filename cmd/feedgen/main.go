// Command feedgen runs the scrape-extract-store-serve pipeline: load
// configuration, open the store, build each feed's extractor, then run the
// scheduler and the HTTP server side by side until asked to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/run"

	"github.com/feedgen/feedgen/internal/api"
	feedcli "github.com/feedgen/feedgen/internal/cli"
	"github.com/feedgen/feedgen/internal/config"
	"github.com/feedgen/feedgen/internal/extract"
	"github.com/feedgen/feedgen/internal/fetch"
	"github.com/feedgen/feedgen/internal/feedsurface"
	"github.com/feedgen/feedgen/internal/logging"
	"github.com/feedgen/feedgen/internal/schedule"
	"github.com/feedgen/feedgen/internal/store"
)

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runApp() error {
	args, err := feedcli.Parse()
	if err != nil {
		return err
	}
	if args == nil {
		return nil // --help or --version already handled
	}

	logger := logging.New(args.Verbose)
	slog.SetDefault(logger)

	cfgCache, err := config.NewCache(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	cfg := cfgCache.Get()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer st.Close()

	fetcher, err := fetch.New(fetch.Config{
		UserAgent: "feedgen/" + feedcli.GetVersion(),
		CacheDir:  cfg.CacheDir,
	})
	if err != nil {
		return fmt.Errorf("could not build fetcher: %w", err)
	}

	extractors := make(map[string]extract.Extractor, len(cfg.Feeds))
	for name, feedCfg := range cfg.Feeds {
		if !feedCfg.IsEnabled() {
			continue
		}
		ex, err := config.BuildExtractor(feedCfg.Extractor, logger.With("feed", name))
		if err != nil {
			return fmt.Errorf("could not build extractor for feed %q: %w", name, err)
		}
		extractors[name] = ex
	}

	for name := range cfg.Feeds {
		if _, err := st.UpsertFeedByName(context.Background(), name); err != nil {
			return fmt.Errorf("could not register feed %q: %w", name, err)
		}
	}

	scheduler, err := schedule.New(cfgCache, st, fetcher, extractors, logger)
	if err != nil {
		return fmt.Errorf("could not build scheduler: %w", err)
	}

	surface := feedsurface.New(st, cfgCache)
	server := api.New(surface, scheduler, logger)

	var g run.Group

	ctx, cancel := context.WithCancel(context.Background())
	g.Add(func() error {
		return scheduler.Run(ctx)
	}, func(error) {
		cancel()
	})

	g.Add(func() error {
		return server.Run(ctx, cfg.BindAddr)
	}, func(error) {
		cancel()
	})

	sigCtx, sigCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	g.Add(func() error {
		<-sigCtx.Done()
		return nil
	}, func(error) {
		sigCancel()
	})

	logger.Info("starting", "bind_addr", cfg.BindAddr, "feeds", len(cfg.Feeds), "version", feedcli.GetVersion())
	return g.Run()
}
