package config

import (
	"fmt"
	"log/slog"

	"github.com/feedgen/feedgen/internal/extract"
	"github.com/feedgen/feedgen/internal/luaext"
	"github.com/feedgen/feedgen/internal/xpathext"
)

// BuildExtractor constructs the concrete extractor backend named by e.Kind.
// This is the "tagged variants of one capability" factory spec.md §9
// describes: downstream components only ever see the extract.Extractor
// interface, never which backend produced it.
func BuildExtractor(e ExtractorConfig, logger *slog.Logger) (extract.Extractor, error) {
	switch e.Kind {
	case "xpath":
		return xpathext.New(xpathext.Config{
			Entry:         e.Entry,
			ID:            e.ID,
			Title:         e.Title,
			Description:   e.Description,
			URL:           e.URL,
			Author:        e.Author,
			PubDate:       e.PubDate,
			PubDateFormat: e.PubDateFormat,
		})
	case "lua":
		return luaext.New(luaext.Config{Path: e.Path}, logger)
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", e.Kind)
	}
}
