// Package fetch implements C6: HTTP GET with a configured user agent, a
// bounded body size, and an optional response cache that is transparent to
// every caller above it.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/feedgen/feedgen/internal/errs"
)

const (
	connectTimeout = 30 * time.Second
	totalTimeout   = 300 * time.Second
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// Fetcher performs cached, retried HTTP GETs.
type Fetcher struct {
	client       *http.Client
	cache        responseCache
	userAgent    string
	maxBodyBytes int64
}

// Config configures a Fetcher.
type Config struct {
	UserAgent    string
	MaxBodyBytes int64 // 0 means a sensible default (10 MiB)
	CacheDir     string
	MemoryCacheSize int
}

// New builds a Fetcher. When CacheDir is set, responses are cached on disk;
// otherwise an in-memory LRU of MemoryCacheSize (default 8192, matching the
// capacity original_source's in-memory cache manager uses) serves the same
// transparent-cache role.
func New(cfg Config) (*Fetcher, error) {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	var cache responseCache
	var err error
	if cfg.CacheDir != "" {
		cache, err = newDiskCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("could not set up the disk cache: %w", err)
		}
	} else {
		size := cfg.MemoryCacheSize
		if size <= 0 {
			size = 8192
		}
		cache, err = newMemoryCache(size)
		if err != nil {
			return nil, fmt.Errorf("could not set up the in-memory cache: %w", err)
		}
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		cache:        cache,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: maxBody,
	}, nil
}

// Fetch performs a GET against url, retrying transient failures, and
// returns the body. A cached validator (ETag/Last-Modified) is sent when
// available; a 304 response serves the cached body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	cacheKey := cacheKeyFor(url)
	cached, hasCached := f.cache.Get(cacheKey)

	var body []byte
	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithMaxRetries(maxRetries, retry.WithCappedDuration(retryMaxDelay, backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("could not build request: %w", err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		if hasCached {
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}
			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("could not fetch %q: %w", url, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified && hasCached {
			body = cached.Body
			return nil
		}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("%q returned status %d", url, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%q returned status %d", url, resp.StatusCode)
		}

		limited := io.LimitReader(resp.Body, f.maxBodyBytes+1)
		data, err := io.ReadAll(limited)
		if err != nil {
			return fmt.Errorf("could not read response body for %q: %w", url, err)
		}
		if int64(len(data)) > f.maxBodyBytes {
			return fmt.Errorf("response body for %q exceeds the configured %d byte limit", url, f.maxBodyBytes)
		}

		body = data
		f.cache.Put(cacheKey, cachedResponse{
			Body:         data,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		})
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.KindFetch, url, err)
	}
	return body, nil
}

func cacheKeyFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
