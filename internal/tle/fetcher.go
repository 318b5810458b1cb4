package tle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwcutler/passbot/internal/metrics"
)

const (
	celestrakCatalogURL = "https://celestrak.org/NORAD/elements/gp.php?CATNR=%d&FORMAT=tle"

	// maxBodyBytes bounds a single response. Group files are a few MB.
	maxBodyBytes = 50 << 20
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout time.Duration // per request, default 30s
	// Cache, if set, receives every successful download and serves as a
	// fallback when the source is unreachable.
	Cache  Cache
	MaxAge time.Duration // oldest cached copy accepted as a fallback
	// CatalogURL is a fmt pattern with one %d for the NORAD id.
	CatalogURL string
}

// Fetcher retrieves raw TLE text over HTTP.
type Fetcher struct {
	httpClient *http.Client
	cache      Cache
	maxAge     time.Duration
	catalogURL string
	logger     *slog.Logger
	now        func() time.Time
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CatalogURL == "" {
		cfg.CatalogURL = celestrakCatalogURL
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
		maxAge:     cfg.MaxAge,
		catalogURL: cfg.CatalogURL,
		logger:     logger.With("component", "tle"),
		now:        time.Now,
	}
}

// FetchNORAD downloads the element set for one catalog number.
func (f *Fetcher) FetchNORAD(ctx context.Context, noradID int) ([]byte, error) {
	return f.Fetch(ctx, fmt.Sprintf(f.catalogURL, noradID))
}

// Fetch performs an HTTP GET on url. When the request fails and a cached
// copy younger than MaxAge exists, the cached copy is returned instead.
// Errors wrap ErrInputFetch.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := f.now()
	body, err := f.get(ctx, url)
	metrics.RecordTLEFetch("network", err)
	if err == nil {
		f.logger.Debug("fetched TLE data",
			"url", url,
			"bytes", len(body),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if f.cache != nil {
			if cerr := f.cache.Put(ctx, url, body, start); cerr != nil {
				f.logger.Warn("failed to cache TLE data", "url", url, "error", cerr)
			}
		}
		return body, nil
	}

	if f.cache != nil {
		data, ts, cerr := f.cache.Latest(ctx, url)
		if cerr == nil && (f.maxAge <= 0 || f.now().Sub(ts) <= f.maxAge) {
			metrics.RecordTLEFetch("cache", nil)
			f.logger.Warn("TLE fetch failed, using cached copy",
				"url", url,
				"cached_at", ts.UTC().Format(time.RFC3339),
				"error", err,
			)
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrInputFetch, err)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "passbot")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}
	return body, nil
}
