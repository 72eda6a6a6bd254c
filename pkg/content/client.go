// Package content fetches exhibition themes, items, and quizzes from the
// museum content service. Reads never fail: a failing primary falls back to
// the secondary base URL, then the last good response, then the bundled dataset.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"docentgo/pkg/config"
	"docentgo/pkg/model"
	"docentgo/pkg/request"
	"docentgo/pkg/store"
	"docentgo/pkg/tracker"
)

const trackerSource = "content"

// FetchError describes a failed read from one content source.
type FetchError struct {
	Path   string
	Source string // "primary", "fallback"
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("content fetch %s (%s): %v", e.Path, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source reports where a response was served from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
	SourceLocal    Source = "local"
)

// Client reads content with graceful degradation.
type Client struct {
	http     *request.Client
	tracker  *tracker.Tracker
	cache    store.CacheStore
	local    *Dataset
	base     string
	fallback string
	timeout  time.Duration
}

// NewClient builds a content client. cache may be nil.
func NewClient(rc *request.Client, cfg config.ContentConfig, cache store.CacheStore, local *Dataset) *Client {
	if local == nil {
		local = DefaultDataset()
	}
	timeout := cfg.FetchTimeout.D()
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		http:     rc,
		tracker:  rc.Tracker(),
		cache:    cache,
		local:    local,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		fallback: strings.TrimRight(cfg.FallbackURL, "/"),
		timeout:  timeout,
	}
}

// GetThemes returns all themes.
func (c *Client) GetThemes(ctx context.Context) []model.Theme {
	data, src, err := c.fetchJSON(ctx, "/api/themes")
	if err == nil {
		if recs := asRecords(data); len(recs) > 0 {
			themes := make([]model.Theme, 0, len(recs))
			for _, raw := range recs {
				themes = append(themes, NormalizeTheme(raw))
			}
			slog.Debug("Themes loaded", "source", src, "count", len(themes))
			return themes
		}
		err = errors.New("no themes in response")
	}
	slog.Warn("DataFetchError: themes unavailable, using local dataset", "base", c.base, "error", err)
	c.tracker.TrackLocalFallback(trackerSource)
	return c.local.themes()
}

// GetItems returns the items of a theme. An explicit null from the service means
// the theme has no items and is not treated as a failure.
func (c *Client) GetItems(ctx context.Context, themeID string) []model.Item {
	path := "/api/items?theme_id=" + url.QueryEscape(themeID)
	data, _, err := c.fetchJSON(ctx, path)
	if err != nil {
		slog.Warn("DataFetchError: items unavailable, using local dataset", "theme", themeID, "error", err)
		c.tracker.TrackLocalFallback(trackerSource)
		return c.local.items(themeID)
	}
	if data == nil {
		slog.Info("Service returned no items", "theme", themeID)
		return []model.Item{}
	}

	recs := asRecords(data)
	items := make([]model.Item, 0, len(recs))
	for i, raw := range recs {
		items = append(items, NormalizeItem(raw, i))
	}
	return items
}

// GetQuizzes returns the quiz of a theme with answers resolved to option text.
func (c *Client) GetQuizzes(ctx context.Context, themeID string) []model.Quiz {
	path := "/api/quizzes?theme_id=" + url.QueryEscape(themeID)
	data, _, err := c.fetchJSON(ctx, path)
	if err != nil {
		slog.Warn("DataFetchError: quizzes unavailable, using local dataset", "theme", themeID, "error", err)
		c.tracker.TrackLocalFallback(trackerSource)
		return c.local.quizzes(themeID)
	}
	if data == nil {
		slog.Info("Service returned no quizzes", "theme", themeID)
		return []model.Quiz{}
	}

	recs := asRecords(data)
	quizzes := make([]model.Quiz, 0, len(recs))
	for i, raw := range recs {
		q := NormalizeQuiz(raw, i)
		if len(q.Options) == 0 {
			slog.Warn("Quiz has no options", "theme", themeID, "index", i, "question", q.Question)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes
}

// GetRecipients returns the prize recipients known to the service, or an empty list.
func (c *Client) GetRecipients(ctx context.Context) []map[string]any {
	data, _, err := c.fetchLive(ctx, "/api/recipient")
	if err != nil {
		slog.Warn("DataFetchError: recipients unavailable", "error", err)
		return []map[string]any{}
	}
	return asRecords(data)
}

// URL joins path onto the primary base URL.
func (c *Client) URL(path string) string {
	return c.base + path
}

// fetchJSON reads path from the live sources, then the cache.
func (c *Client) fetchJSON(ctx context.Context, path string) (any, Source, error) {
	data, src, err := c.fetchLive(ctx, path)
	if err == nil {
		return data, src, nil
	}

	if c.cache != nil {
		if body, ok := c.cache.GetCache(ctx, cacheKey(path)); ok {
			if cached, derr := decode(body); derr == nil {
				slog.Warn("DataFetchError: serving last good response", "path", path, "error", err)
				c.tracker.TrackCacheHit(trackerSource)
				return cached, SourceCache, nil
			}
		}
	}
	return nil, "", err
}

// fetchLive tries the primary and then the fallback base URL.
func (c *Client) fetchLive(ctx context.Context, path string) (any, Source, error) {
	data, err := c.fetchFrom(ctx, c.base, path)
	if err == nil {
		return data, SourcePrimary, nil
	}
	primaryErr := &FetchError{Path: path, Source: string(SourcePrimary), Err: err}

	if c.fallback == "" || c.fallback == c.base {
		return nil, "", primaryErr
	}
	slog.Info("Primary unreachable, trying fallback URL", "url", c.fallback+path)
	data, err = c.fetchFrom(ctx, c.fallback, path)
	if err != nil {
		return nil, "", errors.Join(primaryErr, &FetchError{Path: path, Source: string(SourceFallback), Err: err})
	}
	c.tracker.TrackSecondary(trackerSource)
	return data, SourceFallback, nil
}

func (c *Client) fetchFrom(ctx context.Context, base, path string) (any, error) {
	if base == "" {
		return nil, errors.New("no base url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.http.Get(ctx, base+path, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	data, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON response from %s: %w - response text: %s", base+path, err, truncate(string(body), 1000))
	}

	if c.cache != nil {
		if err := c.cache.SetCache(ctx, cacheKey(path), body); err != nil {
			slog.Warn("Failed to cache content response", "path", path, "error", err)
		}
	}
	return data, nil
}

func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func cacheKey(path string) string {
	return "content:" + path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
