// Package metadata fetches display metadata for music links.
//
// Lookups are best effort. Providers with an oEmbed endpoint are queried
// with a fixed timeout and successful answers are cached in memory, keyed by
// the lower-cased canonical URL. When the provider has no endpoint, the
// fetch fails or the fetcher is disabled, Resolve falls back to the title
// inferred from the URL itself.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/afterflow/internal/links"
)

// ErrNoEndpoint means the provider publishes no oEmbed endpoint.
var ErrNoEndpoint = errors.New("provider has no oembed endpoint")

// maxResponseBytes caps how much of an oEmbed response is read.
const maxResponseBytes = 1 << 20

// Defaults used when Config leaves a field zero.
const (
	DefaultTimeout   = 4 * time.Second
	DefaultCacheSize = 512
	DefaultUserAgent = "Afterflow/1.0 (+https://afterflow.app)"
)

// Source records where a Metadata value came from.
type Source string

const (
	SourceOEmbed   Source = "oembed"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// Metadata is what a link preview shows.
type Metadata struct {
	Title           string `json:"title,omitempty"`
	AuthorName      string `json:"author_name,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Source          Source `json:"source"`
}

// Config tunes a Fetcher.
type Config struct {
	Timeout   time.Duration
	CacheSize int
	UserAgent string
}

// EndpointFunc builds the oEmbed request URL for a classified link.
type EndpointFunc func(links.Classification) (string, bool)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithEndpoint replaces the oEmbed endpoint lookup.
func WithEndpoint(fn EndpointFunc) Option {
	return func(f *Fetcher) { f.endpoint = fn }
}

// Fetcher resolves link metadata. It is safe for concurrent use. A nil
// *Fetcher is valid and only ever returns fallback titles.
type Fetcher struct {
	client    *http.Client
	cache     *lru.Cache[string, Metadata]
	group     singleflight.Group
	endpoint  EndpointFunc
	timeout   time.Duration
	userAgent string
}

// New creates a Fetcher.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	cache, err := lru.New[string, Metadata](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	f := &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		cache:     cache,
		endpoint:  links.OEmbedEndpoint,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func cacheKey(c links.Classification) string {
	return strings.ToLower(c.CanonicalURL)
}

// Fetch queries the provider's oEmbed endpoint. Concurrent calls for the
// same link share one request.
func (f *Fetcher) Fetch(ctx context.Context, c links.Classification) (Metadata, error) {
	if f == nil {
		return Metadata{}, ErrNoEndpoint
	}

	key := cacheKey(c)
	if md, ok := f.cache.Get(key); ok {
		return md, nil
	}

	endpoint, ok := f.endpoint(c)
	if !ok {
		return Metadata{}, ErrNoEndpoint
	}

	// The shared request outlives any one caller; fetch bounds it with the
	// fixed timeout.
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		md, err := f.fetch(shared, endpoint)
		if err != nil {
			return Metadata{}, err
		}
		f.cache.Add(key, md)
		return md, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Metadata{}, res.Err
		}
		return res.Val.(Metadata), nil
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	}
}

// oembedResponse is the subset of the oEmbed response we use. Duration is
// not part of oEmbed proper but some providers send it.
type oembedResponse struct {
	Title        string   `json:"title"`
	AuthorName   string   `json:"author_name"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Duration     *float64 `json:"duration"`
}

func (f *Fetcher) fetch(ctx context.Context, endpoint string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build oembed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, fmt.Errorf("oembed request: unexpected status %d", resp.StatusCode)
	}

	var body oembedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return Metadata{}, fmt.Errorf("decode oembed response: %w", err)
	}

	md := Metadata{
		Title:        strings.TrimSpace(body.Title),
		AuthorName:   strings.TrimSpace(body.AuthorName),
		ThumbnailURL: body.ThumbnailURL,
		Source:       SourceOEmbed,
	}
	if body.Duration != nil && *body.Duration > 0 {
		md.DurationSeconds = int(math.Round(*body.Duration))
	}
	return md, nil
}

// Resolve returns the best metadata available for c. It never fails: when
// the fetch is unavailable or errors, the title is inferred from the URL,
// and when that is impossible too the result has Source "none".
func (f *Fetcher) Resolve(ctx context.Context, c links.Classification) Metadata {
	md, err := f.Fetch(ctx, c)
	if err == nil && md.Title != "" {
		return md
	}
	if err != nil && !errors.Is(err, ErrNoEndpoint) {
		slog.Debug("oembed fetch failed, using fallback title",
			"provider", string(c.Provider),
			"url", c.CanonicalURL,
			"error", err,
		)
	}

	if title, ok := links.FallbackTitle(c); ok {
		md.Title = title
		md.Source = SourceFallback
		return md
	}
	if md.Source == "" {
		md.Source = SourceNone
	}
	return md
}

// CacheLen reports how many links are cached.
func (f *Fetcher) CacheLen() int {
	if f == nil {
		return 0
	}
	return f.cache.Len()
}
