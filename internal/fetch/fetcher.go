// Package fetch retrieves official source pages with an optional content cache.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/travelsaas/ratescrape/internal/cache"
	"github.com/travelsaas/ratescrape/internal/engine"
	"github.com/travelsaas/ratescrape/internal/ratelimit"
)

const (
	DefaultUserAgent = "TravelSaaS-Scraper/1.0 (+https://github.com/travelsaas/ratescrape; contact: dev@travelsaas.local)"
	AcceptHTML       = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	AcceptJSON       = "application/json"
	DefaultMaxAge    = 12 * time.Hour
	maxRedirects     = 10
)

// Options configure a Fetcher.
type Options struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	Proxy     string

	// Cache stores page bodies. Nil disables caching.
	Cache cache.Cache
	// MaxAge is the default freshness window for cached pages.
	MaxAge time.Duration
	// Force bypasses cache reads for every request (writes still happen).
	Force bool

	Limiter ratelimit.RateLimiter
}

// Request describes a single page fetch.
type Request struct {
	URL     string
	Headers map[string]string
	// Force skips the cache read for this request.
	Force bool
	// NoCache neither reads nor writes the cache.
	NoCache bool
	// MaxAge overrides the default freshness window.
	MaxAge time.Duration
}

// Response is an uncached HTTP exchange used by stateful flows.
type Response struct {
	URL        string
	StatusCode int
	Body       string
	Header     http.Header
	Cookies    []*http.Cookie
}

// Stats counts fetcher activity.
type Stats struct {
	Requests  int64
	CacheHits int64
}

// Fetcher issues sequential HTTP requests to the official sources.
type Fetcher struct {
	client  *resty.Client
	opts    Options
	limiter ratelimit.RateLimiter

	requests  atomic.Int64
	cacheHits atomic.Int64
}

// New creates a Fetcher. Cookies are never stored between requests; flows
// that need them pass them explicitly.
func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}

	client := resty.New().
		SetCookieJar(nil).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", AcceptHTML)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}

	return &Fetcher{client: client, opts: opts, limiter: opts.Limiter}
}

// Fetch returns the decoded body of req.URL, serving it from the cache when a
// fresh entry exists. Non-success responses become fetch errors.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	useCache := f.opts.Cache != nil && !req.NoCache
	key := cache.KeyFromURL(req.URL)
	maxAge := req.MaxAge
	if maxAge <= 0 {
		maxAge = f.opts.MaxAge
	}

	if useCache && !req.Force && !f.opts.Force {
		body, ok, err := f.opts.Cache.Get(key, maxAge)
		if err != nil {
			log.Warn().Err(err).Str("url", req.URL).Msg("Cache read failed, fetching from network")
		} else if ok {
			f.cacheHits.Add(1)
			log.Debug().Str("url", req.URL).Msg("Serving page from cache")
			return string(body), nil
		}
	}

	resp, err := f.do(ctx, http.MethodGet, req.URL, AcceptHTML, req.Headers, nil, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Body) == "" {
		return "", engine.NewEngineError(engine.ErrCodeFetch, fmt.Sprintf("Empty response from %s", req.URL), nil).
			WithDetail("url", req.URL).
			WithDetail("status", resp.StatusCode)
	}

	if useCache {
		if err := f.opts.Cache.Set(key, []byte(resp.Body)); err != nil {
			log.Warn().Err(err).Str("url", req.URL).Msg("Cache write failed")
		}
	}
	return resp.Body, nil
}

// Page fetches a URL with default request settings.
func (f *Fetcher) Page(ctx context.Context, rawURL string) (string, error) {
	return f.Fetch(ctx, Request{URL: rawURL})
}

// Document fetches a page and parses it.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := f.Page(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// FetchJSON decodes a JSON endpoint into out. Responses are never cached.
func (f *Fetcher) FetchJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := f.do(ctx, http.MethodGet, req.URL, AcceptJSON, req.Headers, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
		return engine.NewEngineError(engine.ErrCodeFetch, fmt.Sprintf("Malformed JSON from %s", req.URL), err).
			WithDetail("url", req.URL).
			WithDetail("status", resp.StatusCode)
	}
	return nil
}

// Get performs an uncached GET and returns the cookies set by the server.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, AcceptHTML, headers, nil, nil)
}

// PostForm submits an urlencoded form with the given cookies.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values, cookies []*http.Cookie, headers map[string]string) (*Response, error) {
	return f.do(ctx, http.MethodPost, rawURL, AcceptHTML, headers, form, cookies)
}

// Stats returns request and cache-hit counters.
func (f *Fetcher) Stats() Stats {
	return Stats{Requests: f.requests.Load(), CacheHits: f.cacheHits.Load()}
}

func (f *Fetcher) do(ctx context.Context, method, rawURL, accept string, headers map[string]string, form url.Values, cookies []*http.Cookie) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, engine.NewFetchError(rawURL, 0, err)
		}
	}

	r := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetHeaders(headers)
	if len(cookies) > 0 {
		r.SetCookies(cookies)
	}
	if form != nil {
		r.SetFormDataFromValues(form)
	}

	start := time.Now()
	f.requests.Add(1)
	resp, err := r.Execute(method, rawURL)
	if err != nil {
		return nil, engine.NewFetchError(rawURL, 0, err)
	}

	log.Debug().
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("HTTP request completed")

	if !resp.IsSuccess() {
		return nil, engine.NewFetchError(rawURL, resp.StatusCode(), nil)
	}

	body, err := decodeBody(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, engine.NewFetchError(rawURL, resp.StatusCode(), err)
	}

	final := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		final = resp.RawResponse.Request.URL.String()
	}

	return &Response{
		URL:        final,
		StatusCode: resp.StatusCode(),
		Body:       body,
		Header:     resp.Header(),
		Cookies:    resp.Cookies(),
	}, nil
}

// decodeBody converts the response to UTF-8 based on the declared or sniffed
// charset.
func decodeBody(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}
