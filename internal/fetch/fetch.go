// Package fetch performs conditional HTTP GETs against feed origins using
// stored ETag / Last-Modified validators, so unchanged feeds cost one
// round-trip and zero parsing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Error classifies a failed fetch. Transient failures (timeouts, network
// errors, 5xx) are eligible for retry on the next scheduled run; permanent
// ones (other 4xx, malformed URLs, oversized bodies) mark the feed unhealthy
// for this run but never remove it from the registry.
type Error struct {
	URL       string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of a conditional fetch. When NotModified is set the
// body is empty and the cycle short-circuits. Validators fall back to the
// previously stored values when the origin omits them, as some hosts return
// an ETag only on full responses.
type Result struct {
	NotModified  bool
	Body         []byte
	ETag         string
	LastModified string
}

// Fetcher issues conditional requests with a per-fetch timeout and a byte
// ceiling on response bodies.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

const userAgent = "podcastdir-ingest/1.0"

// New returns a Fetcher. The embedded client follows redirects and reuses
// connections across feeds from the same origin.
func New(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		maxBytes: maxBytes,
	}
}

// Fetch requests feedURL, sending If-None-Match / If-Modified-Since when the
// stored validators are non-empty.
func (f *Fetcher) Fetch(ctx context.Context, feedURL, etag, lastModified string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &Error{URL: feedURL, Transient: false, Err: err}
	}
	// A defective URL that still parses (htp://, missing host) would fail
	// inside Do and look like a network error; it never heals, so reject it
	// as permanent up front.
	if (req.URL.Scheme != "http" && req.URL.Scheme != "https") || req.URL.Host == "" {
		return nil, &Error{URL: feedURL, Transient: false, Err: fmt.Errorf("unsupported feed URL %q", feedURL)}
	}
	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts, DNS failures, resets: all worth another try next cycle.
		return nil, &Error{URL: feedURL, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	newETag := resp.Header.Get("ETag")
	if newETag == "" {
		newETag = etag
	}
	newLastModified := resp.Header.Get("Last-Modified")
	if newLastModified == "" {
		newLastModified = lastModified
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{NotModified: true, ETag: newETag, LastModified: newLastModified}, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{URL: feedURL, Transient: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{URL: feedURL, Transient: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &Error{URL: feedURL, Transient: true, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &Error{URL: feedURL, Transient: false, Err: fmt.Errorf("response exceeds %d bytes", f.maxBytes)}
	}

	return &Result{Body: body, ETag: newETag, LastModified: newLastModified}, nil
}
