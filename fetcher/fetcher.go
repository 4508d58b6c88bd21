// Package fetcher retrieves feed documents over HTTP. It applies a timeout,
// a redirect limit, and the request headers feed hosts expect, and returns
// the body as text. What the text means is the caller's business.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrTooManyRedirects is returned when a fetch exceeds the redirect limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Fetcher fetches a URL and returns its body as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Config holds the transport settings for HTTPFetcher.
type Config struct {
	// Timeout bounds a single fetch, redirects included.
	Timeout time.Duration
	// MaxRedirects is the number of redirects followed before giving up.
	MaxRedirects int
	UserAgent    string
	Accept       string
	// RatePerSecond paces outbound requests across all sources. Zero
	// disables pacing.
	RatePerSecond float64
	// MaxBodyBytes caps how much of a response is read. Zero means no cap.
	MaxBodyBytes int64
}

// DefaultConfig returns the transport settings used when none are
// configured.
func DefaultConfig() Config {
	return Config{
		Timeout:      8 * time.Second,
		MaxRedirects: 3,
		UserAgent:    "Mozilla/5.0 (compatible; newswire/1.0; +https://github.com/pevans/newswire)",
		Accept:       "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5",
		MaxBodyBytes: 5 << 20,
	}
}

// HTTPFetcher is the net/http implementation of Fetcher.
type HTTPFetcher struct {
	client  *http.Client
	config  Config
	limiter *rate.Limiter
}

// New creates an HTTPFetcher. A nil client gets a fresh http.Client; the
// client's CheckRedirect and Timeout are replaced either way.
func New(config Config, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	} else {
		c := *client
		client = &c
	}

	maxRedirects := config.MaxRedirects
	client.Timeout = config.Timeout
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}

	f := &HTTPFetcher{
		client: client,
		config: config,
	}
	if config.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), 1)
	}
	return f
}

// Fetch performs a GET and returns the body. Non-2xx responses produce a
// *StatusError; an exhausted redirect budget produces an error wrapping
// ErrTooManyRedirects.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("failed waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	if f.config.Accept != "" {
		req.Header.Set("Accept", f.config.Accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.config.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return string(data), nil
}
