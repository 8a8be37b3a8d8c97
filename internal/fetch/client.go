// internal/fetch/client.go
package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/openshelf/bookscraper/pkg/types"
)

// Fetcher retrieves a page body for extraction.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, kind types.PageKind) (*types.RawPage, error)
}

// Config defines configuration options for the HTTP fetcher.
type Config struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgents    []string
	Headers       map[string]string
	RateLimit     float64 // requests per second
	RateBurst     int
}

// Client is a polite HTTP fetcher: rate-limited, retrying with backoff, and
// rotating user agents across requests.
type Client struct {
	httpClient    *http.Client
	userAgents    []string
	currentUA     int
	uaMutex       sync.Mutex
	rateLimiter   *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	headers       map[string]string
	log           *logrus.Logger
}

// NewClient creates an HTTP fetcher with the specified configuration.
func NewClient(config Config, log *logrus.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = defaultUserAgents()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		httpClient:    httpClient,
		userAgents:    config.UserAgents,
		rateLimiter:   rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		headers:       config.Headers,
		log:           log,
	}
}

// Fetch performs a GET with retry logic and returns the page body. Sitemap
// payloads are returned as delivered (possibly gzip at rest); HTML pages are
// decompressed.
func (c *Client) Fetch(ctx context.Context, pageURL string, kind types.PageKind) (*types.RawPage, error) {
	if _, err := url.Parse(pageURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setRequestHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w",
				attempt+1, c.retryAttempts+1, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < c.retryAttempts {
				c.waitForRetry(ctx, attempt)
				continue
			}
			break
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return c.readPage(pageURL, kind, resp)
		}

		resp.Body.Close()
		lastErr = &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        pageURL,
			Attempt:    attempt + 1,
		}
		if !retryableStatus(resp.StatusCode) {
			break
		}
		if attempt < c.retryAttempts {
			c.log.WithFields(logrus.Fields{
				"url":     pageURL,
				"status":  resp.StatusCode,
				"attempt": attempt + 1,
			}).Warn("retrying after error status")
			c.waitForRetry(ctx, attempt)
		}
	}

	return nil, lastErr
}

// readPage drains the response into a RawPage, recording the post-redirect
// URL and decompressing HTML bodies served with gzip content encoding.
// Sitemap bodies stay raw so the parser can sniff gzip-at-rest itself.
func (c *Client) readPage(pageURL string, kind types.PageKind, resp *http.Response) (*types.RawPage, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if kind != types.PageSitemap && strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	page := &types.RawPage{
		URL:  pageURL,
		Kind: kind,
		Body: body,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}
	return page, nil
}

// setRequestHeaders configures request headers including user agent rotation.
func (c *Client) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

// nextUserAgent returns the next user agent in rotation.
func (c *Client) nextUserAgent() string {
	c.uaMutex.Lock()
	defer c.uaMutex.Unlock()

	ua := c.userAgents[c.currentUA]
	c.currentUA = (c.currentUA + 1) % len(c.userAgents)
	return ua
}

// waitForRetry implements exponential backoff with jitter.
func (c *Client) waitForRetry(ctx context.Context, attempt int) {
	backoff := c.retryDelay * time.Duration(1<<uint(attempt))
	delay := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// retryableStatus determines if a status code warrants a retry.
func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// HTTPError is a non-2xx response with its request context.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Attempt    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s, attempt: %d)",
		e.StatusCode, e.Status, e.URL, e.Attempt)
}

// KindForURL classifies a frontier URL by its path shape so the fetcher can
// stamp the right page kind before extraction.
func KindForURL(pageURL string) types.PageKind {
	u, err := url.Parse(pageURL)
	if err != nil {
		return types.PageKind("")
	}
	path := u.Path
	switch {
	case strings.HasPrefix(path, "/book/show/"):
		return types.PageBook
	case strings.HasPrefix(path, "/author/show/"):
		return types.PageAuthor
	case strings.HasPrefix(path, "/user/show/"):
		return types.PageProfile
	case strings.HasPrefix(path, "/review/list/"):
		return types.PageReviewList
	case strings.HasSuffix(path, ".xml"), strings.HasSuffix(path, ".xml.gz"):
		return types.PageSitemap
	}
	return types.PageKind("")
}

// defaultUserAgents returns a set of realistic user agent strings.
func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	}
}
