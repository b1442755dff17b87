// Package fetcher provides the pooled HTTP client the crawl loop uses to
// fetch pages and robots.txt bodies. The admission filter itself never
// fetches; callers hand it the robots body as text.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crawlspace/linkgate/internal/errors"
)

// maxBodySize bounds page and robots.txt reads.
const maxBodySize = 10 << 20

// maxRobotsSize follows the 500 KiB cap most crawlers apply.
const maxRobotsSize = 512 << 10

// Config holds configuration for the HTTP client.
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	UserAgent           string
	SkipTLSVerify       bool
	Retry               errors.RetryConfig
}

// DefaultConfig returns optimized defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxIdleConns:        500,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		UserAgent:           "linkgate/1.0",
		SkipTLSVerify:       false,
		Retry:               errors.DefaultRetryConfig(),
	}
}

// Response is a fetched page.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// IsHTML reports whether the response looks like an HTML page.
func (r *Response) IsHTML() bool {
	return strings.Contains(r.ContentType, "text/html") ||
		strings.Contains(r.ContentType, "application/xhtml")
}

// Client is a pooled HTTP client with retry and a per-host robots.txt cache.
type Client struct {
	client    *http.Client
	userAgent string
	retrier   *errors.Retrier

	robotsMu    sync.Mutex
	robotsCache map[string]string
}

// New creates a new client.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		retrier:     errors.NewRetrier(cfg.Retry),
		robotsCache: make(map[string]string),
	}
}

// Get fetches a URL, retrying transient failures.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var resp *Response

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := c.get(ctx, url)
		if err != nil {
			return errors.Categorize(err, url)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Duration:    time.Since(start),
	}, nil
}

// RobotsTxt returns the robots.txt body for a host, fetching it once per
// crawl. A missing or unreadable file yields an empty body, which the filter
// treats as allow-all.
func (c *Client) RobotsTxt(ctx context.Context, scheme, host string) string {
	key := scheme + "://" + host

	c.robotsMu.Lock()
	body, ok := c.robotsCache[key]
	c.robotsMu.Unlock()
	if ok {
		return body
	}

	body = c.fetchRobots(ctx, scheme, host)

	c.robotsMu.Lock()
	c.robotsCache[key] = body
	c.robotsMu.Unlock()
	return body
}

func (c *Client) fetchRobots(ctx context.Context, scheme, host string) string {
	url := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return ""
	}
	return string(body)
}
