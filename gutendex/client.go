// Package gutendex provides HTTP clients for the Gutendex book metadata API
// and for the plain-text hosts its format URLs point at.
package gutendex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ddevcap/storia/config"
)

var (
	// ErrNotFound is returned when Gutendex answers 404 for a book.
	ErrNotFound = errors.New("gutendex: book not found")
	// ErrMalformedResponse is returned when a 2xx body does not decode into
	// the expected shape or misses required fields.
	ErrMalformedResponse = errors.New("gutendex: malformed response")
)

// StatusError reports a non-2xx answer from Gutendex.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gutendex: %s responded with status %d", e.URL, e.Code)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to Gutendex. A single Client is created at startup and
// shared across all request handlers.
type Client struct {
	baseURL    string
	jsonClient *http.Client // bounded timeout, for metadata calls
	textClient *http.Client // per-call deadlines, for HEAD and ranged GETs on text hosts
	limiter    *rate.Limiter
	health     *HealthChecker
}

func NewClient(cfg config.Config) *Client {
	// JSON transport: short timeouts for API calls.
	jsonTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConnsPerHost:   10,
	}
	// Text transport: the paginator sets a deadline on every call (5s HEAD,
	// 10s sample, 15s range), so the client itself has no total timeout.
	// Compression is disabled so byte ranges refer to the stored file.
	textTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 20,
		DisableCompression:  true,
	}

	timeout := cfg.GutendexTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.GutendexURL, "/"),
		jsonClient: &http.Client{
			Transport: jsonTransport,
			Timeout:   timeout,
		},
		textClient: &http.Client{
			Transport: textTransport,
		},
	}
	if cfg.GutendexRateLimit > 0 {
		burst := int(cfg.GutendexRateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.GutendexRateLimit), burst)
	}
	return c
}

// TextClient returns the HTTP client used for fetching book text.
func (c *Client) TextClient() *http.Client { return c.textClient }

// SetHealthChecker attaches a health checker. Must be called before the
// client is used to serve requests.
func (c *Client) SetHealthChecker(hc *HealthChecker) {
	c.health = hc
}

// Available reports whether Gutendex is considered reachable. Without a
// health checker it is always assumed available.
func (c *Client) Available() bool {
	if c.health == nil {
		return true
	}
	return c.health.IsAvailable()
}

// HealthStatus returns the health checker's snapshot. ok is false when no
// checker is attached.
func (c *Client) HealthStatus() (status HealthStatus, ok bool) {
	if c.health == nil {
		return HealthStatus{}, false
	}
	return c.health.Status(), true
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("gutendex: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Storia/1.0")
	return req, nil
}

// getJSON performs a GET against Gutendex and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gutendex: rate limiter: %w", err)
		}
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(op, "error").Inc()
		if c.health != nil {
			c.health.RecordRequestFailure()
		}
		return fmt.Errorf("gutendex: request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	upstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamRequests.WithLabelValues(op, "status").Inc()
		if resp.StatusCode >= 500 && c.health != nil {
			c.health.RecordRequestFailure()
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, URL: req.URL.Path}
	}
	if c.health != nil {
		c.health.RecordRequestSuccess()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		upstreamRequests.WithLabelValues(op, "malformed").Inc()
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	upstreamRequests.WithLabelValues(op, "ok").Inc()
	return nil
}
