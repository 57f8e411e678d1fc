package paginator

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// PageSize is the soft page length in characters.
	PageSize = 2500
	// BlockSize is the number of pages fetched and cached together.
	BlockSize = 10
	// DefaultTotalPages is used when a book's length cannot be estimated.
	DefaultTotalPages = 100

	headTimeout   = 5 * time.Second
	sampleTimeout = 10 * time.Second
	sampleBytes   = 10000
	// Line count assumed when the sample response does not reveal the size.
	fallbackLines = 5000
)

var contentRangeTotal = regexp.MustCompile(`bytes 0-\d+/(\d+)`)

// Estimator guesses how many pages a remote text has without downloading it.
type Estimator struct {
	client *http.Client
}

func NewEstimator(client *http.Client) *Estimator {
	return &Estimator{client: client}
}

// Estimate returns the estimated page count of the text at textURL, never
// less than 1. On failure it returns DefaultTotalPages together with the error.
func (e *Estimator) Estimate(ctx context.Context, textURL string) (int, error) {
	length, err := e.contentLength(ctx, textURL)
	if err != nil {
		fetches.WithLabelValues("head", "error").Inc()
		return DefaultTotalPages, err
	}
	fetches.WithLabelValues("head", "ok").Inc()
	if length > 0 {
		return clampPages(int(math.Ceil(float64(length) / PageSize))), nil
	}

	pages, err := e.fromSample(ctx, textURL)
	if err != nil {
		fetches.WithLabelValues("sample", "error").Inc()
		return DefaultTotalPages, err
	}
	fetches.WithLabelValues("sample", "ok").Inc()
	return pages, nil
}

func (e *Estimator) contentLength(ctx context.Context, textURL string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, textURL, nil)
	if err != nil {
		return 0, fmt.Errorf("paginator: building HEAD request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("paginator: HEAD %s: %w", textURL, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("paginator: HEAD %s: status %d", textURL, resp.StatusCode)
	}
	return resp.ContentLength, nil
}

// fromSample reads the first 10 KB and extrapolates from the average line
// length and, when the host reports it, the total size in Content-Range.
func (e *Estimator) fromSample(ctx context.Context, textURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return 0, fmt.Errorf("paginator: building sample request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Range", "bytes=0-"+strconv.Itoa(sampleBytes))

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("paginator: sample %s: %w", textURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("paginator: sample %s: status %d", textURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, sampleBytes+1))
	if err != nil {
		return 0, fmt.Errorf("paginator: reading sample: %w", err)
	}

	sample := string(body)
	lines := strings.Count(sample, "\n") + 1
	avg := float64(utf8.RuneCountInString(sample)) / float64(lines)
	if avg == 0 {
		return 1, nil
	}

	totalLines := float64(fallbackLines)
	if m := contentRangeTotal.FindStringSubmatch(resp.Header.Get("Content-Range")); m != nil {
		if totalBytes, err := strconv.ParseInt(m[1], 10, 64); err == nil && totalBytes > 0 {
			totalLines = math.Ceil(float64(totalBytes) / avg)
		}
	}

	return clampPages(int(math.Ceil(totalLines * avg / PageSize))), nil
}

func clampPages(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
