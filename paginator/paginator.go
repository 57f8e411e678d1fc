// Package paginator turns remote plain-text books into fixed-size pages. It
// estimates the page count once per book, downloads one 10-page block per
// ranged request, strips the Project Gutenberg boilerplate and caches the
// result per book, per block and per page.
package paginator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ddevcap/storia/cache"
)

const rangeTimeout = 15 * time.Second

// Placeholder texts returned in place of page content.
const (
	OutOfRangeText  = "Page content not available. The page might be out of range."
	errorTextPrefix = "Error loading page content: "
)

// ErrEmptyBody is returned when a text host answers a range request with no
// content.
var ErrEmptyBody = errors.New("paginator: empty response from text host")

// Page is one rendered page of a book.
type Page struct {
	Content    string
	Index      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
	// Err is set when Content is an error placeholder. Such pages are never
	// cached.
	Err error
}

// Paginator serves book pages from the shared cache, fetching missing blocks
// from the text host. Concurrent misses on the same total or block share one
// upstream request.
type Paginator struct {
	store     *cache.Store
	client    *http.Client
	estimator *Estimator
	ttl       time.Duration
	flights   singleflight.Group
}

// New creates a Paginator that caches for the store's default TTL.
func New(store *cache.Store, client *http.Client) *Paginator {
	return &Paginator{
		store:     store,
		client:    client,
		estimator: NewEstimator(client),
		ttl:       store.TTL(),
	}
}

func totalKey(bookID int) string {
	return cache.PrefixTotalPages + strconv.Itoa(bookID)
}

func rangeKey(bookID, blockStart int) string {
	return cache.PrefixPageRange + strconv.Itoa(bookID) + "_" + strconv.Itoa(blockStart)
}

func pageKey(bookID, page int) string {
	return cache.PrefixPage + strconv.Itoa(bookID) + "_" + strconv.Itoa(page)
}

// BlockStart returns the first page of the block holding page.
func BlockStart(page int) int {
	return page / BlockSize * BlockSize
}

// TotalPages returns the cached or freshly estimated page count of a book.
// Estimation failures are logged and yield DefaultTotalPages, which is cached
// like any other estimate.
func (p *Paginator) TotalPages(ctx context.Context, bookID int, textURL string) int {
	key := totalKey(bookID)
	if n, ok := cache.Lookup[int](p.store, key); ok {
		return n
	}

	v, _, _ := p.flights.Do(key, func() (any, error) {
		if n, ok := cache.Lookup[int](p.store, key); ok {
			return n, nil
		}
		n, err := p.estimator.Estimate(context.WithoutCancel(ctx), textURL)
		if err != nil {
			slog.Warn("paginator: page estimate failed, using default",
				"book_id", bookID, "default", n, "error", err)
		} else {
			slog.Debug("paginator: estimated total pages", "book_id", bookID, "total_pages", n)
		}
		p.store.Set(key, n, p.ttl)
		return n, nil
	})
	return v.(int)
}

// Page returns page index of a book. A negative index is treated as 0. Fetch
// failures are reported through the placeholder content and Page.Err.
func (p *Paginator) Page(ctx context.Context, bookID int, textURL string, index int) Page {
	if index < 0 {
		index = 0
	}
	total := p.TotalPages(ctx, bookID, textURL)
	result := Page{
		Index:      index,
		TotalPages: total,
		HasNext:    index < total-1,
		HasPrev:    index > 0,
	}

	if content, ok := cache.Lookup[string](p.store, pageKey(bookID, index)); ok {
		result.Content = content
		return result
	}

	blockStart := BlockStart(index)
	if pages, ok := cache.Lookup[[]string](p.store, rangeKey(bookID, blockStart)); ok {
		result.Content = pageOf(pages, index-blockStart)
		return result
	}

	endPage := min(blockStart+BlockSize-1, total-1)
	if endPage < blockStart {
		result.Content = OutOfRangeText
		return result
	}

	pages, err := p.loadBlock(ctx, bookID, textURL, blockStart, endPage, total)
	if err != nil {
		slog.Warn("paginator: range fetch failed",
			"book_id", bookID, "block_start", blockStart, "error", err)
		result.Content = errorTextPrefix + err.Error()
		result.Err = err
		return result
	}

	result.Content = pageOf(pages, index-blockStart)
	return result
}

func pageOf(pages []string, i int) string {
	if i < len(pages) {
		return pages[i]
	}
	return OutOfRangeText
}

// loadBlock fetches, cleans, chunks and caches one block. Waiters for the
// same block share a single fetch that outlives any one caller.
func (p *Paginator) loadBlock(ctx context.Context, bookID int, textURL string, blockStart, endPage, total int) ([]string, error) {
	key := rangeKey(bookID, blockStart)
	v, err, _ := p.flights.Do(key, func() (any, error) {
		if pages, ok := cache.Lookup[[]string](p.store, key); ok {
			return pages, nil
		}

		startByte := int64(blockStart) * PageSize
		length := int64(endPage-blockStart+1) * PageSize * 3 / 2
		text, err := p.fetchRange(context.WithoutCancel(ctx), textURL, startByte, length)
		if err != nil {
			return nil, err
		}

		if blockStart == 0 {
			text = StripHeader(text)
		}
		if endPage >= total-BlockSize {
			text = StripFooter(text)
		}
		pages := Chunk(text)

		p.store.Set(key, pages, p.ttl)
		// The over-fetch spills into the next block. Only pages this block
		// owns get their own entries.
		owned := min(len(pages), endPage-blockStart+1)
		for i, content := range pages[:owned] {
			p.store.Set(pageKey(bookID, blockStart+i), content, p.ttl)
		}
		slog.Debug("paginator: cached block",
			"book_id", bookID, "block_start", blockStart, "pages", len(pages))
		return pages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// fetchRange downloads bytes [start, start+length] of the text. Hosts that
// ignore the Range header and answer 200 have the leading bytes skipped here.
func (p *Paginator) fetchRange(ctx context.Context, textURL string, start, length int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rangeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", fmt.Errorf("paginator: building range request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, start+length))

	resp, err := p.client.Do(req)
	if err != nil {
		fetches.WithLabelValues("range", "error").Inc()
		return "", fmt.Errorf("paginator: range request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if _, err := io.CopyN(io.Discard, resp.Body, start); err != nil && !errors.Is(err, io.EOF) {
			fetches.WithLabelValues("range", "error").Inc()
			return "", fmt.Errorf("paginator: skipping to byte %d: %w", start, err)
		}
	default:
		fetches.WithLabelValues("range", "status").Inc()
		return "", fmt.Errorf("paginator: text host responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, length+1))
	if err != nil {
		fetches.WithLabelValues("range", "error").Inc()
		return "", fmt.Errorf("paginator: reading range: %w", err)
	}
	if len(body) == 0 {
		fetches.WithLabelValues("range", "empty").Inc()
		return "", ErrEmptyBody
	}
	fetches.WithLabelValues("range", "ok").Inc()
	fetchedBytes.Add(float64(len(body)))
	return string(body), nil
}
