// Package cache provides the process-wide TTL store shared by book metadata,
// listings, page estimates, page ranges, pages and generated music.
package cache

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Key prefixes. Callers own collision avoidance within the single namespace.
const (
	PrefixBook       = "book_"
	PrefixBooksList  = "books_list"
	PrefixTotalPages = "total_pages_"
	PrefixPageRange  = "page_range_"
	PrefixPage       = "page_"
	PrefixMusicPage  = "music_page_"
)

// tiers is ordered so that longer prefixes are matched before their own
// prefixes ("page_range_" before "page_", "books_list" before "book_").
var tiers = []string{
	PrefixPageRange,
	PrefixTotalPages,
	PrefixMusicPage,
	PrefixBooksList,
	PrefixBook,
	PrefixPage,
}

// Store is a goroutine-safe TTL keyed store. An entry is only returned while
// unexpired; reads never extend its lifetime.
type Store struct {
	items *ttlcache.Cache[string, any]
	ttl   time.Duration
}

// Options configures a Store.
type Options struct {
	// DefaultTTL is returned by TTL for callers that do not choose their own.
	DefaultTTL time.Duration
	// Capacity bounds the number of entries. 0 means unbounded; when bounded
	// the least recently used entry is evicted first.
	Capacity uint64
}

func New(opts Options) *Store {
	ttlOpts := []ttlcache.Option[string, any]{
		ttlcache.WithTTL[string, any](opts.DefaultTTL),
		ttlcache.WithDisableTouchOnHit[string, any](),
	}
	if opts.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[string, any](opts.Capacity))
	}
	return &Store{
		items: ttlcache.New[string, any](ttlOpts...),
		ttl:   opts.DefaultTTL,
	}
}

// TTL returns the configured default time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Set stores value under key until now+ttl. A non-positive ttl means the
// entry is already expired, so any previous value is removed instead.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		s.items.Delete(key)
		return
	}
	s.items.Set(key, value, ttl)
}

// Get returns the value stored under key if it is present and unexpired.
func (s *Store) Get(key string) (any, bool) {
	item := s.items.Get(key)
	if item == nil || item.IsExpired() {
		CacheMisses.WithLabelValues(tierOf(key)).Inc()
		return nil, false
	}
	CacheHits.WithLabelValues(tierOf(key)).Inc()
	return item.Value(), true
}

// Len returns the number of physically stored entries, which may include
// expired entries not yet swept.
func (s *Store) Len() int {
	return s.items.Len()
}

// Start runs the expired-entry sweep until Stop is called. It blocks, so
// run it in a goroutine. Lazy expiry on Get applies regardless.
func (s *Store) Start() {
	s.items.Start()
}

// Stop ends the sweep started by Start.
func (s *Store) Stop() {
	s.items.Stop()
}

// Lookup is a typed Get. A stored value of another type counts as a miss.
func Lookup[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func tierOf(key string) string {
	for _, p := range tiers {
		if strings.HasPrefix(key, p) {
			return strings.TrimSuffix(p, "_")
		}
	}
	return "other"
}
