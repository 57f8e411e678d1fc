package ambiance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddevcap/storia/cache"
)

// CachedAudio is generated music kept for a page.
type CachedAudio struct {
	Audio          []byte `json:"audio"`
	ContentType    string `json:"content_type"`
	Mood           string `json:"mood"`
	AmbiancePrompt string `json:"ambiance_prompt"`
}

// AudioCache stores generated music by key.
type AudioCache interface {
	Get(ctx context.Context, key string) (CachedAudio, bool, error)
	Set(ctx context.Context, key string, a CachedAudio, ttl time.Duration) error
}

// MusicCacheKey returns the cache key for a page's music. The book id is
// part of the key when known.
func MusicCacheKey(bookID *int, page int) string {
	if bookID == nil {
		return cache.PrefixMusicPage + strconv.Itoa(page)
	}
	return cache.PrefixMusicPage + strconv.Itoa(*bookID) + "_" + strconv.Itoa(page)
}

// MemoryAudioCache keeps music in the shared in-process store.
type MemoryAudioCache struct {
	store *cache.Store
}

func NewMemoryAudioCache(store *cache.Store) *MemoryAudioCache {
	return &MemoryAudioCache{store: store}
}

func (m *MemoryAudioCache) Get(_ context.Context, key string) (CachedAudio, bool, error) {
	a, ok := cache.Lookup[CachedAudio](m.store, key)
	return a, ok, nil
}

func (m *MemoryAudioCache) Set(_ context.Context, key string, a CachedAudio, ttl time.Duration) error {
	m.store.Set(key, a, ttl)
	return nil
}

// RedisAudioCache keeps music in Redis so several instances share it.
type RedisAudioCache struct {
	client *redis.Client
}

// NewRedisAudioCache connects to the Redis server at url and pings it.
func NewRedisAudioCache(ctx context.Context, url string) (*RedisAudioCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ambiance: parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ambiance: connecting to redis: %w", err)
	}
	return NewRedisAudioCacheFromClient(client), nil
}

func NewRedisAudioCacheFromClient(client *redis.Client) *RedisAudioCache {
	return &RedisAudioCache{client: client}
}

func (r *RedisAudioCache) Get(ctx context.Context, key string) (CachedAudio, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedAudio{}, false, nil
		}
		return CachedAudio{}, false, fmt.Errorf("ambiance: redis get: %w", err)
	}
	var a CachedAudio
	if err := json.Unmarshal(data, &a); err != nil {
		return CachedAudio{}, false, fmt.Errorf("ambiance: decoding cached audio: %w", err)
	}
	return a, true, nil
}

func (r *RedisAudioCache) Set(ctx context.Context, key string, a CachedAudio, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("ambiance: encoding cached audio: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("ambiance: redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisAudioCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAudioCache) Close() error {
	return r.client.Close()
}
