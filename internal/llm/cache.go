package llm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"futurecast/internal/logging"
)

// ErrCacheMiss is returned by Cache.Get when no live entry exists.
var ErrCacheMiss = errors.New("cache miss")

// cacheEntry is the on-disk format. ExpiresAt is unix seconds.
type cacheEntry struct {
	Data      string  `json:"data"`
	ExpiresAt float64 `json:"expires_at"`
}

// Cache is a TTL file cache for model responses, one JSON file per entry.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Key derives the cache key for a prompt against a model with the given
// sampling parameters. Map keys marshal sorted, so the key is stable.
func Key(prompt, model string, params map[string]interface{}) string {
	paramJSON, _ := json.Marshal(params)
	sum := md5.Sum([]byte(prompt + "|" + model + "|" + string(paramJSON)))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached response for key. Expired entries are deleted
// and reported as a miss.
func (c *Cache) Get(key string) (string, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("read cache entry: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry, drop it.
		os.Remove(c.path(key))
		return "", ErrCacheMiss
	}

	if float64(time.Now().Unix()) > entry.ExpiresAt {
		os.Remove(c.path(key))
		logging.Cache("expired entry %s", key)
		return "", ErrCacheMiss
	}
	return entry.Data, nil
}

// Put stores a response under key with the cache TTL.
func (c *Cache) Put(key, response string) error {
	entry := cacheEntry{
		Data:      response,
		ExpiresAt: float64(time.Now().Add(c.ttl).Unix()),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.path(key), data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many were deleted.
func (c *Cache) Purge() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}
	removed := 0
	now := float64(time.Now().Unix())
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err != nil || now > entry.ExpiresAt {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Clear empties the cache.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, de := range entries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), ".json") {
			os.Remove(filepath.Join(c.dir, de.Name()))
		}
	}
	return nil
}

// CachedClient wraps a Client with the response cache.
type CachedClient struct {
	inner  Client
	cache  *Cache
	params map[string]interface{}
}

// NewCachedClient wraps inner. params take part in the cache key so runs
// with different sampling settings never share entries.
func NewCachedClient(inner Client, cache *Cache, params map[string]interface{}) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, params: params}
}

// Model returns the wrapped client's model name.
func (c *CachedClient) Model() string { return c.inner.Model() }

// Generate serves from cache when possible, otherwise calls the model and
// stores the result. Cache failures are logged, never fatal.
func (c *CachedClient) Generate(ctx context.Context, prompt string) (string, error) {
	key := Key(prompt, c.inner.Model(), c.params)
	if resp, err := c.cache.Get(key); err == nil {
		logging.Cache("hit %s", key)
		return resp, nil
	}
	logging.Cache("miss %s", key)

	resp, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.cache.Put(key, resp); err != nil {
		logging.Get(logging.CategoryCache).Warn("store failed for %s: %v", key, err)
	}
	return resp, nil
}
