package transcript

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgpai22/smriti/internal/youtube"
)

// CacheStats tracks cache usage
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// CachedSource memoizes another source per video id and language list
type CachedSource struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	items  map[string]*cacheItem
	hits   atomic.Int64
	misses atomic.Int64
}

type cacheItem struct {
	entries []youtube.CaptionEntry
	expiry  time.Time
}

func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSource{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]*cacheItem),
	}
}

func (c *CachedSource) Fetch(
	ctx context.Context,
	videoID string,
	languages []string,
) ([]youtube.CaptionEntry, error) {
	key := cacheKey(videoID, languages)

	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if exists && c.now().Before(item.expiry) {
		c.hits.Add(1)
		return clone(item.entries), nil
	}
	c.misses.Add(1)

	entries, err := c.source.Fetch(ctx, videoID, languages)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[key] = &cacheItem{entries: clone(entries), expiry: c.now().Add(c.ttl)}
	c.removeExpiredLocked()
	c.mu.Unlock()

	return entries, nil
}

// Stats returns cache statistics
func (c *CachedSource) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.items)
	c.mu.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: size}
}

func (c *CachedSource) removeExpiredLocked() {
	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiry) {
			delete(c.items, key)
		}
	}
}

func cacheKey(videoID string, languages []string) string {
	if len(languages) == 0 {
		languages = youtube.DefaultLanguages
	}
	return videoID + "|" + strings.Join(languages, ",")
}

func clone(entries []youtube.CaptionEntry) []youtube.CaptionEntry {
	return append([]youtube.CaptionEntry(nil), entries...)
}
