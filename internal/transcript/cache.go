// Package transcript caches video transcripts in process memory.
package transcript

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/suPer8Hu/yt-assistant/internal/metrics"
)

// Fetcher retrieves the transcript of a video from upstream.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Cache maps video ids to transcripts. Entries are inserted once and never
// overwritten or evicted for the life of the process. Failed fetches are not
// stored.
type Cache struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[string]string
	sfGroup singleflight.Group
}

func NewCache(fetcher Fetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]string),
	}
}

// GetOrFetch returns the cached transcript for videoID, fetching and storing
// it on a miss. Concurrent misses for the same id share one upstream fetch.
func (c *Cache) GetOrFetch(ctx context.Context, videoID string) (string, error) {
	if t, ok := c.Peek(videoID); ok {
		metrics.TranscriptCacheTotal.WithLabelValues(metrics.CacheStatusHit).Inc()
		return t, nil
	}

	// The shared fetch outlives any single caller's cancellation; the
	// fetcher bounds it with its own timeout.
	// Do reports shared=true to the caller that ran fn as well, so each
	// caller is counted exactly once: by fn when it led, as shared otherwise.
	fetchCtx := context.WithoutCancel(ctx)
	led := false
	result, err, _ := c.sfGroup.Do(videoID, func() (any, error) {
		led = true
		if t, ok := c.Peek(videoID); ok {
			metrics.TranscriptCacheTotal.WithLabelValues(metrics.CacheStatusHit).Inc()
			return t, nil
		}
		metrics.TranscriptCacheTotal.WithLabelValues(metrics.CacheStatusMiss).Inc()
		t, err := c.fetcher.Fetch(fetchCtx, videoID)
		if err != nil {
			return "", err
		}
		return c.store(videoID, t), nil
	})
	if !led {
		metrics.TranscriptCacheTotal.WithLabelValues(metrics.CacheStatusShared).Inc()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// store inserts t under videoID unless an entry already exists, and returns
// the entry that is cached afterwards.
func (c *Cache) store(videoID, t string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[videoID]; ok {
		return existing
	}
	c.entries[videoID] = t
	metrics.TranscriptCacheEntries.Set(float64(len(c.entries)))
	c.logger.Debug("transcript cached",
		zap.String("video_id", videoID),
		zap.Int("chars", len(t)),
	)
	return t
}

// Peek returns the cached transcript without fetching.
func (c *Cache) Peek(videoID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[videoID]
	return t, ok
}

// Len returns the number of cached transcripts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
