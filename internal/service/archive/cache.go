package archive

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"letterarchive/internal/domain/models"
)

var (
	letterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "letterarchive_letter_cache_hits_total",
		Help: "Letter reads served from the in-memory cache.",
	})
	letterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "letterarchive_letter_cache_misses_total",
		Help: "Letter reads that went to the database.",
	})
)

// LetterCache is a per-instance LRU of published letters with a TTL.
// A nil *LetterCache is valid and caches nothing.
//
// Entries only move forward: a letter never replaces a cached copy with a
// higher VersionCount, so a read that raced an edit cannot reinstate the
// pre-edit row. Edits are not seen by other instances, so enable it only
// when a single instance serves the API.
type LetterCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, *models.Letter]
}

// NewLetterCache returns nil when size is not positive.
func NewLetterCache(size int, ttl time.Duration) *LetterCache {
	if size <= 0 {
		return nil
	}
	return &LetterCache{lru: expirable.NewLRU[string, *models.Letter](size, nil, ttl)}
}

// Get returns a copy so callers cannot mutate the cached entry.
func (c *LetterCache) Get(id string) (*models.Letter, bool) {
	if c == nil {
		return nil, false
	}
	l, ok := c.lru.Get(id)
	if !ok {
		letterCacheMisses.Inc()
		return nil, false
	}
	letterCacheHits.Inc()
	cp := *l
	return &cp, true
}

// Add stores a copy of l unless a newer version is already cached.
func (c *LetterCache) Add(l *models.Letter) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.lru.Peek(l.ID); ok && cur.VersionCount > l.VersionCount {
		return
	}
	cp := *l
	c.lru.Add(l.ID, &cp)
}
