package bus

import (
	"sync"
	"time"
)

// DedupeCache is a TTL-based cache that drops transport-level redeliveries
// (long-polling retries resend updates after a crash) before they reach
// the pipeline. The repository's unique source-message constraint is the
// durable backstop; this just avoids wasted transcription calls.
type DedupeCache struct {
	mu      sync.Mutex
	entries map[string]int64 // key -> unix millis
	ttl     time.Duration
	maxSize int
}

// NewDedupeCache creates a dedupe cache.
func NewDedupeCache(ttl time.Duration, maxSize int) *DedupeCache {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &DedupeCache{
		entries: make(map[string]int64, 256),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// IsDuplicate reports whether key was seen within the TTL window, and
// records it if not. Expired entries are pruned lazily.
func (d *DedupeCache) IsDuplicate(key string) bool {
	now := time.Now().UnixMilli()
	cutoff := now - d.ttl.Milliseconds()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.entries[key]; ok && ts >= cutoff {
		return true
	}

	if len(d.entries) >= d.maxSize {
		for k, ts := range d.entries {
			if ts < cutoff {
				delete(d.entries, k)
			}
		}
		// Still full after pruning: drop everything rather than grow
		// unbounded.
		if len(d.entries) >= d.maxSize {
			d.entries = make(map[string]int64, 256)
		}
	}

	d.entries[key] = now
	return false
}
