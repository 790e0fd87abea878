package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	fp  string
	exp time.Time
}

// Cache remembers fingerprints of recently processed scrape payloads so a
// redelivered envelope does not rerun the pipeline. Bounded by capacity and a
// TTL window; oldest fingerprints fall out first.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
}

// NewCache creates a fingerprint cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		seen:     make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Seen reports whether the fingerprint was recorded inside the ttl window.
// It does not record anything; call Record once the payload is fully handled,
// so a crash mid-run lets the redelivery process it again.
func (c *Cache) Seen(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.seen[fp]
	return ok && time.Now().Before(exp)
}

// Record marks a fingerprint as processed.
func (c *Cache) Record(fp string) {
	now := time.Now()
	exp := now.Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen[fp] = exp
	c.order = append(c.order, entry{fp: fp, exp: exp})
	c.compact(now)
}

func (c *Cache) compact(now time.Time) {
	for len(c.order) > 0 && (len(c.seen) > c.capacity || c.order[0].exp.Before(now)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if exp, ok := c.seen[oldest.fp]; ok && exp.Equal(oldest.exp) {
			delete(c.seen, oldest.fp)
		}
	}
}
