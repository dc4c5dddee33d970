package executor

import (
	"sync"
	"time"
)

// Dedup suppresses repeat submissions of the same trade request inside a
// TTL window. Expired entries are pruned opportunistically on each check,
// so the map stays bounded by the number of distinct keys seen per window.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{seen: make(map[string]time.Time), ttl: ttl}
}

// IsDuplicate reports whether key was already recorded inside the window.
// A fresh or expired key is recorded and admitted.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}

	if _, live := d.seen[key]; live {
		return true
	}
	d.seen[key] = now
	return false
}

// Forget drops key so the next submission is admitted immediately. Called
// when a request fails outright, since a definite failure must not block
// the next cycle's retry.
func (d *Dedup) Forget(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}
