package tokenblacklist

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Stats is the snapshot returned by Stats().
type Stats struct {
	Total        int
	Active       int
	LastCleanup  time.Time
	NextCleanup  time.Time
}

// Blacklist is a concurrent expiring set of invalidated credentials,
// wrapping go-cache for the actual TTL/janitor bookkeeping.
type Blacklist struct {
	cache           *cache.Cache
	cleanupInterval time.Duration
	mu              sync.Mutex
	lastCleanup     time.Time
}

// NewBlacklist constructs a Blacklist whose expired entries are swept
// every cleanupInterval.
func NewBlacklist(defaultExpiration, cleanupInterval time.Duration) *Blacklist {
	return &Blacklist{
		cache:           cache.New(defaultExpiration, cleanupInterval),
		cleanupInterval: cleanupInterval,
		lastCleanup:     time.Now(),
	}
}

// Blacklist marks token invalid until expiresAt (or forever, if the
// zero time is given).
func (b *Blacklist) Blacklist(token string, expiresAt time.Time) {
	ttl := cache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			ttl = time.Nanosecond
		}
	}
	b.cache.Set(token, true, ttl)
}

// IsBlacklisted reports whether token is currently invalidated.
func (b *Blacklist) IsBlacklisted(token string) bool {
	_, found := b.cache.Get(token)
	return found
}

// Stats reports current entry counts and the most recent and next
// janitor sweep times.
func (b *Blacklist) Stats() Stats {
	b.mu.Lock()
	last := b.lastCleanup
	b.mu.Unlock()
	if b.cleanupInterval > 0 {
		// go-cache's janitor sweeps every cleanupInterval from construction.
		last = last.Add(time.Since(last) / b.cleanupInterval * b.cleanupInterval)
	}

	items := b.cache.Items()
	active := 0
	for _, item := range items {
		if !item.Expired() {
			active++
		}
	}

	return Stats{
		Total:       len(items),
		Active:      active,
		LastCleanup: last,
		NextCleanup: last.Add(b.cleanupInterval),
	}
}
