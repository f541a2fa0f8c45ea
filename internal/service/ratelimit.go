package service

import (
	"sort"
	"sync"
	"time"
)

// Rate-limit event kinds. Wire events are folded into these buckets before
// counting, so e.g. chat-message and admin-chat share one ceiling.
const (
	KindOffer      = "offer"
	KindAnswer     = "answer"
	KindCandidate  = "ice-candidate"
	KindChat       = "chat"
	KindMicRequest = "mic-request"
	KindDefault    = "default"
)

type rateEntry struct {
	counts      map[string]int
	windowStart time.Time
	lastSeen    time.Time
}

// RateLimiter counts events per connection per kind in a fixed window.
// All counters for a connection reset together when its window elapses.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	limits   map[string]int
	fallback int
	entries  map[string]*rateEntry
	now      func() time.Time
}

// NewRateLimiter creates a limiter with per-kind ceilings; kinds absent from
// limits use the fallback ceiling.
func NewRateLimiter(window time.Duration, limits map[string]int, fallback int) *RateLimiter {
	l := &RateLimiter{
		window:   window,
		limits:   make(map[string]int, len(limits)),
		fallback: fallback,
		entries:  make(map[string]*rateEntry),
		now:      time.Now,
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	return l
}

// Allow reports whether the connection may emit one more event of the kind.
// The counter is not incremented on rejection.
func (l *RateLimiter) Allow(connID, kind string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[connID]
	if !ok {
		e = &rateEntry{counts: make(map[string]int), windowStart: now}
		l.entries[connID] = e
	}
	if now.Sub(e.windowStart) > l.window {
		e.counts = make(map[string]int)
		e.windowStart = now
	}
	e.lastSeen = now

	limit, ok := l.limits[kind]
	if !ok {
		limit = l.fallback
	}
	if e.counts[kind] >= limit {
		return false
	}
	e.counts[kind]++
	return true
}

// Forget drops all counters for a connection. Called on disconnect.
func (l *RateLimiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, connID)
}

// SweepIdle removes entries not touched for maxIdle and returns how many.
func (l *RateLimiter) SweepIdle(maxIdle time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > maxIdle {
			delete(l.entries, id)
			n++
		}
	}
	return n
}

// TrimOldest evicts the n least recently seen entries. Used by the reaper
// under memory pressure.
func (l *RateLimiter) TrimOldest(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || len(l.entries) == 0 {
		return 0
	}
	type aged struct {
		id   string
		seen time.Time
	}
	all := make([]aged, 0, len(l.entries))
	for id, e := range l.entries {
		all = append(all, aged{id, e.lastSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seen.Before(all[j].seen) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(l.entries, a.id)
	}
	return n
}

// Size returns the number of tracked connections.
func (l *RateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
