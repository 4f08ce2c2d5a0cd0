package ratelimit

import (
	"log"
	"sync"
	"time"

	"relaybot/utils"
)

// RateLimiter performs per-identity sliding-window admission control. Each
// identity keeps the timestamps of its admissions inside the trailing window;
// expired entries are pruned in place on every check.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	admissions  map[string][]time.Time
	now         func() time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return newRateLimiterWithClock(maxRequests, window, time.Now)
}

func newRateLimiterWithClock(maxRequests int, window time.Duration, now func() time.Time) *RateLimiter {
	utils.AssertInvariant(maxRequests > 0, "maxRequests must be positive")
	utils.AssertInvariant(window > 0, "window must be positive")

	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		admissions:  make(map[string][]time.Time),
		now:         now,
	}
}

// Admit reports whether the identity may proceed. An admitted attempt records
// its timestamp immediately so concurrent attempts for the same identity are
// serialized through the single evaluation path.
func (rl *RateLimiter) Admit(identity string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	window := rl.pruneLocked(identity, now)

	if len(window) >= rl.maxRequests {
		rl.admissions[identity] = window
		return false
	}

	rl.admissions[identity] = append(window, now)
	return true
}

// pruneLocked drops entries older than the trailing window. Timestamps are
// appended in order, so the live suffix starts at the first unexpired entry.
func (rl *RateLimiter) pruneLocked(identity string, now time.Time) []time.Time {
	window := rl.admissions[identity]
	cutoff := now.Add(-rl.window)

	start := 0
	for start < len(window) && !window[start].After(cutoff) {
		start++
	}
	return window[start:]
}

// Sweep removes identities whose windows have fully expired. Run periodically
// as background maintenance so idle identities do not accumulate.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for identity := range rl.admissions {
		window := rl.pruneLocked(identity, now)
		if len(window) == 0 {
			delete(rl.admissions, identity)
			removed++
		} else {
			rl.admissions[identity] = window
		}
	}

	if removed > 0 {
		log.Printf("🧹 Rate limiter sweep removed %d idle identities", removed)
	}
}
