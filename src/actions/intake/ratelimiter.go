package intake

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a per-user cooldown between triage sessions.
type RateLimiter struct {
	users map[string]time.Time
	mu    sync.Mutex
	limit time.Duration
	now   func() time.Time
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		users: make(map[string]time.Time),
		limit: limit,
		now:   time.Now,
	}
}

// CanUse records a use and reports true when userID is outside its cooldown.
// A zero limit disables the cooldown.
func (rl *RateLimiter) CanUse(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	lastUse, exists := rl.users[userID]
	if rl.limit <= 0 || !exists || now.Sub(lastUse) >= rl.limit {
		rl.users[userID] = now
		return true
	}
	return false
}

func (rl *RateLimiter) TimeUntilNext(userID string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lastUse, exists := rl.users[userID]
	if !exists {
		return 0
	}

	elapsed := rl.now().Sub(lastUse)
	if elapsed >= rl.limit {
		return 0
	}
	return rl.limit - elapsed
}

func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, lastUse := range rl.users {
		if now.Sub(lastUse) > rl.limit*2 {
			delete(rl.users, userID)
		}
	}
}

// StartCleanup prunes stale entries every interval until ctx ends.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
