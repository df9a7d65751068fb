package app

import (
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

// JoinRateLimiter is a sliding-window limiter on join attempts per
// participant. Like the registry it is owned by the Relay loop.
type JoinRateLimiter struct {
	history  map[domain.ParticipantID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewJoinRateLimiter returns nil when limit <= 0; a nil limiter allows everything.
func NewJoinRateLimiter(limit int, interval time.Duration) *JoinRateLimiter {
	if limit <= 0 {
		return nil
	}
	return &JoinRateLimiter{
		history:  make(map[domain.ParticipantID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *JoinRateLimiter) Allow(pid domain.ParticipantID) bool {
	if rl == nil {
		return true
	}
	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[pid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[pid] = fresh
		return false
	}
	rl.history[pid] = append(fresh, now)
	return true
}

// Forget drops history of participants with no attempt inside the window.
func (rl *JoinRateLimiter) Forget() {
	if rl == nil {
		return
	}
	windowStart := rl.now().Add(-rl.interval)
	for pid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, pid)
		}
	}
}
