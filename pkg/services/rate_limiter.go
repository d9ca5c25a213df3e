package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter はクライアントごとの固定レート制限を提供します
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	limiters map[string]*clientLimiter

	lastPurge time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter はperの期間にn回までを許可するRateLimiterを生成します
func NewRateLimiter(n int, per time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(per / time.Duration(n)),
		burst:    n,
		idle:     per,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow はキーに対するリクエストを許可するかを返す。
// 拒否した場合は次に許可されるまでの待ち時間も返す。
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastPurge) >= l.idle {
		l.purgeIdleLocked(now)
		l.lastPurge = now
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// PurgeIdle は制限期間より長く使われていないキーを削除し、削除数を返す。
// その間にトークンは満杯まで戻るので、削除しても判定は変わらない。
func (l *RateLimiter) PurgeIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeIdleLocked(l.now())
}

func (l *RateLimiter) purgeIdleLocked(now time.Time) int {
	removed := 0
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idle {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len は保持しているキーの数を返す
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
