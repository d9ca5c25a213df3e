package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow("10.0.0.1")
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, retryAfter := limiter.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))

	// 別クライアントは独立して数える
	ok, _ = limiter.Allow("10.0.0.2")
	assert.True(t, ok)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(3, time.Minute)
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow("10.0.0.1")
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow("10.0.0.1")
	assert.False(t, ok)

	clock = clock.Add(30 * time.Second)
	limiter.Allow("10.0.0.2")
	assert.Equal(t, 2, limiter.Len())

	// 1分間アクセスのない10.0.0.1だけが消える
	clock = clock.Add(40 * time.Second)
	assert.Equal(t, 1, limiter.PurgeIdle())
	assert.Equal(t, 1, limiter.Len())

	// 新しい来訪者のたびに古いキーが掃除され、マップは増え続けない
	for i := 0; i < 100; i++ {
		clock = clock.Add(2 * time.Minute)
		ok, _ := limiter.Allow(fmt.Sprintf("192.168.0.%d", i))
		assert.True(t, ok)
	}
	assert.Equal(t, 1, limiter.Len())

	// 削除後に戻ってきたクライアントは満杯のトークンから始まる
	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow("10.0.0.1")
		assert.True(t, ok)
	}
}
