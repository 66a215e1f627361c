package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter はクライアントIPごとのトークンバケットでリクエスト数を制限する。
type RateLimiter struct {
	// mu はlimitersへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// limiters はクライアントIPごとのリミッター。
	limiters map[string]*rate.Limiter
	// limit は1秒あたりの許可リクエスト数。
	limit rate.Limit
	// burst は瞬間的に許可するリクエスト数。
	burst int
}

// NewRateLimiter は新しいRateLimiterを生成する。
// perSec が0以下の場合は制限しない。
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// limiterFor はクライアントIPに対応するリミッターを返す。
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Middleware はレート制限を適用するGinミドルウェアを返す。
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "リクエストが多すぎます。しばらくしてから再試行してください",
			})
			return
		}
		c.Next()
	}
}
