package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ethan0sc4r/gestione-vinicola/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// window counts requests from one client IP in a fixed window.
type window struct {
	mu    sync.Mutex
	count int
	ends  time.Time
}

// RateLimiter is a per-IP fixed-window limiter. Expired windows are purged
// by Purge, which the composition root runs until shutdown.
type RateLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// Allow records one request from ip and reports whether it fits the window.
func (rl *RateLimiter) Allow(ip string) (bool, time.Time) {
	rl.mu.Lock()
	w, ok := rl.clients[ip]
	if !ok {
		w = &window{}
		rl.clients[ip] = w
	}
	rl.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := rl.now()
	if now.After(w.ends) {
		w.count = 0
		w.ends = now.Add(rl.period)
	}
	w.count++
	return w.count <= rl.limit, w.ends
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, resetAt := rl.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", resetAt.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests, retry shortly"))
			return
		}
		c.Next()
	}
}

// Purge drops expired windows every interval until ctx is done.
func (rl *RateLimiter) Purge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.purgeExpired(); n > 0 {
				log.Debug().Int("purged", n).Msg("rate limiter windows purged")
			}
		}
	}
}

func (rl *RateLimiter) purgeExpired() int {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	purged := 0
	for ip, w := range rl.clients {
		w.mu.Lock()
		if now.After(w.ends) {
			delete(rl.clients, ip)
			purged++
		}
		w.mu.Unlock()
	}
	return purged
}
