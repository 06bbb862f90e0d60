package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(limit int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, time.Minute)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("10.0.0.1")
		assert.True(t, ok, "request %d", i+1)
	}
	ok, resetAt := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, clock.t.Add(time.Minute), resetAt)

	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok, "other clients have their own window")

	clock.advance(time.Minute + time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok, "window resets after the period")
}

func TestRateLimiter_PurgeExpired(t *testing.T) {
	rl, clock := newTestLimiter(5)
	rl.Allow("a")
	clock.advance(30 * time.Second)
	rl.Allow("b")

	clock.advance(45 * time.Second)
	assert.Equal(t, 1, rl.purgeExpired())
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "b")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}
