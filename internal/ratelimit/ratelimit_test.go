package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBucketsRefill(t *testing.T) {
	buckets := NewLocalBuckets()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	buckets.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := buckets.Allow(ctx, "k", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}
	res, err := buckets.Allow(ctx, "k", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := buckets.Allow(ctx, "other", 1, 3)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(time.Second)
	res, err = buckets.Allow(ctx, "k", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalBucketsSweepIdleKeys(t *testing.T) {
	buckets := NewLocalBuckets()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	buckets.now = func() time.Time { return now }

	_, _ = buckets.Allow(context.Background(), "a", 1, 1)
	now = now.Add(2 * localIdleTTL)
	_, _ = buckets.Allow(context.Background(), "b", 1, 1)

	buckets.mu.Lock()
	defer buckets.mu.Unlock()
	assert.NotContains(t, buckets.buckets, "a")
	assert.Contains(t, buckets.buckets, "b")
}

type failingBucket struct{}

func (failingBucket) Allow(context.Context, string, float64, int) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingBucket{}, "redis", 1, 5, zap.NewNop())
	assert.True(t, limiter.Allow(context.Background(), "public_invoice", "10.0.0.1").Allowed)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewLimiter(NewLocalBuckets(), "local", 0.5, 2, zap.NewNop())

	r := gin.New()
	r.GET("/public/invoices/:id", Middleware(limiter, "public_invoice", nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/public/invoices/1", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "2", w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "rate_limited")
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
