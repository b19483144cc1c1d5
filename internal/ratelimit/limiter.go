package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPublicRoute = "ratelimit:public:%s:%s"

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Bucket is a keyed token bucket.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

// PublicLimiter throttles unauthenticated routes by client and route.
type PublicLimiter struct {
	bucket  Bucket
	backend string
	rate    float64
	burst   int
	log     *zap.Logger
}

type Params struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

// NewPublicLimiter uses redis when REDIS_ADDR is set and an in-process
// limiter otherwise.
func NewPublicLimiter(p Params) *PublicLimiter {
	log := p.Log.Named("ratelimit")
	rate, burst := p.Cfg.PublicRateLimitRPS, p.Cfg.PublicRateLimitBurst
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 30
	}

	addr := strings.TrimSpace(p.Cfg.RedisAddr)
	if addr == "" {
		log.Info("public rate limit using in-process buckets")
		return NewLimiter(NewLocalBuckets(), "local", rate, burst, log)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Cfg.RedisPassword),
		DB:       p.Cfg.RedisDB,
	})
	if p.Lc != nil {
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	log.Info("public rate limit using redis", zap.String("addr", addr))
	return NewLimiter(NewTokenBucket(client), "redis", rate, burst, log)
}

func NewLimiter(bucket Bucket, backend string, rate float64, burst int, log *zap.Logger) *PublicLimiter {
	return &PublicLimiter{bucket: bucket, backend: backend, rate: rate, burst: burst, log: log}
}

// Allow consumes one token for the client on the route. A failing backend
// lets the request through.
func (l *PublicLimiter) Allow(ctx context.Context, route, clientIP string) Result {
	if l == nil || l.bucket == nil {
		return Result{Allowed: true}
	}
	key := fmt.Sprintf(keyPublicRoute, route, clientIP)
	result, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit backend failed",
			zap.String("backend", l.backend),
			zap.String("route", route),
			zap.Error(err),
		)
		return Result{Allowed: true, Limit: l.burst}
	}
	return result
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewPublicLimiter),
)
