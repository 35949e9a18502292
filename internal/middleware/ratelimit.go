package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"TrafficWatch/config"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/response"
	"TrafficWatch/storage/redis"
)

// RateLimitConfig tunes the sliding-window limiter.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
}

// RateLimitMiddleware limits requests per client IP via a Redis sorted-set
// sliding window. When Redis is unreachable the request passes, the
// limiter never takes the API down with it.
func RateLimitMiddleware() app.HandlerFunc {
	cfg := RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: config.Cfg.RateLimitRPS,
		KeyPrefix:   "rate:limit",
	}
	return RateLimitMiddlewareWithConfig(cfg)
}

func RateLimitMiddlewareWithConfig(cfg RateLimitConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !config.Cfg.RateLimitEnabled {
			c.Next(ctx)
			return
		}

		allowed, err := allow(ctx, cfg, c.ClientIP())
		if err != nil {
			logger.Logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, response.ErrorResponse{
				Error: response.ErrorDetail{
					Code:    "RATE_LIMITED",
					Message: "Too many requests, slow down",
				},
			})
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

func allow(ctx context.Context, cfg RateLimitConfig, clientIP string) (bool, error) {
	key := redis.Key(cfg.KeyPrefix, "ip", clientIP)
	now := time.Now()
	windowStart := now.Add(-cfg.Window)

	client := redis.Client()
	pipe := client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, cfg.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() <= int64(cfg.MaxRequests), nil
}
