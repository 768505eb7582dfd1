package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/roomplanner/libs/config"
	"github.com/md-rashed-zaman/roomplanner/libs/httpx"
	"github.com/md-rashed-zaman/roomplanner/services/scheduling-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

func workdayDefaults() (availability.Hours, error) {
	start, err := availability.ParseClock(config.String("DEFAULT_WORKDAY_START", "09:00"))
	if err != nil {
		return availability.Hours{}, fmt.Errorf("DEFAULT_WORKDAY_START: %w", err)
	}
	end, err := availability.ParseClock(config.String("DEFAULT_WORKDAY_END", "17:00"))
	if err != nil {
		return availability.Hours{}, fmt.Errorf("DEFAULT_WORKDAY_END: %w", err)
	}
	if start == end {
		return availability.Hours{}, fmt.Errorf("default workday start and end must differ")
	}
	return availability.Hours{StartMinute: start, EndMinute: end}, nil
}

// rateLimiter prefers the shared Redis window when a client is configured. A non-positive
// RATE_LIMIT_PER_MINUTE disables limiting.
func rateLimiter(logger *slog.Logger, rdb *redis.Client) httpx.Middleware {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limitPerMinute <= 0 {
		logger.Info("rate limiting disabled")
		return func(next http.Handler) http.Handler { return next }
	}
	if rdb != nil {
		prefix := strings.TrimSpace(config.String("RATE_LIMIT_PREFIX", "rl:scheduling"))
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, prefix)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
		return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
