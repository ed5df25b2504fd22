// Package ratelimit enforces a per-client one-minute-window cap on submissions,
// optionally backed by Redis so the limit holds across multiple broker
// processes sharing one pool.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config controls the limiter's thresholds.
type Config struct {
	MaxCallsPerMinute int
	BurstSize         int
}

type window struct {
	count int
	start time.Time
}

// Limiter allows at most BurstSize calls per key within a one-minute window
// that opens at the key's first call (BurstSize defaults to twice
// MaxCallsPerMinute). The in-memory windows are used when no Redis client is
// configured or when a Redis call fails.
type Limiter struct {
	mu      sync.RWMutex
	windows map[string]*window
	cfg     Config
	redis   *redis.Client
	log     *slog.Logger
}

// New builds a Limiter. redisClient may be nil, in which case the limiter
// runs purely in-memory (per-process limits only).
func New(cfg Config, redisClient *redis.Client, log *slog.Logger) *Limiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 60
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Limiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		redis:   redisClient,
		log:     log,
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a submission from key should proceed. When Redis is
// configured, the count for the current one-minute window is tracked there
// so the limit is shared across processes; otherwise it falls back to the
// in-process window.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.redis != nil {
		allowed, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
		l.log.Warn("ratelimit: redis unavailable, falling back to in-memory", "error", err)
	}
	return l.allowLocal(key)
}

func (l *Limiter) allowRedis(ctx context.Context, key string) (bool, error) {
	redisKey := "codescord:ratelimit:" + key
	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		l.redis.Expire(ctx, redisKey, time.Minute)
	}
	return count <= int64(l.cfg.BurstSize), nil
}

func (l *Limiter) allowLocal(key string) bool {
	now := time.Now()

	l.mu.RLock()
	w, exists := l.windows[key]
	if exists && now.Sub(w.start) <= time.Minute {
		w.count++
		count := w.count
		l.mu.RUnlock()
		return count <= l.cfg.BurstSize
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, exists = l.windows[key]
	if exists && now.Sub(w.start) <= time.Minute {
		w.count++
		return w.count <= l.cfg.BurstSize
	}
	l.windows[key] = &window{count: 1, start: now}
	return true
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, w := range l.windows {
			if now.Sub(w.start) > 2*time.Minute {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}
