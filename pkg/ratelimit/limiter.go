// Package ratelimit counts requests per network address in a fixed window.
// The window is anchored to the first request from an address; bursts across
// a window boundary can reach twice the limit, which is accepted for the
// simplicity of a single counter key.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/mkorolev/sitegate/pkg/store"
)

const keyPrefix = "rate:"

const (
	DefaultLimit  = 120
	DefaultWindow = time.Hour
)

type Limiter struct {
	store  store.Store
	limit  int64
	window time.Duration
}

func New(s store.Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: s, limit: int64(limit), window: window}
}

// Allow reports whether a request from ip fits in the current window. The
// first request creates the counter with the window TTL; a denied request
// does not increment. After incrementing, a missing expiry is re-asserted so
// a counter created racily can never become immortal.
func (l *Limiter) Allow(ctx context.Context, ip string) (bool, error) {
	key := keyPrefix + ip

	v, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		if err := l.store.SetWithTTL(ctx, key, "1", l.window); err != nil {
			return false, err
		}
		return true, nil
	}

	count, _ := strconv.ParseInt(v, 10, 64)
	if count >= l.limit {
		return false, nil
	}

	if _, err := l.store.Increment(ctx, key); err != nil {
		return false, err
	}
	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		return false, err
	}
	if ttl < 0 {
		if err := l.store.SetExpiry(ctx, key, l.window); err != nil {
			return false, err
		}
	}
	return true, nil
}
