// internal/services/rate_limiter.go
package services

import (
	"context"
	"time"

	"github.com/bigdiamond/atelier-backend/internal/transient"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const webhookRateKeyPrefix = "webhook_rate_"

// FixedWindowLimiter allows Limit calls per identifier in each window. The
// window opens on the first call and is not extended by later ones.
type FixedWindowLimiter struct {
	store  transient.Store
	limit  int
	window time.Duration
	prefix string
}

func NewFixedWindowLimiter(store transient.Store, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		prefix: webhookRateKeyPrefix,
	}
}

// Allow counts the call and reports whether it fits in the current window.
// A limit of zero or less disables limiting.
func (l *FixedWindowLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l == nil || l.limit <= 0 {
		return true, nil
	}

	count, err := l.store.Increment(ctx, l.prefix+utils.HashString(identifier), l.window)
	if err != nil {
		return false, err
	}
	return count <= int64(l.limit), nil
}
