package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

var ErrLimited = errors.New("rate limited")

// LimitedError carries the wait before the caller may try again.
type LimitedError struct {
	RetryAfterSec int64
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSec)
}

func (e *LimitedError) Is(target error) bool {
	return target == ErrLimited
}

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limiter caps vendor-backed generations per user over a minute and an hour.
type Limiter struct {
	store     WindowStore
	perMinute int
	perHour   int
}

func NewLimiter(store WindowStore, perMinute, perHour int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if perHour < 0 {
		perHour = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		perHour:   perHour,
	}
}

// Allow counts one generation of kind for userID and returns a *LimitedError
// when either window is over its cap.
func (l *Limiter) Allow(ctx context.Context, userID, kind string) error {
	if l == nil {
		return nil
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(kind, "min", userID), minuteWindow)
		if err != nil {
			return err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.perHour > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(kind, "hour", userID), hourWindow)
		if err != nil {
			return err
		}
		if count > int64(l.perHour) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return &LimitedError{RetryAfterSec: retryAfterSec}
	}
	return nil
}

// RetryAfter reports the current wait without counting a hit.
func (l *Limiter) RetryAfter(ctx context.Context, userID, kind string) (int64, error) {
	if l == nil {
		return 0, nil
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	windows := []struct {
		limit int
		name  string
	}{
		{l.perMinute, "min"},
		{l.perHour, "hour"},
	}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, ttl, err := l.store.WindowState(ctx, windowKey(kind, w.name, userID))
		if err != nil {
			return 0, err
		}
		if count >= int64(w.limit) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}
	return retryAfterSec, nil
}

func windowKey(kind, window, userID string) string {
	return "rate:" + kind + ":" + window + ":" + userID
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
