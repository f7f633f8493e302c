package slowmode

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter enforces per-chat slowmode: one message per window for each
// (chat, user) pair. A nil store disables enforcement.
type Limiter struct {
	store WindowStore
}

func NewLimiter(store WindowStore) *Limiter {
	return &Limiter{store: store}
}

// Allow reports whether the user may post now, and the seconds left in the
// current window when they may not. slowmodeSeconds <= 0 always allows.
func (l *Limiter) Allow(ctx context.Context, chatID, userID int64, slowmodeSeconds int) (bool, int64, error) {
	if slowmodeSeconds <= 0 || l.store == nil {
		return true, 0, nil
	}
	if chatID == 0 || userID <= 0 {
		return false, 0, fmt.Errorf("invalid slowmode payload")
	}

	window := time.Duration(slowmodeSeconds) * time.Second
	count, ttl, err := l.store.IncrementWindow(ctx, windowKey(chatID, userID), window)
	if err != nil {
		return false, 0, err
	}
	if count > 1 {
		return false, ceilSeconds(ttl), nil
	}
	return true, 0, nil
}

func windowKey(chatID, userID int64) string {
	return "slowmode:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}
