package slowmode

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "chat_warden/internal/repo/redis"
)

func newMiniRedisStore(t *testing.T) (*miniredis.Miniredis, *goredis.Client, *redrepo.WindowRepo) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client, redrepo.NewWindowRepo(client)
}

func TestLimiterBlocksSecondMessageInWindow(t *testing.T) {
	mr, client, repo := newMiniRedisStore(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(repo)
	ctx := context.Background()

	allowed, retryAfter, err := limiter.Allow(ctx, -100, 42, 30)
	if err != nil {
		t.Fatalf("first allow: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("first message must pass, got allowed=%v retry=%d", allowed, retryAfter)
	}

	allowed, retryAfter, err = limiter.Allow(ctx, -100, 42, 30)
	if err != nil {
		t.Fatalf("second allow: %v", err)
	}
	if allowed {
		t.Fatalf("second message inside the window must be blocked")
	}
	if retryAfter <= 0 || retryAfter > 30 {
		t.Fatalf("unexpected retry_after %d", retryAfter)
	}

	mr.FastForward(31 * time.Second)

	allowed, _, err = limiter.Allow(ctx, -100, 42, 30)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatalf("message after the window must pass")
	}
}

func TestLimiterIsPerUserAndPerChat(t *testing.T) {
	mr, client, repo := newMiniRedisStore(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(repo)
	ctx := context.Background()

	if allowed, _, _ := limiter.Allow(ctx, -100, 1, 60); !allowed {
		t.Fatalf("first user must pass")
	}
	if allowed, _, _ := limiter.Allow(ctx, -100, 2, 60); !allowed {
		t.Fatalf("second user must not share the first user's window")
	}
	if allowed, _, _ := limiter.Allow(ctx, -200, 1, 60); !allowed {
		t.Fatalf("same user in another chat must not share the window")
	}
}

func TestLimiterDisabled(t *testing.T) {
	limiter := NewLimiter(nil)

	allowed, retryAfter, err := limiter.Allow(context.Background(), -100, 42, 0)
	if err != nil || !allowed || retryAfter != 0 {
		t.Fatalf("zero slowmode must always allow, got allowed=%v retry=%d err=%v", allowed, retryAfter, err)
	}

	allowed, _, err = limiter.Allow(context.Background(), -100, 42, 30)
	if err != nil || !allowed {
		t.Fatalf("nil store must disable enforcement, got allowed=%v err=%v", allowed, err)
	}
}
