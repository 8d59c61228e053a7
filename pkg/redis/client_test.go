package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/farmlabor-backend/pkg/config"
)

type fakeCmdable struct {
	cmdable
	zadds   []redis.Z
	removed map[string]bool
	rows    []redis.Z
	lastMax string
	counts  map[string]int64
	expires map[string]time.Duration
}

func (f *fakeCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCmdable) ZAdd(_ context.Context, _ string, members ...redis.Z) *redis.IntCmd {
	f.zadds = append(f.zadds, members...)
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeCmdable) ZRem(_ context.Context, _ string, members ...any) *redis.IntCmd {
	var n int64
	for _, m := range members {
		key := m.(string)
		if !f.removed[key] {
			f.removed[key] = true
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCmdable) ZRangeByScoreWithScores(_ context.Context, _ string, by *redis.ZRangeBy) *redis.ZSliceCmd {
	f.lastMax = by.Max
	return redis.NewZSliceCmdResult(f.rows, nil)
}

func TestBuildKeysUseNamespace(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("http", "abc"); got != "fl:idempotency:http:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.DeadlineKey("orders"); got != "fl:deadlines:orders" {
		t.Fatalf("unexpected deadline key %q", got)
	}
	if got := c.RateLimitKey("decision:ip:1.2.3.4"); got != "fl:ratelimit:decision:ip:1.2.3.4" {
		t.Fatalf("unexpected rate limit key %q", got)
	}
	if got := c.LockKey(""); got != "fl:lock" {
		t.Fatalf("empty parts should be skipped, got %q", got)
	}
	if got := Keyspace("staging").Key("lock", " cron "); got != "staging:lock:cron" {
		t.Fatalf("unexpected custom keyspace key %q", got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error from nil client")
	}
	if _, err := (&Client{}).SetNX(context.Background(), "k", "v", time.Second); err == nil {
		t.Fatal("expected error without a store")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestDeadlineIndexRoundTrip(t *testing.T) {
	fake := &fakeCmdable{removed: map[string]bool{}}
	c := &Client{store: fake}
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if err := c.ScheduleDeadline(ctx, "k", "order-1", at); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(fake.zadds) != 1 || fake.zadds[0].Score != float64(at.UnixMilli()) {
		t.Fatalf("unexpected zadd %+v", fake.zadds)
	}

	first, err := c.ClaimDeadline(ctx, "k", "order-1")
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v err=%v", first, err)
	}
	second, err := c.ClaimDeadline(ctx, "k", "order-1")
	if err != nil || second {
		t.Fatalf("expected second claim to lose, got %v err=%v", second, err)
	}

	fake.rows = []redis.Z{{Member: "order-2", Score: float64(at.UnixMilli())}}
	rows, err := c.DeadlinesUntil(ctx, "k", at)
	if err != nil {
		t.Fatalf("deadlines: %v", err)
	}
	if len(rows) != 1 || rows[0].Member != "order-2" || !rows[0].At.Equal(at) {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if fake.lastMax == "" {
		t.Fatalf("expected max bound to be set")
	}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	fake := &fakeCmdable{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	c := &Client{store: fake}
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrWithTTL(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("IncrWithTTL: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
	if len(fake.expires) != 1 || fake.expires["k"] != time.Minute {
		t.Fatalf("expected a single expire of 1m, got %+v", fake.expires)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected address options %+v", opts)
	}
}
