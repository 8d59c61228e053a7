package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

type windowCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	ttls map[string]time.Duration
	err  error
}

func (c *windowCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.hits == nil {
		c.hits = map[string]int64{}
		c.ttls = map[string]time.Duration{}
	}
	c.hits[key]++
	c.ttls[key] = ttl
	return c.hits[key], nil
}

func (c *windowCounter) RateLimitKey(scope string) string {
	return "fl:ratelimit:" + scope
}

type caller struct {
	user       string
	forwarded  string
	realIP     string
	remoteAddr string
}

func (c caller) request() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/decision", nil)
	if c.user != "" {
		req = req.WithContext(WithUserID(req.Context(), c.user))
	}
	if c.forwarded != "" {
		req.Header.Set("X-Forwarded-For", c.forwarded)
	}
	if c.realIP != "" {
		req.Header.Set("X-Real-IP", c.realIP)
	}
	if c.remoteAddr != "" {
		req.RemoteAddr = c.remoteAddr
	}
	return req
}

func TestRateLimitWindows(t *testing.T) {
	cases := []struct {
		name    string
		ipLimit int
		perUser int
		calls   []caller
		want    []int
		counter string
	}{
		{
			name:    "per user",
			perUser: 2,
			calls:   []caller{{user: "w1"}, {user: "w1"}, {user: "w2"}, {user: "w1"}},
			want:    []int{http.StatusOK, http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
			counter: "fl:ratelimit:decision:user:w1",
		},
		{
			name:    "first forwarded hop",
			ipLimit: 1,
			calls: []caller{
				{forwarded: "10.0.0.1, 192.168.0.1"},
				{forwarded: "10.0.0.1"},
				{remoteAddr: "10.0.0.2:4000"},
			},
			want:    []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK},
			counter: "fl:ratelimit:decision:ip:10.0.0.1",
		},
		{
			name:    "real ip header",
			ipLimit: 1,
			calls:   []caller{{realIP: "172.16.0.9"}, {realIP: "172.16.0.9", remoteAddr: "10.9.9.9:1"}},
			want:    []int{http.StatusOK, http.StatusTooManyRequests},
			counter: "fl:ratelimit:decision:ip:172.16.0.9",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &windowCounter{}
			policy := NewRateLimitPolicy("Decision", time.Minute, tc.ipLimit, tc.perUser)
			handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			for i, c := range tc.calls {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, c.request())
				if rec.Code != tc.want[i] {
					t.Fatalf("call %d: expected %d got %d", i, tc.want[i], rec.Code)
				}
				if rec.Code == http.StatusTooManyRequests && errorCode(t, rec) != string(pkgerrors.CodeRateLimit) {
					t.Fatalf("call %d: unexpected error body %s", i, rec.Body.String())
				}
			}
			if store.ttls[tc.counter] != time.Minute {
				t.Fatalf("expected a one-minute window on %s, got %v", tc.counter, store.ttls)
			}
		})
	}
}

func TestRateLimitStoreFailureIsDependencyError(t *testing.T) {
	store := &windowCounter{err: errors.New("redis down")}
	handler := RateLimit(NewRateLimitPolicy("decision", time.Minute, 5, 5), store, nil)(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, caller{user: "w1"}.request())
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != string(pkgerrors.CodeDependency) {
		t.Fatalf("expected 503 dependency error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policies := []RateLimitPolicy{
		NewRateLimitPolicy("decision", 0, 1, 1),
		NewRateLimitPolicy("decision", time.Minute, 0, 0),
	}
	for _, policy := range policies {
		store := &windowCounter{}
		handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, caller{user: "w1"}.request())
			if rec.Code != http.StatusAccepted {
				t.Fatalf("expected pass-through, got %d", rec.Code)
			}
		}
		if len(store.hits) != 0 {
			t.Fatalf("disabled policy touched the store: %v", store.hits)
		}
	}
}
