package redis

import "strings"

// Keyspace prefixes every key the platform writes so several environments can
// share one Redis.
type Keyspace string

// DefaultKeyspace is used when a Client is built without an explicit one.
const DefaultKeyspace Keyspace = "fl"

const (
	idempotencyPrefix = "idempotency"
	deadlinePrefix    = "deadlines"
	lockPrefix        = "lock"
	rateLimitPrefix   = "ratelimit"
)

// Key joins the namespace and non-empty parts with ':'.
func (k Keyspace) Key(parts ...string) string {
	var b strings.Builder
	if k == "" {
		k = DefaultKeyspace
	}
	b.WriteString(string(k))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey namespaces a replay or dedupe key under scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keyspace().Key(idempotencyPrefix, scope, id)
}

// DeadlineKey is the sorted set holding pending deadlines of one offer kind.
func (c *Client) DeadlineKey(kind string) string {
	return c.keyspace().Key(deadlinePrefix, kind)
}

func (c *Client) RateLimitKey(scope string) string {
	return c.keyspace().Key(rateLimitPrefix, scope)
}

func (c *Client) LockKey(name string) string {
	return c.keyspace().Key(lockPrefix, name)
}

func (c *Client) keyspace() Keyspace {
	if c == nil {
		return DefaultKeyspace
	}
	return c.keys
}
