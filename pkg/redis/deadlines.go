package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deadline is one scheduled member of a deadline index.
type Deadline struct {
	Member string
	At     time.Time
}

// ScheduleDeadline scores member by the deadline's unix milliseconds.
// Rescheduling overwrites the score.
func (c *Client) ScheduleDeadline(ctx context.Context, key, member string, at time.Time) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	return store.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member}).Err()
}

// ClaimDeadline removes member and reports whether this caller removed it.
// Of several racing claimers exactly one sees true.
func (c *Client) ClaimDeadline(ctx context.Context, key, member string) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	removed, err := store.ZRem(ctx, key, member).Result()
	return removed > 0, err
}

// DeadlinesUntil lists members due at or before until, earliest first.
func (c *Client) DeadlinesUntil(ctx context.Context, key string, until time.Time) ([]Deadline, error) {
	store, err := c.conn()
	if err != nil {
		return nil, err
	}
	rows, err := store.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(until.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	due := make([]Deadline, 0, len(rows))
	for _, row := range rows {
		if member, ok := row.Member.(string); ok {
			due = append(due, Deadline{Member: member, At: time.UnixMilli(int64(row.Score)).UTC()})
		}
	}
	return due, nil
}
