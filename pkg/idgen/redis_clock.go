package idgen

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Clock is the generator's time source, in milliseconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the local system time.
type SystemClock struct{}

func (s *SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads time from the shared Redis instance so every asset node
// stamps IDs against the same clock regardless of local drift.
type RedisClock struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisClock(client *redis.Client) *RedisClock {
	return &RedisClock{client: client, ctx: context.Background()}
}

// Now issues a Redis TIME call. When Redis is unreachable it falls back to
// the local clock; the node id still separates concurrent generators, so
// uniqueness survives the drift window.
func (r *RedisClock) Now() int64 {
	res, err := r.client.Time(r.ctx).Result()
	if err != nil {
		return time.Now().UnixMilli()
	}
	return res.Unix()*1000 + int64(res.Nanosecond())/1_000_000
}
