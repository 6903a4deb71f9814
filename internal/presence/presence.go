// Package presence tracks which accounts have a live connection.
package presence

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Tracker counts live connections per account. An account is online while its count is positive.
type Tracker interface {
	Connect(ctx context.Context, accountID int) error
	Disconnect(ctx context.Context, accountID int) error
	Online(ctx context.Context, ids []int) (map[int]bool, error)
}

// RedisTracker shares presence across instances through a redis hash.
type RedisTracker struct {
	client *redis.Client
	key    string
}

func NewRedisTracker(client *redis.Client, key string) *RedisTracker {
	if key == "" {
		key = "presence:connections"
	}
	return &RedisTracker{client: client, key: key}
}

func (t *RedisTracker) Connect(ctx context.Context, accountID int) error {
	return t.client.HIncrBy(ctx, t.key, strconv.Itoa(accountID), 1).Err()
}

func (t *RedisTracker) Disconnect(ctx context.Context, accountID int) error {
	field := strconv.Itoa(accountID)
	n, err := t.client.HIncrBy(ctx, t.key, field, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return t.client.HDel(ctx, t.key, field).Err()
	}
	return nil
}

func (t *RedisTracker) Online(ctx context.Context, ids []int) (map[int]bool, error) {
	out := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.Itoa(id)
	}
	vals, err := t.client.HMGet(ctx, t.key, fields...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		out[ids[i]] = err == nil && n > 0
	}
	return out, nil
}

// MemoryTracker is the single-instance tracker.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[int]int
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: map[int]int{}}
}

func (t *MemoryTracker) Connect(_ context.Context, accountID int) error {
	t.mu.Lock()
	t.counts[accountID]++
	t.mu.Unlock()
	return nil
}

func (t *MemoryTracker) Disconnect(_ context.Context, accountID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[accountID] <= 1 {
		delete(t.counts, accountID)
		return nil
	}
	t.counts[accountID]--
	return nil
}

func (t *MemoryTracker) Online(_ context.Context, ids []int) (map[int]bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = t.counts[id] > 0
	}
	return out, nil
}
