package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeenStore keeps the per-viewer seen set in a shared sorted set, scored
// by insertion time so capping always evicts oldest-first. The whole key
// expires on a sliding TTL refreshed by every write.
type RedisSeenStore struct {
	client *redis.Client
	ttl    time.Duration
	cap    int64
}

func NewRedisSeenStore(client *redis.Client, ttl time.Duration, cap int) *RedisSeenStore {
	return &RedisSeenStore{client: client, ttl: ttl, cap: int64(cap)}
}

func seenKey(viewerID string) string {
	return fmt.Sprintf("feed:seen:%s", viewerID)
}

func (s *RedisSeenStore) Add(ctx context.Context, viewerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := float64(time.Now().UnixNano())
	members := make([]redis.Z, len(ids))
	for i, id := range ids {
		// Spread scores so a single batch still evicts in insertion order.
		members[i] = redis.Z{Score: now + float64(i), Member: id}
	}

	key := seenKey(viewerID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, -(s.cap + 1))
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark posts seen: %v", err)
	}
	return nil
}

func (s *RedisSeenStore) Members(ctx context.Context, viewerID string) ([]string, error) {
	ids, err := s.client.ZRange(ctx, seenKey(viewerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seen set: %v", err)
	}
	return ids, nil
}

func (s *RedisSeenStore) Clear(ctx context.Context, viewerID string) error {
	return s.client.Del(ctx, seenKey(viewerID)).Err()
}
