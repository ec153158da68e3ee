package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"auctionhub/internal/pkg/redis"
	"auctionhub/internal/service/auction/domain"
)

// RedisStateStore 把每个商品的运行时状态保存为一个 JSON 字符串。
// 读写都发生在商品锁内，因此不需要 WATCH。
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func stateKey(productID string) string {
	return fmt.Sprintf("auction:state:{%s}", productID)
}

func (s *RedisStateStore) Get(ctx context.Context, productID string) (domain.RuntimeState, error) {
	var state domain.RuntimeState
	raw, err := s.client.GetClient().Get(ctx, stateKey(productID)).Bytes()
	if err == goredis.Nil {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("redis get state of %s: %w", productID, err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode state of %s: %w", productID, err)
	}
	return state, nil
}

func (s *RedisStateStore) Set(ctx context.Context, productID string, state domain.RuntimeState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to store runtime state for %s: %w", productID, err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state of %s: %w", productID, err)
	}
	if err := s.client.GetClient().Set(ctx, stateKey(productID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set state of %s: %w", productID, err)
	}
	return nil
}
