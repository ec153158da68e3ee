package rule

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"auctionhub/internal/pkg/redis"
)

// MemoryFacts 是进程内的库存事实表
type MemoryFacts struct {
	mu    sync.RWMutex
	facts map[string]ListingFacts
}

func NewMemoryFacts() *MemoryFacts {
	return &MemoryFacts{facts: make(map[string]ListingFacts)}
}

func (m *MemoryFacts) Put(productID string, facts ListingFacts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[productID] = facts
}

func (m *MemoryFacts) Facts(ctx context.Context, productID string) (ListingFacts, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.facts[productID]
	return f, ok, nil
}

// RedisFacts 从 hash auction:stock:{productID} 读取库存事实，
// 字段为 in_stock、manage_stock、stock_quantity、status。
type RedisFacts struct {
	client *redis.Client
}

func NewRedisFacts(client *redis.Client) *RedisFacts {
	return &RedisFacts{client: client}
}

func factsKey(productID string) string {
	return fmt.Sprintf("auction:stock:{%s}", productID)
}

func (r *RedisFacts) Facts(ctx context.Context, productID string) (ListingFacts, bool, error) {
	fields, err := r.client.GetClient().HGetAll(ctx, factsKey(productID)).Result()
	if err != nil {
		return ListingFacts{}, false, err
	}
	if len(fields) == 0 {
		return ListingFacts{}, false, nil
	}
	qty, _ := strconv.ParseInt(fields["stock_quantity"], 10, 64)
	return ListingFacts{
		InStock:       parseBool(fields["in_stock"]),
		ManageStock:   parseBool(fields["manage_stock"]),
		StockQuantity: qty,
		Status:        fields["status"],
	}, true, nil
}

// Put 写入库存事实（管理和测试用），使用 pipeline 一次提交
func (r *RedisFacts) Put(ctx context.Context, productID string, facts ListingFacts) error {
	pipe := r.client.GetClient().Pipeline()
	pipe.Del(ctx, factsKey(productID))
	pipe.HSet(ctx, factsKey(productID),
		"in_stock", strconv.FormatBool(facts.InStock),
		"manage_stock", strconv.FormatBool(facts.ManageStock),
		"stock_quantity", strconv.FormatInt(facts.StockQuantity, 10),
		"status", facts.Status,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store listing facts: %w", err)
	}
	return nil
}

func parseBool(s string) bool {
	switch s {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
