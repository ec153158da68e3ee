package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auctionhub/internal/service/auction/domain"
)

// MemoryStateStore 是进程内的运行时状态存储
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]domain.RuntimeState
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]domain.RuntimeState)}
}

func (s *MemoryStateStore) Get(ctx context.Context, productID string) (domain.RuntimeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[productID], nil
}

func (s *MemoryStateStore) Set(ctx context.Context, productID string, state domain.RuntimeState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to store runtime state for %s: %w", productID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[productID] = state
	return nil
}

// MemoryFinalizationStore 是进程内的拍卖终态存储
type MemoryFinalizationStore struct {
	mu      sync.RWMutex
	records map[string]domain.FinalizationRecord
}

func NewMemoryFinalizationStore() *MemoryFinalizationStore {
	return &MemoryFinalizationStore{records: make(map[string]domain.FinalizationRecord)}
}

func (s *MemoryFinalizationStore) Get(ctx context.Context, productID string) (*domain.FinalizationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[productID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryFinalizationStore) Save(ctx context.Context, rec domain.FinalizationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ProductID]; ok {
		return domain.ErrAlreadyFinalized
	}
	s.records[rec.ProductID] = rec
	return nil
}

// MemoryAuctionCatalog 保存商品的原始拍卖设置，
// 同时作为 ConfigProvider 和结束处理器的 AuctionCatalog。
type MemoryAuctionCatalog struct {
	mu       sync.RWMutex
	settings map[string]domain.RawSettings
	opts     domain.ResolveOptions
	finals   domain.FinalizationStore
}

// NewMemoryAuctionCatalog 创建目录；finals 用于过滤已经处理过的拍卖，可以为 nil
func NewMemoryAuctionCatalog(opts domain.ResolveOptions, finals domain.FinalizationStore) *MemoryAuctionCatalog {
	return &MemoryAuctionCatalog{
		settings: make(map[string]domain.RawSettings),
		opts:     opts,
		finals:   finals,
	}
}

// Put 新增或覆盖一个商品的设置
func (c *MemoryAuctionCatalog) Put(raw domain.RawSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings[raw.ProductID] = raw
}

// Get 每次调用都重新解析，设置的修改立即生效
func (c *MemoryAuctionCatalog) Get(ctx context.Context, productID string) (domain.AuctionConfig, error) {
	c.mu.RLock()
	raw, ok := c.settings[productID]
	c.mu.RUnlock()
	if !ok {
		return domain.AuctionConfig{}, domain.ErrProductNotFound
	}
	return domain.ResolveConfig(raw, c.opts), nil
}

func (c *MemoryAuctionCatalog) EndedUnprocessed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	c.mu.RLock()
	ids := make([]string, 0, len(c.settings))
	for id := range c.settings {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)

	var out []string
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		cfg, err := c.Get(ctx, id)
		if err != nil || !cfg.Enabled || cfg.Lifecycle(now) != domain.LifecycleEnded {
			continue
		}
		if c.finals != nil {
			rec, err := c.finals.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if rec != nil && rec.Processed {
				continue
			}
		}
		out = append(out, id)
	}
	return out, nil
}
