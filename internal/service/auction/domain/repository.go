package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger 定义了出价账本的持久化接口：只追加记录，只修改状态和金额
type Ledger interface {
	// Insert 写入一条新记录并返回单调递增的 ID
	Insert(ctx context.Context, rec *BidRecord) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status BidStatus) error
	// UpdateAmount 改写金额；maxAutoAmount 为 nil 时保持原值
	UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, maxAutoAmount *decimal.Decimal) error
	// LeadingActive 返回金额最高的 active 记录，没有时返回 (nil, nil)
	LeadingActive(ctx context.Context, productID string) (*BidRecord, error)
	// History 按金额、ID 倒序返回记录；limit <= 0 表示不限
	History(ctx context.Context, productID string, limit int, includeOutbid bool) ([]BidRecord, error)
	// HasBidFrom 报告出价人在该商品上是否已有 active 或 outbid 记录
	HasBidFrom(ctx context.Context, productID string, bidder Bidder) (bool, error)
	// Atomically 在同一个事务中执行 fn，fn 返回错误时整体回滚
	Atomically(ctx context.Context, fn func(tx Ledger) error) error
}

// RuntimeStateStore 保存每个商品的运行时状态，调用方必须持有商品锁
type RuntimeStateStore interface {
	// Get 在没有状态时返回零值
	Get(ctx context.Context, productID string) (RuntimeState, error)
	Set(ctx context.Context, productID string, state RuntimeState) error
}

// FinalizationStore 保存拍卖终态
type FinalizationStore interface {
	// Get 在尚未结束处理时返回 (nil, nil)
	Get(ctx context.Context, productID string) (*FinalizationRecord, error)
	// Save 只允许写入一次，重复写入返回 ErrAlreadyFinalized
	Save(ctx context.Context, rec FinalizationRecord) error
}

// ApplyChanges 把 Resolve 产生的行修改写入账本
func ApplyChanges(ctx context.Context, ledger Ledger, changes []RowChange) error {
	for _, c := range changes {
		if c.Amount != nil {
			if err := ledger.UpdateAmount(ctx, c.BidID, *c.Amount, c.MaxAutoAmount); err != nil {
				return err
			}
		}
		if c.Status != "" {
			if err := ledger.UpdateStatus(ctx, c.BidID, c.Status); err != nil {
				return err
			}
		}
	}
	return nil
}
