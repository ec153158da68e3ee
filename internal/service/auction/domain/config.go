package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IncrementMode 决定自动加价幅度的计算方式
type IncrementMode string

const (
	IncrementSimple   IncrementMode = "simple"
	IncrementAdvanced IncrementMode = "advanced" // 按当前价所在区间查表
)

// IncrementRule 是阶梯加价表中的一行。To 为空表示向上无界。
type IncrementRule struct {
	From      decimal.Decimal
	To        *decimal.Decimal
	Increment decimal.Decimal
}

// Matches 判断当前价是否落在 [From, To) 区间内
func (r IncrementRule) Matches(current decimal.Decimal) bool {
	if current.LessThan(r.From) {
		return false
	}
	return r.To == nil || current.LessThan(*r.To)
}

// AuctionConfig 是一次出价评估期间不可变的拍卖配置，
// 由 ResolveConfig 从商品上的原始设置生成。
type AuctionConfig struct {
	ProductID               string
	Enabled                 bool
	StartPrice              decimal.Decimal
	ManualIncrement         decimal.Decimal
	ReservePrice            decimal.Decimal // 0 表示没有保留价
	BuyNowEnabled           bool
	BuyNowPrice             decimal.Decimal
	Sealed                  bool
	AutomaticBiddingEnabled bool
	IncrementMode           IncrementMode
	AutomaticIncrementValue decimal.Decimal
	IncrementRules          []IncrementRule // 按 From 升序
	StartAt                 *time.Time
	EndAt                   *time.Time
}

// HasReserve 报告是否设置了保留价
func (c AuctionConfig) HasReserve() bool {
	return c.ReservePrice.IsPositive()
}

// Lifecycle 返回给定时刻的拍卖生命周期状态
func (c AuctionConfig) Lifecycle(now time.Time) LifecycleState {
	return Status(now, c.StartAt, c.EndAt)
}
