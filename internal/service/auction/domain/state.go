package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuntimeState 是每个拍卖商品的可变运行时状态，只由出价引擎在商品锁内读写
type RuntimeState struct {
	CurrentBid    decimal.Decimal `json:"currentBid"`
	WinningBidID  int64           `json:"winningBidId,omitempty"`
	WinningBidder Bidder          `json:"winningBidder"`
	ProxyMax      decimal.Decimal `json:"proxyMax"`
	ProxyBidder   Bidder          `json:"proxyBidder"`
	ProxyBidID    int64           `json:"proxyBidId,omitempty"`
}

// HasWinner 报告当前是否存在领先出价
func (s RuntimeState) HasWinner() bool {
	return s.WinningBidID != 0
}

// HasProxy 报告是否存在一个仍然生效的代理出价
func (s RuntimeState) HasProxy() bool {
	return s.ProxyBidID != 0 && s.ProxyMax.IsPositive()
}

// ClearProxy 清空代理字段
func (s *RuntimeState) ClearProxy() {
	s.ProxyMax = decimal.Zero
	s.ProxyBidder = Bidder{}
	s.ProxyBidID = 0
}

// Validate 检查状态不变量，返回第一个被违反的约束
func (s RuntimeState) Validate() error {
	if s.CurrentBid.IsNegative() {
		return fmt.Errorf("current bid %s is negative", s.CurrentBid)
	}
	if s.HasWinner() && !s.CurrentBid.IsPositive() {
		return fmt.Errorf("winning bid %d set with non-positive current bid %s", s.WinningBidID, s.CurrentBid)
	}
	if s.ProxyBidID != 0 {
		if s.ProxyMax.LessThan(s.CurrentBid) {
			return fmt.Errorf("proxy max %s below current bid %s", s.ProxyMax, s.CurrentBid)
		}
		if !s.ProxyBidder.Same(s.WinningBidder) {
			return fmt.Errorf("proxy bidder %q is not the winning bidder %q", s.ProxyBidder.Key(), s.WinningBidder.Key())
		}
	}
	return nil
}
