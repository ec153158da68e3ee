package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeReason 是拍卖结束后的终态，三者都是正常结果而不是错误
type OutcomeReason string

const (
	ReasonWinnerNotified OutcomeReason = "winner_notified"
	ReasonNoWinner       OutcomeReason = "no_winner"
	ReasonReserveNotMet  OutcomeReason = "reserve_not_met"
)

// FinalizationRecord 每个拍卖最多写入一次
type FinalizationRecord struct {
	ProductID     string          `json:"productId"`
	Processed     bool            `json:"processed"`
	Reason        OutcomeReason   `json:"reason"`
	Winner        Bidder          `json:"winner"`
	WinningBidID  int64           `json:"winningBidId,omitempty"`
	WinningAmount decimal.Decimal `json:"winningAmount"`
	WinningTime   *time.Time      `json:"winningTime,omitempty"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

// HasWinner 报告该终态是否产生了赢家
func (r FinalizationRecord) HasWinner() bool {
	return r.Reason == ReasonWinnerNotified
}

// Decide 根据时钟、领先出价和保留价得出终态。leading 为 nil 表示没有有效出价。
func Decide(cfg AuctionConfig, now time.Time, leading *BidRecord) FinalizationRecord {
	rec := FinalizationRecord{
		ProductID:   cfg.ProductID,
		Processed:   true,
		ProcessedAt: now,
	}
	switch {
	case cfg.Lifecycle(now) != LifecycleEnded:
		// 被调度到但时钟并未结束（例如结束时间被延后），按无赢家收尾
		rec.Reason = ReasonNoWinner
	case leading == nil:
		rec.Reason = ReasonNoWinner
	case cfg.HasReserve() && leading.Amount.LessThan(cfg.ReservePrice):
		rec.Reason = ReasonReserveNotMet
	default:
		rec.Reason = ReasonWinnerNotified
		rec.Winner = leading.Bidder.Normalize()
		rec.WinningBidID = leading.ID
		rec.WinningAmount = leading.Amount
		at := leading.CreatedAt
		if at.IsZero() {
			at = now
		}
		rec.WinningTime = &at
	}
	return rec
}

// WinnerDeclared 是结束拍卖产生赢家时发给通知方的事件
type WinnerDeclared struct {
	EventID     string          `json:"eventId"`
	ProductID   string          `json:"productId"`
	Winner      Bidder          `json:"winner"`
	BidID       int64           `json:"bidId"`
	Amount      decimal.Decimal `json:"amount"`
	WinningTime time.Time       `json:"winningTime"`
	DeclaredAt  time.Time       `json:"declaredAt"`
	TraceID     string          `json:"traceId,omitempty"`
}

// NewWinnerDeclared 从已产生赢家的终态记录构造事件
func NewWinnerDeclared(eventID string, rec FinalizationRecord) WinnerDeclared {
	ev := WinnerDeclared{
		EventID:    eventID,
		ProductID:  rec.ProductID,
		Winner:     rec.Winner,
		BidID:      rec.WinningBidID,
		Amount:     rec.WinningAmount,
		DeclaredAt: rec.ProcessedAt,
	}
	if rec.WinningTime != nil {
		ev.WinningTime = *rec.WinningTime
	}
	return ev
}
