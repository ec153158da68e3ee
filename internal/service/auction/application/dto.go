package application

import (
	"time"

	"github.com/shopspring/decimal"

	"auctionhub/internal/service/auction/domain"
)

// PlaceBidRequest 是出价用例的输入数据
type PlaceBidRequest struct {
	ProductID     string
	UserID        string
	SessionID     string
	IsAuto        bool
	Amount        decimal.Decimal
	MaxAutoAmount *decimal.Decimal
}

// ToDomain 转换为引擎使用的领域请求
func (r *PlaceBidRequest) ToDomain() domain.BidRequest {
	return domain.BidRequest{
		Bidder:        domain.Bidder{UserID: r.UserID, SessionID: r.SessionID},
		IsAuto:        r.IsAuto,
		Amount:        r.Amount,
		MaxAutoAmount: r.MaxAutoAmount,
	}
}

// BidHistoryEntry 是对外展示的一条出价记录，从不包含代理上限
type BidHistoryEntry struct {
	ID        int64            `json:"id"`
	Bidder    string           `json:"bidder"`
	Amount    *decimal.Decimal `json:"amount,omitempty"` // 密封拍卖中隐藏
	IsAuto    bool             `json:"isAuto"`
	Status    domain.BidStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AuctionStatusView 是拍卖当前状态的只读视图
type AuctionStatusView struct {
	ProductID      string                `json:"productId"`
	State          domain.LifecycleState `json:"state"`
	Sealed         bool                  `json:"sealed"`
	HasBids        bool                  `json:"hasBids"`
	CurrentBid     *decimal.Decimal      `json:"currentBid,omitempty"` // 密封拍卖中隐藏
	MinimumNextBid decimal.Decimal       `json:"minimumNextBid"`
	ReserveMet     *bool                 `json:"reserveMet,omitempty"`
	BuyNowPrice    *decimal.Decimal      `json:"buyNowPrice,omitempty"`
	StartAt        *time.Time            `json:"startAt,omitempty"`
	EndAt          *time.Time            `json:"endAt,omitempty"`
	Finalization   *domain.OutcomeReason `json:"finalization,omitempty"`
}

// maskBidder 只保留标识的首字符，例如 "user:a***"
func maskBidder(b domain.Bidder) string {
	b = b.Normalize()
	kind, id := "user", b.UserID
	if id == "" {
		kind, id = "session", b.SessionID
	}
	if id == "" {
		return ""
	}
	return kind + ":" + string([]rune(id)[:1]) + "***"
}

func toHistoryEntry(rec domain.BidRecord, sealed bool) BidHistoryEntry {
	entry := BidHistoryEntry{
		ID:        rec.ID,
		Bidder:    maskBidder(rec.Bidder),
		IsAuto:    rec.IsAuto,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
	}
	if !sealed {
		amount := rec.Amount
		entry.Amount = &amount
	}
	return entry
}
