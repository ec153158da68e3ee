package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus 定义了出价记录的状态，只允许 active -> outbid 单向流转
type BidStatus string

const (
	BidStatusActive BidStatus = "active" // 仍然有效，金额最高的 active 记录即领先出价
	BidStatusOutbid BidStatus = "outbid" // 已被超越，终态
)

// CanTransitionTo 报告状态能否变为 next，重复设置同一状态是允许的
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	switch next {
	case s:
		return true
	case BidStatusOutbid:
		return s == BidStatusActive
	default:
		return false
	}
}

// Bidder 标识一个出价人：登录用户或匿名会话，二者只保留一个
type Bidder struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Normalize 去除空白，并在同时给出两个标识时以用户 ID 为准
func (b Bidder) Normalize() Bidder {
	b.UserID = strings.TrimSpace(b.UserID)
	b.SessionID = strings.TrimSpace(b.SessionID)
	if b.UserID != "" {
		b.SessionID = ""
	}
	return b
}

// IsZero 报告是否缺少任何身份标识
func (b Bidder) IsZero() bool {
	n := b.Normalize()
	return n.UserID == "" && n.SessionID == ""
}

// Key 返回用于比较与存储的唯一键，例如 "user:42" 或 "session:abc"
func (b Bidder) Key() string {
	n := b.Normalize()
	switch {
	case n.UserID != "":
		return "user:" + n.UserID
	case n.SessionID != "":
		return "session:" + n.SessionID
	default:
		return ""
	}
}

// Same 判断两个出价人是否为同一人
func (b Bidder) Same(other Bidder) bool {
	k := b.Key()
	return k != "" && k == other.Key()
}

// ParseBidderKey 是 Key 的逆操作，无法识别的输入返回零值
func ParseBidderKey(key string) Bidder {
	switch {
	case strings.HasPrefix(key, "user:"):
		return Bidder{UserID: strings.TrimPrefix(key, "user:")}
	case strings.HasPrefix(key, "session:"):
		return Bidder{SessionID: strings.TrimPrefix(key, "session:")}
	default:
		return Bidder{}
	}
}

// BidRecord 是出价账本中的一行，只追加，不删除
type BidRecord struct {
	ID            int64
	ProductID     string
	Bidder        Bidder
	Amount        decimal.Decimal
	MaxAutoAmount *decimal.Decimal // 仅自动出价时设置
	IsAuto        bool
	Status        BidStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BidRequest 是进入引擎的一次出价请求
type BidRequest struct {
	Bidder        Bidder
	IsAuto        bool
	Amount        decimal.Decimal
	MaxAutoAmount *decimal.Decimal
}

// OutcomeStatus 是返回给出价人的处理结果
type OutcomeStatus string

const (
	OutcomeAccepted     OutcomeStatus = "accepted"
	OutcomeOutbid       OutcomeStatus = "outbid"
	OutcomeProxyUpdated OutcomeStatus = "proxy_updated"
)

// BidOutcome 是一次成功处理（未被校验拒绝）的出价结果
type BidOutcome struct {
	Status     OutcomeStatus   `json:"status"`
	CurrentBid decimal.Decimal `json:"currentBid"`
	// WasOutbid 表示提交人的这次请求最终没有处于领先
	WasOutbid bool `json:"wasOutbid"`
	// AutomaticDiff 表示生效价格被代理算法改写，不等于提交金额
	AutomaticDiff bool  `json:"automaticDiff"`
	BidID         int64 `json:"bidId"`
	LeadingBidID  int64 `json:"leadingBidId"`
}
