package validation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/domain/port"
)

// BidContext 在校验链中传递一次出价的上下文。
// 校验链运行在商品锁之内，链上的处理器按需把配置和运行时状态加载进来。
type BidContext struct {
	Ctx       context.Context
	Tracer    trace.Tracer
	Now       time.Time
	ProductID string
	Request   domain.BidRequest

	// 由链上的处理器填充
	Config          domain.AuctionConfig
	State           domain.RuntimeState
	MinimumRequired decimal.Decimal

	// 出站端口
	Configs port.ConfigProvider
	Stock   port.StockCheck
	Ledger  domain.Ledger
	States  domain.RuntimeStateStore
}

// Handler 是校验链上的一个环节，第一个失败的环节决定拒绝原因
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(bidCtx *BidContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(bidCtx *BidContext) error {
	if h.next != nil {
		return h.next.Handle(bidCtx)
	}
	return nil
}

// NewChain 按固定顺序组装校验链
func NewChain() Handler {
	chain := new(ProductHandler)
	chain.
		SetNext(new(ClockHandler)).
		SetNext(new(StockHandler)).
		SetNext(new(IdentityHandler)).
		SetNext(new(AutoMaxHandler)).
		SetNext(new(MinimumBidHandler)).
		SetNext(new(SealedHandler))
	return chain
}
