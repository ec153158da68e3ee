package validation

import (
	"go.opentelemetry.io/otel/codes"

	"auctionhub/internal/service/auction/domain"
)

// IdentityHandler 要求出价人至少带有用户 ID 或匿名会话 ID
type IdentityHandler struct {
	NextHandler
}

func (h *IdentityHandler) Handle(bidCtx *BidContext) error {
	if bidCtx.Request.Bidder.IsZero() {
		return domain.Reject(domain.ReasonMissingBidderIdentity, "a user id or session id is required")
	}
	bidCtx.Request.Bidder = bidCtx.Request.Bidder.Normalize()
	return h.executeNext(bidCtx)
}

// AutoMaxHandler 校验自动出价上限；拍卖不允许自动出价时把请求降级为手动出价
type AutoMaxHandler struct {
	NextHandler
}

func (h *AutoMaxHandler) Handle(bidCtx *BidContext) error {
	req := &bidCtx.Request
	if req.IsAuto && !bidCtx.Config.AutomaticBiddingEnabled {
		req.IsAuto = false
		req.MaxAutoAmount = nil
	}
	if !req.IsAuto {
		req.MaxAutoAmount = nil
		return h.executeNext(bidCtx)
	}

	switch {
	case req.MaxAutoAmount == nil:
		return domain.Reject(domain.ReasonMissingAutoMax, "automatic bids need a maximum amount")
	case !req.MaxAutoAmount.IsPositive():
		return domain.Reject(domain.ReasonInvalidAutoMax, "maximum amount must be positive, got %s", req.MaxAutoAmount)
	case req.MaxAutoAmount.LessThan(req.Amount):
		return domain.Reject(domain.ReasonAutoMaxTooLow, "maximum %s is below the bid amount %s", req.MaxAutoAmount, req.Amount)
	}
	return h.executeNext(bidCtx)
}

// MinimumBidHandler 加载运行时状态并检查最低出价
type MinimumBidHandler struct {
	NextHandler
}

func (h *MinimumBidHandler) Handle(bidCtx *BidContext) error {
	ctx, span := bidCtx.Tracer.Start(bidCtx.Ctx, "validate.LoadState")
	state, err := bidCtx.States.Get(ctx, bidCtx.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "runtime state lookup failed")
		span.End()
		return domain.PersistenceFailure("load runtime state", err)
	}
	span.End()

	bidCtx.State = state
	bidCtx.MinimumRequired = domain.MinimumRequired(bidCtx.Config, state)
	if bidCtx.Request.Amount.LessThan(bidCtx.MinimumRequired) {
		return domain.Reject(domain.ReasonBidTooLow, "minimum bid is %s", bidCtx.MinimumRequired)
	}
	return h.executeNext(bidCtx)
}

// SealedHandler 在密封拍卖中限制每个出价人只能出价一次
type SealedHandler struct {
	NextHandler
}

func (h *SealedHandler) Handle(bidCtx *BidContext) error {
	if !bidCtx.Config.Sealed {
		return h.executeNext(bidCtx)
	}

	ctx, span := bidCtx.Tracer.Start(bidCtx.Ctx, "validate.SealedDuplicate")
	exists, err := bidCtx.Ledger.HasBidFrom(ctx, bidCtx.ProductID, bidCtx.Request.Bidder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger lookup failed")
		span.End()
		return domain.PersistenceFailure("sealed duplicate lookup", err)
	}
	span.End()

	if exists {
		return domain.Reject(domain.ReasonSealedDuplicateBid, "only one bid per bidder is allowed in a sealed auction")
	}
	return h.executeNext(bidCtx)
}
