package validation

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"auctionhub/internal/service/auction/domain"
)

// ProductHandler 加载拍卖配置并确认商品开启了拍卖
type ProductHandler struct {
	NextHandler
}

func (h *ProductHandler) Handle(bidCtx *BidContext) error {
	if bidCtx.ProductID == "" {
		return domain.Reject(domain.ReasonInvalidProduct, "product id is required")
	}

	ctx, span := bidCtx.Tracer.Start(bidCtx.Ctx, "validate.LoadConfig")
	cfg, err := bidCtx.Configs.Get(ctx, bidCtx.ProductID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "config lookup failed")
		span.End()
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Reject(domain.ReasonProductNotFound, "product %s does not exist", bidCtx.ProductID)
		}
		return domain.PersistenceFailure("load auction config", err)
	}
	span.End()

	if !cfg.Enabled {
		return domain.Reject(domain.ReasonAuctionNotEnabled, "product %s is not an auction", bidCtx.ProductID)
	}
	bidCtx.Config = cfg
	return h.executeNext(bidCtx)
}

// ClockHandler 拒绝尚未开始或已经结束的拍卖
type ClockHandler struct {
	NextHandler
}

func (h *ClockHandler) Handle(bidCtx *BidContext) error {
	switch bidCtx.Config.Lifecycle(bidCtx.Now) {
	case domain.LifecycleScheduled:
		return domain.Reject(domain.ReasonNotStarted, "auction starts at %s", bidCtx.Config.StartAt.Format("2006-01-02 15:04:05 MST"))
	case domain.LifecycleEnded:
		return domain.Reject(domain.ReasonAlreadyEnded, "auction ended at %s", bidCtx.Config.EndAt.Format("2006-01-02 15:04:05 MST"))
	}
	return h.executeNext(bidCtx)
}

// StockHandler 询问库存方商品是否仍可售
type StockHandler struct {
	NextHandler
}

func (h *StockHandler) Handle(bidCtx *BidContext) error {
	if bidCtx.Stock == nil {
		return h.executeNext(bidCtx)
	}

	ctx, span := bidCtx.Tracer.Start(bidCtx.Ctx, "validate.StockCheck")
	available, err := bidCtx.Stock.IsAvailable(ctx, bidCtx.ProductID)
	span.SetAttributes(attribute.Bool("stock.available", available))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock check failed")
		span.End()
		return domain.PersistenceFailure("stock check", err)
	}
	span.End()

	if !available {
		return domain.Reject(domain.ReasonOutOfStock, "product %s is not purchasable", bidCtx.ProductID)
	}
	return h.executeNext(bidCtx)
}
