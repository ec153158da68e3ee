// internal/service/auction/application/service.go
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/service/auction/application/validation"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/domain/port"
)

// BidApplicationService 编排一次出价：商品锁、校验链、写账本、代理竞价、更新运行时状态。
type BidApplicationService struct {
	tracer  trace.Tracer
	locker  port.ProductLocker
	configs port.ConfigProvider
	stock   port.StockCheck
	ledger  domain.Ledger
	states  domain.RuntimeStateStore
	finals  domain.FinalizationStore
	metrics *Metrics
	now     func() time.Time
	chain   validation.Handler
}

// ServiceOption 调整 BidApplicationService 的可选依赖
type ServiceOption func(*BidApplicationService)

// WithClock 替换时钟，测试中用来驱动拍卖生命周期
func WithClock(now func() time.Time) ServiceOption {
	return func(s *BidApplicationService) { s.now = now }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *BidApplicationService) { s.metrics = m }
}

// WithFinalizationStore 让状态查询能带上拍卖终态
func WithFinalizationStore(store domain.FinalizationStore) ServiceOption {
	return func(s *BidApplicationService) { s.finals = store }
}

// NewBidApplicationService 创建出价服务。stock 为 nil 时跳过库存校验。
func NewBidApplicationService(tracer trace.Tracer, locker port.ProductLocker, configs port.ConfigProvider, stock port.StockCheck, ledger domain.Ledger, states domain.RuntimeStateStore, opts ...ServiceOption) *BidApplicationService {
	s := &BidApplicationService{
		tracer: tracer, locker: locker, configs: configs, stock: stock,
		ledger: ledger, states: states,
		now:   time.Now,
		chain: validation.NewChain(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid 是出价用例的入口。
// 返回的错误要么是 *domain.RejectionError（校验拒绝，没有任何写入），
// 要么包装了 domain.ErrPersistence（存储或锁失败，可重试）。
func (s *BidApplicationService) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*domain.BidOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceBid")
	defer span.End()
	started := time.Now()

	productID := strings.TrimSpace(req.ProductID)
	span.SetAttributes(
		attribute.String("auction.product_id", productID),
		attribute.Bool("bid.is_auto", req.IsAuto),
		attribute.String("bid.amount", req.Amount.String()),
	)

	outcome, res, err := s.placeBid(ctx, productID, req)
	if err != nil {
		span.RecordError(err)
		if reason, ok := domain.RejectionOf(err); ok {
			span.SetAttributes(attribute.String("bid.rejection", string(reason)))
			s.metrics.observeRejected(reason)
			logger.Ctx(ctx).Info().
				Str("product_id", productID).
				Str("reason", string(reason)).
				Msg("bid rejected")
			return nil, err
		}
		span.SetStatus(codes.Error, "bid persistence failed")
		s.metrics.observePersistenceFailure()
		logger.Ctx(ctx).Error().Err(err).Str("product_id", productID).Msg("🚨 bid could not be persisted")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("bid.case", string(res.Case)),
		attribute.String("bid.status", string(outcome.Status)),
		attribute.Int64("bid.id", outcome.BidID),
	)
	span.AddEvent("Bid resolved and persisted.")
	s.metrics.observeResolved(res.Case, outcome.Status, started)
	logger.Ctx(ctx).Info().
		Str("product_id", productID).
		Int64("bid_id", outcome.BidID).
		Str("case", string(res.Case)).
		Str("status", string(outcome.Status)).
		Str("current_bid", outcome.CurrentBid.String()).
		Msg("✅ bid resolved")
	return outcome, nil
}

func (s *BidApplicationService) placeBid(ctx context.Context, productID string, req *PlaceBidRequest) (*domain.BidOutcome, domain.Resolution, error) {
	if productID == "" {
		return nil, domain.Resolution{}, domain.Reject(domain.ReasonInvalidProduct, "product id is required")
	}

	// 读取状态、计算、写入必须在同一个商品锁内完成
	unlock, err := s.locker.Lock(ctx, productID)
	if err != nil {
		return nil, domain.Resolution{}, domain.PersistenceFailure("acquire product lock", err)
	}
	defer unlock()

	bidCtx := &validation.BidContext{
		Ctx:       ctx,
		Tracer:    s.tracer,
		Now:       s.now(),
		ProductID: productID,
		Request:   req.ToDomain(),
		Configs:   s.configs,
		Stock:     s.stock,
		Ledger:    s.ledger,
		States:    s.states,
	}
	if err := s.chain.Handle(bidCtx); err != nil {
		return nil, domain.Resolution{}, err
	}

	res, err := s.commit(ctx, bidCtx)
	if err != nil {
		return nil, domain.Resolution{}, err
	}
	return &res.Outcome, res, nil
}

// commit 先写入新的出价行，再在同一事务里应用代理竞价的结果并保存运行时状态
func (s *BidApplicationService) commit(ctx context.Context, bidCtx *validation.BidContext) (domain.Resolution, error) {
	ctx, span := s.tracer.Start(ctx, "app.CommitBid")
	defer span.End()

	req := bidCtx.Request
	record := &domain.BidRecord{
		ProductID: bidCtx.ProductID,
		Bidder:    req.Bidder,
		Amount:    req.Amount,
		IsAuto:    req.IsAuto,
		Status:    domain.BidStatusActive,
		CreatedAt: bidCtx.Now,
		UpdatedAt: bidCtx.Now,
	}
	if req.IsAuto {
		record.MaxAutoAmount = req.MaxAutoAmount
	}

	var res domain.Resolution
	stateWritten := false
	err := s.ledger.Atomically(ctx, func(tx domain.Ledger) error {
		id, err := tx.Insert(ctx, record)
		if err != nil {
			return err
		}
		res = domain.Resolve(bidCtx.Config, bidCtx.State, req, id)
		if err := domain.ApplyChanges(ctx, tx, res.Changes); err != nil {
			return err
		}
		if err := s.states.Set(ctx, bidCtx.ProductID, res.State); err != nil {
			return err
		}
		stateWritten = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bid commit failed")
		if stateWritten {
			// 账本事务提交失败但运行时状态已经写入，回滚到出价前的状态
			if restoreErr := s.states.Set(context.WithoutCancel(ctx), bidCtx.ProductID, bidCtx.State); restoreErr != nil {
				logger.Ctx(ctx).Error().Err(restoreErr).
					Str("product_id", bidCtx.ProductID).
					Msg("CRITICAL: failed to restore runtime state after ledger rollback")
				span.RecordError(restoreErr, trace.WithAttributes(attribute.Bool("critical.error", true)))
			}
		}
		return domain.Resolution{}, domain.PersistenceFailure("commit bid", err)
	}
	return res, nil
}

// History 返回商品的出价记录，limit <= 0 表示不限
func (s *BidApplicationService) History(ctx context.Context, productID string, limit int, includeOutbid bool) ([]BidHistoryEntry, error) {
	ctx, span := s.tracer.Start(ctx, "app.BidHistory")
	defer span.End()

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.Reject(domain.ReasonInvalidProduct, "product id is required")
	}
	cfg, err := s.loadConfig(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, err := s.ledger.History(ctx, productID, limit, includeOutbid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history lookup failed")
		return nil, domain.PersistenceFailure("bid history", err)
	}

	entries := make([]BidHistoryEntry, len(records))
	for i, rec := range records {
		entries[i] = toHistoryEntry(rec, cfg.Sealed)
	}
	return entries, nil
}

// Status 返回拍卖当前的只读视图，代理上限永远不会出现在结果里
func (s *BidApplicationService) Status(ctx context.Context, productID string) (*AuctionStatusView, error) {
	ctx, span := s.tracer.Start(ctx, "app.AuctionStatus")
	defer span.End()

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.Reject(domain.ReasonInvalidProduct, "product id is required")
	}
	cfg, err := s.loadConfig(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	state, err := s.states.Get(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, domain.PersistenceFailure("load runtime state", err)
	}

	view := &AuctionStatusView{
		ProductID:      productID,
		State:          cfg.Lifecycle(s.now()),
		Sealed:         cfg.Sealed,
		HasBids:        state.HasWinner(),
		MinimumNextBid: domain.MinimumRequired(cfg, state),
		StartAt:        cfg.StartAt,
		EndAt:          cfg.EndAt,
	}
	if !cfg.Sealed && state.HasWinner() {
		current := state.CurrentBid
		view.CurrentBid = &current
		if cfg.HasReserve() {
			met := !current.LessThan(cfg.ReservePrice)
			view.ReserveMet = &met
		}
	}
	if cfg.BuyNowEnabled && cfg.BuyNowPrice.IsPositive() {
		price := cfg.BuyNowPrice
		view.BuyNowPrice = &price
	}
	if s.finals != nil {
		rec, err := s.finals.Get(ctx, productID)
		if err != nil {
			span.RecordError(err)
			return nil, domain.PersistenceFailure("load finalization", err)
		}
		if rec != nil && rec.Processed {
			reason := rec.Reason
			view.Finalization = &reason
		}
	}
	return view, nil
}

func (s *BidApplicationService) loadConfig(ctx context.Context, productID string) (domain.AuctionConfig, error) {
	cfg, err := s.configs.Get(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return cfg, domain.Reject(domain.ReasonProductNotFound, "product %s does not exist", productID)
	}
	if err != nil {
		return cfg, domain.PersistenceFailure("load auction config", err)
	}
	return cfg, nil
}
