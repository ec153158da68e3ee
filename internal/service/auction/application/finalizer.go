// internal/service/auction/application/finalizer.go
package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/tracing"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/domain/port"
)

const (
	defaultBatchSize   = 50
	defaultParallelism = 4
)

// FinalizerConfig 控制一次扫描处理多少个拍卖
type FinalizerConfig struct {
	BatchSize   int
	Parallelism int
}

// SweepReport 汇总一次扫描的结果
type SweepReport struct {
	Candidates int                          `json:"candidates"`
	Finalized  map[domain.OutcomeReason]int `json:"finalized"`
	Skipped    int                          `json:"skipped"`
	Failed     int                          `json:"failed"`
}

// Finalizer 把已经结束、尚未处理的拍卖推进到终态
type Finalizer struct {
	tracer   trace.Tracer
	locker   port.ProductLocker
	configs  port.ConfigProvider
	catalog  port.AuctionCatalog
	ledger   domain.Ledger
	finals   domain.FinalizationStore
	notifier port.NotificationSink
	metrics  *Metrics
	cfg      FinalizerConfig
	now      func() time.Time
	newID    func() string
}

// FinalizerOption 调整 Finalizer 的可选依赖
type FinalizerOption func(*Finalizer)

// WithFinalizerClock 替换时钟
func WithFinalizerClock(now func() time.Time) FinalizerOption {
	return func(f *Finalizer) { f.now = now }
}

// WithFinalizerMetrics 设置指标收集器
func WithFinalizerMetrics(m *Metrics) FinalizerOption {
	return func(f *Finalizer) { f.metrics = m }
}

func NewFinalizer(tracer trace.Tracer, locker port.ProductLocker, configs port.ConfigProvider, catalog port.AuctionCatalog, ledger domain.Ledger, finals domain.FinalizationStore, notifier port.NotificationSink, cfg FinalizerConfig, opts ...FinalizerOption) *Finalizer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	f := &Finalizer{
		tracer: tracer, locker: locker, configs: configs, catalog: catalog,
		ledger: ledger, finals: finals, notifier: notifier, cfg: cfg,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ProcessEnded 处理最多 BatchSize 个已结束的拍卖，剩余的留给下一次调度。
// 单个拍卖的失败只计入报告，不会中断整个批次；只有候选查询失败时才返回错误。
func (f *Finalizer) ProcessEnded(ctx context.Context) (SweepReport, error) {
	ctx, span := f.tracer.Start(ctx, "app.ProcessEndedAuctions")
	defer span.End()

	report := SweepReport{Finalized: map[domain.OutcomeReason]int{}}
	candidates, err := f.catalog.EndedUnprocessed(ctx, f.now(), f.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate lookup failed")
		return report, domain.PersistenceFailure("list ended auctions", err)
	}
	report.Candidates = len(candidates)
	span.SetAttributes(attribute.Int("finalizer.candidates", len(candidates)))
	if len(candidates) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Parallelism)
	for _, productID := range candidates {
		productID := productID
		g.Go(func() error {
			rec, err := f.FinalizeAuction(gctx, productID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrAlreadyFinalized):
				report.Skipped++
			case err != nil:
				report.Failed++
				logger.Ctx(gctx).Error().Err(err).Str("product_id", productID).Msg("auction finalization failed, will retry on next sweep")
			default:
				report.Finalized[rec.Reason]++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Ctx(ctx).Info().
		Int("candidates", report.Candidates).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Interface("finalized", report.Finalized).
		Msg("✅ finalizer sweep completed")
	return report, nil
}

// FinalizeAuction 在商品锁内为一个拍卖写入终态。
// 已处理过的拍卖返回 domain.ErrAlreadyFinalized，且不会重复通知。
func (f *Finalizer) FinalizeAuction(ctx context.Context, productID string) (*domain.FinalizationRecord, error) {
	ctx, span := f.tracer.Start(ctx, "app.FinalizeAuction")
	defer span.End()
	span.SetAttributes(attribute.String("auction.product_id", productID))

	unlock, err := f.locker.Lock(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, domain.PersistenceFailure("acquire product lock", err)
	}
	defer unlock()

	existing, err := f.finals.Get(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, domain.PersistenceFailure("load finalization", err)
	}
	if existing != nil && existing.Processed {
		span.AddEvent("Auction already finalized, skipping.")
		return existing, domain.ErrAlreadyFinalized
	}

	cfg, err := f.configs.Get(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		// 商品被删除：按没有时间表处理，时钟复核会得出无赢家
		cfg = domain.AuctionConfig{ProductID: productID}
	} else if err != nil {
		span.RecordError(err)
		return nil, domain.PersistenceFailure("load auction config", err)
	}
	cfg.ProductID = productID

	leading, err := f.ledger.LeadingActive(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, domain.PersistenceFailure("load leading bid", err)
	}

	rec := domain.Decide(cfg, f.now(), leading)
	if err := f.finals.Save(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyFinalized) {
			return &rec, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalization save failed")
		return nil, domain.PersistenceFailure("save finalization", err)
	}

	span.SetAttributes(attribute.String("auction.outcome", string(rec.Reason)))
	f.metrics.observeFinalized(rec.Reason)
	logger.Ctx(ctx).Info().
		Str("product_id", productID).
		Str("reason", string(rec.Reason)).
		Str("amount", rec.WinningAmount.String()).
		Msg("🛑 auction finalized")

	if rec.HasWinner() {
		f.notifyWinner(ctx, rec)
	}
	return &rec, nil
}

// notifyWinner 只触发通知，失败不影响已经写入的终态
func (f *Finalizer) notifyWinner(ctx context.Context, rec domain.FinalizationRecord) {
	if f.notifier == nil {
		return
	}
	event := domain.NewWinnerDeclared(f.newID(), rec)
	event.TraceID = tracing.GetTraceIDFromContext(ctx)

	if err := f.notifier.WinnerDeclared(ctx, event); err != nil {
		f.metrics.observeNotifyFailure()
		trace.SpanFromContext(ctx).RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("product_id", rec.ProductID).
			Str("event_id", event.EventID).
			Msg("🚨 winner notification failed, finalization kept")
	}
}
