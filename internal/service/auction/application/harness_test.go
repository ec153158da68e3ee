package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"auctionhub/internal/service/auction/application"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/infrastructure"
	"auctionhub/internal/service/auction/infrastructure/lock"
)

var (
	testNow  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
	tracer   = noop.NewTracerProvider().Tracer("test")
	hourAgo  = testNow.Add(-time.Hour).Format(time.RFC3339)
	inAnHour = testNow.Add(time.Hour).Format(time.RFC3339)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// stockFunc 让测试直接用函数充当库存校验
type stockFunc func(ctx context.Context, productID string) (bool, error)

func (f stockFunc) IsAvailable(ctx context.Context, productID string) (bool, error) {
	return f(ctx, productID)
}

// recordingSink 记录所有赢家通知
type recordingSink struct {
	mu     sync.Mutex
	events []domain.WinnerDeclared
	err    error
}

func (s *recordingSink) WinnerDeclared(ctx context.Context, ev domain.WinnerDeclared) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// flakyLedger 在指定操作上注入失败
type flakyLedger struct {
	*infrastructure.MemoryLedger
	failInsert bool
	failUpdate bool
}

func (l *flakyLedger) Insert(ctx context.Context, rec *domain.BidRecord) (int64, error) {
	if l.failInsert {
		return 0, errBoom
	}
	return l.MemoryLedger.Insert(ctx, rec)
}

func (l *flakyLedger) Atomically(ctx context.Context, fn func(tx domain.Ledger) error) error {
	return l.MemoryLedger.Atomically(ctx, func(tx domain.Ledger) error {
		return fn(&flakyTx{Ledger: tx, parent: l})
	})
}

type flakyTx struct {
	domain.Ledger
	parent *flakyLedger
}

func (t *flakyTx) Insert(ctx context.Context, rec *domain.BidRecord) (int64, error) {
	if t.parent.failInsert {
		return 0, errBoom
	}
	return t.Ledger.Insert(ctx, rec)
}

func (t *flakyTx) UpdateStatus(ctx context.Context, id int64, status domain.BidStatus) error {
	if t.parent.failUpdate {
		return errBoom
	}
	return t.Ledger.UpdateStatus(ctx, id, status)
}

// failingStates 的 Set 总是失败
type failingStates struct {
	*infrastructure.MemoryStateStore
}

func (s failingStates) Set(ctx context.Context, productID string, state domain.RuntimeState) error {
	return errBoom
}

type harness struct {
	catalog *infrastructure.MemoryAuctionCatalog
	ledger  *infrastructure.MemoryLedger
	states  *infrastructure.MemoryStateStore
	finals  *infrastructure.MemoryFinalizationStore
	locker  *lock.MemoryLocker
	sink    *recordingSink
	now     time.Time
	inStock bool
	service *application.BidApplicationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:  infrastructure.NewMemoryLedger(),
		states:  infrastructure.NewMemoryStateStore(),
		finals:  infrastructure.NewMemoryFinalizationStore(),
		locker:  lock.NewMemoryLocker(time.Second),
		sink:    &recordingSink{},
		now:     testNow,
		inStock: true,
	}
	h.catalog = infrastructure.NewMemoryAuctionCatalog(domain.ResolveOptions{}, h.finals)
	h.service = h.newService(h.ledger, h.states)
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) newService(ledger domain.Ledger, states domain.RuntimeStateStore) *application.BidApplicationService {
	stock := stockFunc(func(ctx context.Context, productID string) (bool, error) {
		return h.inStock, nil
	})
	return application.NewBidApplicationService(tracer, h.locker, h.catalog, stock, ledger, states,
		application.WithClock(h.clock),
		application.WithFinalizationStore(h.finals),
		application.WithMetrics(application.NewMetrics(prometheus.NewRegistry())),
	)
}

func (h *harness) newFinalizer(batch int) *application.Finalizer {
	return application.NewFinalizer(tracer, h.locker, h.catalog, h.catalog, h.ledger, h.finals, h.sink,
		application.FinalizerConfig{BatchSize: batch, Parallelism: 2},
		application.WithFinalizerClock(h.clock),
		application.WithFinalizerMetrics(application.NewMetrics(prometheus.NewRegistry())),
	)
}

// auction 注册一个起拍价 10、加价 2、允许自动出价、正在进行中的拍卖
func (h *harness) auction(id string, mutate ...func(*domain.RawSettings)) {
	raw := domain.RawSettings{
		ProductID:        id,
		Enabled:          "yes",
		StartPrice:       "10",
		BidIncrement:     "2",
		AutomaticBidding: "yes",
		StartAt:          hourAgo,
		EndAt:            inAnHour,
	}
	for _, m := range mutate {
		m(&raw)
	}
	h.catalog.Put(raw)
}

func (h *harness) bid(t *testing.T, productID, user, amount string) (*domain.BidOutcome, error) {
	t.Helper()
	return h.service.PlaceBid(context.Background(), &application.PlaceBidRequest{
		ProductID: productID, UserID: user, Amount: dec(amount),
	})
}

func (h *harness) autoBid(t *testing.T, productID, user, amount, maxAuto string) (*domain.BidOutcome, error) {
	t.Helper()
	return h.service.PlaceBid(context.Background(), &application.PlaceBidRequest{
		ProductID: productID, UserID: user, IsAuto: true, Amount: dec(amount), MaxAutoAmount: decPtr(maxAuto),
	})
}

func (h *harness) state(t *testing.T, productID string) domain.RuntimeState {
	t.Helper()
	st, err := h.states.Get(context.Background(), productID)
	require.NoError(t, err)
	return st
}

func (h *harness) row(t *testing.T, id int64) domain.BidRecord {
	t.Helper()
	rec, ok := h.ledger.Get(id)
	require.True(t, ok, "bid %d not found", id)
	return rec
}

func requireRejected(t *testing.T, err error, want domain.RejectionReason) {
	t.Helper()
	require.Error(t, err)
	reason, ok := domain.RejectionOf(err)
	require.True(t, ok, "expected rejection %s, got %v", want, err)
	require.Equal(t, want, reason)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
