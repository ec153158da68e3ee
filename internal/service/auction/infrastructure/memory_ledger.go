package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"auctionhub/internal/service/auction/domain"
)

// MemoryLedger 是进程内的出价账本，用于单实例部署和测试。
type MemoryLedger struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*domain.BidRecord
	byProduct map[string][]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		rows:      make(map[int64]*domain.BidRecord),
		byProduct: make(map[string][]int64),
	}
}

func (l *MemoryLedger) Insert(ctx context.Context, rec *domain.BidRecord) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insert(rec, nil)
}

func (l *MemoryLedger) UpdateStatus(ctx context.Context, id int64, status domain.BidStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateStatus(id, status, nil)
}

func (l *MemoryLedger) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, maxAutoAmount *decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateAmount(id, amount, maxAutoAmount, nil)
}

func (l *MemoryLedger) LeadingActive(ctx context.Context, productID string) (*domain.BidRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.leadingActive(productID), nil
}

func (l *MemoryLedger) History(ctx context.Context, productID string, limit int, includeOutbid bool) ([]domain.BidRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history(productID, limit, includeOutbid), nil
}

func (l *MemoryLedger) HasBidFrom(ctx context.Context, productID string, bidder domain.Bidder) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasBidFrom(productID, bidder), nil
}

// Atomically 持有账本锁执行 fn，fn 失败时按撤销日志恢复所有改动
func (l *MemoryLedger) Atomically(ctx context.Context, fn func(tx domain.Ledger) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memoryLedgerTx{ledger: l, saved: make(map[int64]domain.BidRecord)}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Len 返回账本中的记录总数
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// Get 按 ID 返回记录副本
func (l *MemoryLedger) Get(id int64) (domain.BidRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rows[id]
	if !ok {
		return domain.BidRecord{}, false
	}
	return cloneRecord(rec), true
}

// --- 以下方法要求调用方已持有 l.mu ---

func (l *MemoryLedger) insert(rec *domain.BidRecord, tx *memoryLedgerTx) (int64, error) {
	if rec.ProductID == "" {
		return 0, fmt.Errorf("insert bid: empty product id")
	}
	l.nextID++
	stored := cloneRecord(rec)
	stored.ID = l.nextID
	stored.Bidder = stored.Bidder.Normalize()
	if stored.Status == "" {
		stored.Status = domain.BidStatusActive
	}
	l.rows[stored.ID] = &stored
	l.byProduct[stored.ProductID] = append(l.byProduct[stored.ProductID], stored.ID)
	if tx != nil {
		tx.inserted = append(tx.inserted, stored.ID)
	}
	rec.ID = stored.ID
	return stored.ID, nil
}

func (l *MemoryLedger) updateStatus(id int64, status domain.BidStatus, tx *memoryLedgerTx) error {
	row, ok := l.rows[id]
	if !ok {
		return fmt.Errorf("update status of bid %d: %w", id, domain.ErrBidNotFound)
	}
	if !row.Status.CanTransitionTo(status) {
		return fmt.Errorf("bid %d %s -> %s: %w", id, row.Status, status, domain.ErrStatusTransition)
	}
	tx.remember(row)
	row.Status = status
	return nil
}

func (l *MemoryLedger) updateAmount(id int64, amount decimal.Decimal, maxAutoAmount *decimal.Decimal, tx *memoryLedgerTx) error {
	row, ok := l.rows[id]
	if !ok {
		return fmt.Errorf("update amount of bid %d: %w", id, domain.ErrBidNotFound)
	}
	tx.remember(row)
	row.Amount = amount
	if maxAutoAmount != nil {
		m := *maxAutoAmount
		row.MaxAutoAmount = &m
	}
	return nil
}

func (l *MemoryLedger) leadingActive(productID string) *domain.BidRecord {
	var best *domain.BidRecord
	for _, id := range l.byProduct[productID] {
		row := l.rows[id]
		if row.Status != domain.BidStatusActive {
			continue
		}
		if best == nil || row.Amount.GreaterThan(best.Amount) {
			best = row
		}
	}
	if best == nil {
		return nil
	}
	out := cloneRecord(best)
	return &out
}

func (l *MemoryLedger) history(productID string, limit int, includeOutbid bool) []domain.BidRecord {
	var out []domain.BidRecord
	for _, id := range l.byProduct[productID] {
		row := l.rows[id]
		if !includeOutbid && row.Status != domain.BidStatusActive {
			continue
		}
		out = append(out, cloneRecord(row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *MemoryLedger) hasBidFrom(productID string, bidder domain.Bidder) bool {
	for _, id := range l.byProduct[productID] {
		if l.rows[id].Bidder.Same(bidder) {
			return true
		}
	}
	return false
}

// memoryLedgerTx 在 Atomically 期间代替 MemoryLedger，记录撤销信息
type memoryLedgerTx struct {
	ledger   *MemoryLedger
	inserted []int64
	saved    map[int64]domain.BidRecord
}

func (tx *memoryLedgerTx) remember(row *domain.BidRecord) {
	if tx == nil {
		return
	}
	if _, ok := tx.saved[row.ID]; !ok {
		tx.saved[row.ID] = cloneRecord(row)
	}
}

func (tx *memoryLedgerTx) rollback() {
	l := tx.ledger
	for id, rec := range tx.saved {
		if row, ok := l.rows[id]; ok {
			*row = rec
		}
	}
	for i := len(tx.inserted) - 1; i >= 0; i-- {
		id := tx.inserted[i]
		row := l.rows[id]
		delete(l.rows, id)
		ids := l.byProduct[row.ProductID]
		if n := len(ids); n > 0 && ids[n-1] == id {
			l.byProduct[row.ProductID] = ids[:n-1]
		}
	}
}

func (tx *memoryLedgerTx) Insert(ctx context.Context, rec *domain.BidRecord) (int64, error) {
	return tx.ledger.insert(rec, tx)
}

func (tx *memoryLedgerTx) UpdateStatus(ctx context.Context, id int64, status domain.BidStatus) error {
	return tx.ledger.updateStatus(id, status, tx)
}

func (tx *memoryLedgerTx) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, maxAutoAmount *decimal.Decimal) error {
	return tx.ledger.updateAmount(id, amount, maxAutoAmount, tx)
}

func (tx *memoryLedgerTx) LeadingActive(ctx context.Context, productID string) (*domain.BidRecord, error) {
	return tx.ledger.leadingActive(productID), nil
}

func (tx *memoryLedgerTx) History(ctx context.Context, productID string, limit int, includeOutbid bool) ([]domain.BidRecord, error) {
	return tx.ledger.history(productID, limit, includeOutbid), nil
}

func (tx *memoryLedgerTx) HasBidFrom(ctx context.Context, productID string, bidder domain.Bidder) (bool, error) {
	return tx.ledger.hasBidFrom(productID, bidder), nil
}

func (tx *memoryLedgerTx) Atomically(ctx context.Context, fn func(tx domain.Ledger) error) error {
	return fn(tx)
}

func cloneRecord(rec *domain.BidRecord) domain.BidRecord {
	out := *rec
	if rec.MaxAutoAmount != nil {
		m := *rec.MaxAutoAmount
		out.MaxAutoAmount = &m
	}
	return out
}
