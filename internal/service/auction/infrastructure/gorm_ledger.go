package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auctionhub/internal/service/auction/domain"
)

// GormLedger 是 domain.Ledger 的 GORM 实现
type GormLedger struct {
	db   *gorm.DB
	inTx bool
}

// NewGormLedger 创建一个新的 GORM 账本实例
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Insert(ctx context.Context, rec *domain.BidRecord) (int64, error) {
	if rec.ProductID == "" {
		return 0, errors.New("insert bid: empty product id")
	}
	model := FromDomainBid(rec)
	model.ID = 0
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, errors.Wrapf(err, "insert bid for product %s", rec.ProductID)
	}
	rec.ID = model.ID
	return model.ID, nil
}

// UpdateStatus 在事务中会对行加锁后再检查状态流转
func (l *GormLedger) UpdateStatus(ctx context.Context, id int64, status domain.BidStatus) error {
	row, err := l.loadForUpdate(ctx, id)
	if err != nil {
		return err
	}
	current := domain.BidStatus(row.Status)
	if !current.CanTransitionTo(status) {
		return errors.Wrapf(domain.ErrStatusTransition, "bid %d %s -> %s", id, current, status)
	}
	if current == status {
		return nil
	}
	err = l.db.WithContext(ctx).Model(&BidModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now().UTC()}).Error
	return errors.Wrapf(err, "update status of bid %d", id)
}

func (l *GormLedger) UpdateAmount(ctx context.Context, id int64, amount decimal.Decimal, maxAutoAmount *decimal.Decimal) error {
	updates := map[string]interface{}{"amount": amount, "updated_at": time.Now().UTC()}
	if maxAutoAmount != nil {
		updates["max_auto_amount"] = *maxAutoAmount
	}
	res := l.db.WithContext(ctx).Model(&BidModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update amount of bid %d", id)
	}
	if res.RowsAffected == 0 {
		// MySQL 对值未变化的行也返回 0，需要确认记录是否存在
		if _, err := l.loadForUpdate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *GormLedger) LeadingActive(ctx context.Context, productID string) (*domain.BidRecord, error) {
	var model BidModel
	err := l.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, string(domain.BidStatusActive)).
		Order("amount DESC, id ASC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "leading bid of product %s", productID)
	}
	return ToDomainBid(&model), nil
}

func (l *GormLedger) History(ctx context.Context, productID string, limit int, includeOutbid bool) ([]domain.BidRecord, error) {
	q := l.db.WithContext(ctx).Where("product_id = ?", productID)
	if !includeOutbid {
		q = q.Where("status = ?", string(domain.BidStatusActive))
	}
	q = q.Order("amount DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []BidModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "bid history of product %s", productID)
	}
	out := make([]domain.BidRecord, len(models))
	for i := range models {
		out[i] = *ToDomainBid(&models[i])
	}
	return out, nil
}

func (l *GormLedger) HasBidFrom(ctx context.Context, productID string, bidder domain.Bidder) (bool, error) {
	key := bidder.Key()
	if key == "" {
		return false, nil
	}
	var count int64
	err := l.db.WithContext(ctx).Model(&BidModel{}).
		Where("product_id = ? AND bidder_key = ?", productID, key).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrapf(err, "bids of %s on product %s", key, productID)
	}
	return count > 0, nil
}

// Atomically 在一个数据库事务中执行 fn，已经处于事务中时直接复用
func (l *GormLedger) Atomically(ctx context.Context, fn func(tx domain.Ledger) error) error {
	if l.inTx {
		return fn(l)
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedger{db: tx, inTx: true})
	})
}

func (l *GormLedger) loadForUpdate(ctx context.Context, id int64) (*BidModel, error) {
	q := l.db.WithContext(ctx)
	if l.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model BidModel
	err := q.Where("id = ?", id).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(domain.ErrBidNotFound, "bid %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load bid %d", id)
	}
	return &model, nil
}
