package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auctionhub/internal/service/auction/domain"
)

// GormFinalizationStore 是 domain.FinalizationStore 的 GORM 实现，
// 主键保证每个商品只有一行终态。
type GormFinalizationStore struct {
	db *gorm.DB
}

func NewGormFinalizationStore(db *gorm.DB) *GormFinalizationStore {
	return &GormFinalizationStore{db: db}
}

func (s *GormFinalizationStore) Get(ctx context.Context, productID string) (*domain.FinalizationRecord, error) {
	var model FinalizationModel
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load finalization of %s", productID)
	}
	return ToDomainFinalization(&model), nil
}

// Save 使用 INSERT IGNORE 语义，已有记录时返回 domain.ErrAlreadyFinalized
func (s *GormFinalizationStore) Save(ctx context.Context, rec domain.FinalizationRecord) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(FromDomainFinalization(rec))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "save finalization of %s", rec.ProductID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyFinalized
	}
	return nil
}
