package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auctionhub/internal/service/auction/domain"
)

// GormAuctionCatalog 读取 auction_settings 表，
// 同时实现 port.ConfigProvider 和 port.AuctionCatalog。
// 不缓存配置：每次解析都读库，只把同一时刻对同一商品的并发读取合并为一次。
type GormAuctionCatalog struct {
	db    *gorm.DB
	opts  domain.ResolveOptions
	group singleflight.Group
}

func NewGormAuctionCatalog(db *gorm.DB, opts domain.ResolveOptions) *GormAuctionCatalog {
	return &GormAuctionCatalog{db: db, opts: opts}
}

func (c *GormAuctionCatalog) Get(ctx context.Context, productID string) (domain.AuctionConfig, error) {
	v, err, _ := c.group.Do(productID, func() (interface{}, error) {
		var model AuctionSettingsModel
		err := c.db.WithContext(ctx).Where("product_id = ?", productID).Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load auction settings of %s", productID)
		}
		return ToRawSettings(&model), nil
	})
	if err != nil {
		return domain.AuctionConfig{}, err
	}
	return domain.ResolveConfig(v.(domain.RawSettings), c.opts), nil
}

// Put 新增或覆盖一个商品的拍卖设置
func (c *GormAuctionCatalog) Put(ctx context.Context, raw domain.RawSettings) error {
	model := FromRawSettings(raw, c.opts)
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		UpdateAll: true,
	}).Create(model).Error
	return errors.Wrapf(err, "save auction settings of %s", raw.ProductID)
}

// EndedUnprocessed 按结束时间先后返回已结束且没有终态的拍卖
func (c *GormAuctionCatalog) EndedUnprocessed(ctx context.Context, now time.Time, limit int) ([]string, error) {
	q := c.db.WithContext(ctx).
		Table(AuctionSettingsModel{}.TableName()+" AS s").
		Select("s.product_id").
		Joins("LEFT JOIN "+FinalizationModel{}.TableName()+" AS f ON f.product_id = s.product_id").
		Where("s.auction_enabled = ? AND s.ends_at IS NOT NULL AND s.ends_at < ?", true, now.UTC()).
		Where("f.product_id IS NULL OR f.processed = ?", false).
		Order("s.ends_at ASC, s.product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var ids []string
	if err := q.Pluck("s.product_id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list ended auctions")
	}
	return ids, nil
}
