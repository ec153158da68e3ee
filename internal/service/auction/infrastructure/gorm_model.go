package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// BidModel 对应数据库中的 auction_bid 表，只追加，不删除
type BidModel struct {
	ID            int64               `gorm:"primaryKey;autoIncrement"`
	ProductID     string              `gorm:"type:varchar(64);not null;index:idx_bid_product_status_amount,priority:1;index:idx_bid_product_bidder,priority:1"`
	BidderKey     string              `gorm:"type:varchar(191);not null;index:idx_bid_product_bidder,priority:2"`
	Amount        decimal.Decimal     `gorm:"type:decimal(20,4);not null;index:idx_bid_product_status_amount,priority:3"`
	MaxAutoAmount decimal.NullDecimal `gorm:"type:decimal(20,4)"`
	IsAuto        bool                `gorm:"not null;default:false"`
	Status        string              `gorm:"type:varchar(16);not null;index:idx_bid_product_status_amount,priority:2"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (BidModel) TableName() string {
	return "auction_bid"
}

// AuctionSettingsModel 对应 auction_settings 表，保存商品上的原始拍卖设置。
// 所有设置都以字符串保存，由 domain.ResolveConfig 宽松解析。
type AuctionSettingsModel struct {
	ProductID               string `gorm:"primaryKey;type:varchar(64)"`
	Enabled                 string `gorm:"type:varchar(16)"`
	StartPrice              string `gorm:"type:varchar(32)"`
	BidIncrement            string `gorm:"type:varchar(32)"`
	ReservePrice            string `gorm:"type:varchar(32)"`
	BuyNowEnabled           string `gorm:"type:varchar(16)"`
	BuyNowPrice             string `gorm:"type:varchar(32)"`
	Sealed                  string `gorm:"type:varchar(16)"`
	AutomaticBidding        string `gorm:"type:varchar(16)"`
	IncrementMode           string `gorm:"type:varchar(16)"`
	AutomaticIncrementValue string `gorm:"type:varchar(32)"`
	IncrementRules          string `gorm:"type:text"`
	StartAt                 string `gorm:"type:varchar(64)"`
	EndAt                   string `gorm:"type:varchar(64)"`
	// 以下两列是解析后的结果，只用于结束处理器筛选候选
	AuctionEnabled bool         `gorm:"not null;default:false"`
	EndsAt         sql.NullTime `gorm:"index"`
	UpdatedAt      time.Time
}

func (AuctionSettingsModel) TableName() string {
	return "auction_settings"
}

// FinalizationModel 对应 auction_finalization 表，每个商品最多一行
type FinalizationModel struct {
	ProductID     string          `gorm:"primaryKey;type:varchar(64)"`
	Processed     bool            `gorm:"not null"`
	Reason        string          `gorm:"type:varchar(32);not null"`
	WinnerKey     string          `gorm:"type:varchar(191)"`
	WinningBidID  int64           `gorm:"default:0"`
	WinningAmount decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	WinningTime   sql.NullTime
	ProcessedAt   time.Time `gorm:"not null"`
}

func (FinalizationModel) TableName() string {
	return "auction_finalization"
}

// Models 返回需要 AutoMigrate 的全部模型
func Models() []interface{} {
	return []interface{}{&BidModel{}, &AuctionSettingsModel{}, &FinalizationModel{}}
}
