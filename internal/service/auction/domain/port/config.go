package port

import (
	"context"
	"time"

	"auctionhub/internal/service/auction/domain"
)

// ConfigProvider 是拍卖配置的出站端口，每次出价解析时调用一次。
type ConfigProvider interface {
	// Get 返回商品的拍卖配置，商品不存在时返回 domain.ErrProductNotFound。
	Get(ctx context.Context, productID string) (domain.AuctionConfig, error)
}

// AuctionCatalog 为结束处理器提供候选拍卖。
type AuctionCatalog interface {
	// EndedUnprocessed 返回在 now 之前已经结束、且尚未写入终态的商品，最多 limit 个。
	EndedUnprocessed(ctx context.Context, now time.Time, limit int) ([]string, error)
}
