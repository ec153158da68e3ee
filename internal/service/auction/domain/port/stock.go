package port

import "context"

// StockCheck 是库存校验的出站端口，出价校验的第二步会调用它。
type StockCheck interface {
	// IsAvailable 报告商品当前是否可售。
	IsAvailable(ctx context.Context, productID string) (bool, error)
}
