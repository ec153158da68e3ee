package port

import (
	"context"
	"errors"
)

// ErrLockTimeout 表示在等待时间内没有拿到商品锁
var ErrLockTimeout = errors.New("product lock wait timeout")

// ProductLocker 提供按商品串行化的临界区。
// 不同商品之间互不影响。
type ProductLocker interface {
	// Lock 阻塞直到获得商品锁、ctx 结束或等待超时，返回的 unlock 必须被调用。
	Lock(ctx context.Context, productID string) (unlock func(), err error)
}
