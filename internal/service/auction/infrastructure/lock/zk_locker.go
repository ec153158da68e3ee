package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/zookeeper"
	"auctionhub/internal/service/auction/domain/port"
)

// ZKLocker 用 zookeeper 临时顺序节点实现商品锁，会话断开时锁自动释放
type ZKLocker struct {
	conn zookeeper.Conn
	wait time.Duration
}

func NewZKLocker(conn zookeeper.Conn, wait time.Duration) *ZKLocker {
	return &ZKLocker{conn: conn, wait: wait}
}

func (l *ZKLocker) Lock(ctx context.Context, productID string) (func(), error) {
	dl, err := zookeeper.NewDistributedLock(l.conn, productID)
	if err != nil {
		return nil, err
	}
	if err := dl.Lock(ctx, l.wait); err != nil {
		if errors.Is(err, zookeeper.ErrLockWaitTimeout) {
			return nil, port.ErrLockTimeout
		}
		return nil, fmt.Errorf("zookeeper lock %s: %w", productID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := dl.Unlock(); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("product_id", productID).Msg("failed to release zookeeper lock")
			}
		})
	}, nil
}
