package lock

import (
	"context"
	"sync"
	"time"

	"auctionhub/internal/service/auction/domain/port"
)

// MemoryLocker 是进程内按商品划分的互斥锁
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker 创建锁；wait <= 0 表示只受 ctx 约束
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock), wait: wait}
}

func (l *MemoryLocker) Lock(ctx context.Context, productID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[productID]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[productID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(productID, kl)
		return nil, ctx.Err()
	case <-timeout:
		l.release(productID, kl)
		return nil, port.ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(productID, kl)
		})
	}, nil
}

func (l *MemoryLocker) release(productID string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, productID)
	}
}
