package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/redis"
	"auctionhub/internal/service/auction/domain/port"
)

const (
	releaseScriptName = "auction_lock_release"
	renewScriptName   = "auction_lock_renew"
)

// releaseScript 只删除自己持有的锁，避免锁过期后误删别人的锁
var releaseScript = `
-- KEYS[1]: 锁的 Key, 例如: auction:lock:{product_123}
-- ARGV[1]: 加锁时写入的随机令牌
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// renewScript 只给自己仍然持有的锁续期
var renewScript = `
-- KEYS[1]: 锁的 Key
-- ARGV[1]: 加锁时写入的随机令牌
-- ARGV[2]: 新的过期时间（毫秒）
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('pexpire', KEYS[1], ARGV[2])
end
return 0
`

// RedisLocker 是基于 SET NX PX 的商品锁，跨实例生效
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker 加载释放和续期脚本。持锁期间每 ttl/3 续期一次，
// 进程崩溃时锁最多在 ttl 后过期。wait <= 0 表示只受 ctx 约束。
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load lock release script: %w", err)
	}
	if err := client.LoadScriptFromContent(renewScriptName, renewScript); err != nil {
		return nil, fmt.Errorf("failed to load lock renew script: %w", err)
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 10 * time.Millisecond}, nil
}

func lockKey(productID string) string {
	return fmt.Sprintf("auction:lock:{%s}", productID)
}

func (l *RedisLocker) Lock(ctx context.Context, productID string) (func(), error) {
	key := lockKey(productID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.GetClient().SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			go l.keepAlive(ctx, key, token, stop)
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					l.release(ctx, key, token)
				})
			}, nil
		}
		if l.wait > 0 && time.Now().After(deadline) {
			return nil, port.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// keepAlive 在 stop 关闭前定期续期，续期失败说明锁已经丢失
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	renewCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		res, err := l.client.RunScript(renewCtx, renewScriptName, []string{key}, token, l.ttl.Milliseconds())
		if err != nil {
			// 网络抖动时下一轮再试，锁还有剩余 ttl
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to renew redis lock")
			continue
		}
		if n, _ := res.(int64); n == 0 {
			logger.Ctx(ctx).Error().Str("key", key).Msg("🚨 redis lock lost before release")
			return
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, token string) {
	// 请求 ctx 可能已经取消，释放锁不能因此跳过
	res, err := l.client.RunScript(context.WithoutCancel(ctx), releaseScriptName, []string{key}, token)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to release redis lock, it will expire by ttl")
		return
	}
	if n, _ := res.(int64); n == 0 {
		logger.Ctx(ctx).Warn().Str("key", key).Msg("redis lock expired before release")
	}
}
