// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"auctionhub/internal/pkg/logger"
)

const lockRoot = "/auction_locks" // 所有商品锁的根节点

// ErrLockWaitTimeout 表示在等待时间内前一个节点没有释放
var ErrLockWaitTimeout = errors.New("timeout waiting for zookeeper lock")

// ErrLockNodeLost 表示自己的顺序节点已经不在子节点列表中，通常是会话过期
var ErrLockNodeLost = errors.New("cannot find own lock node")

// Conn 是分布式锁需要的 zk 操作子集，*zk.Conn 满足它
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 建立 zk 会话，servers 为逗号分隔的地址
func Connect(servers string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(strings.Split(servers, ","), sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper at %s: %w", servers, err)
	}
	logger.Base().Info().Str("servers", servers).Msg("✅ Successfully connected to ZooKeeper.")
	return conn, nil
}

// DistributedLock 是一个资源上的一次加锁，基于临时顺序节点排队
type DistributedLock struct {
	conn     Conn
	path     string // 例如 /auction_locks/product-123
	lockNode string // 加锁成功后自己创建的节点
}

// NewDistributedLock 确保锁路径存在并返回一个未加锁的实例
func NewDistributedLock(conn Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(conn, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err == nil && exists {
		return nil
	}
	_, err = conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create lock path node %s: %w", path, err)
	}
	return nil
}

// Lock 阻塞直到自己的节点排在最前或 ctx 结束；wait > 0 时另有等待上限
func (l *DistributedLock) Lock(ctx context.Context, wait time.Duration) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath
	var timeout <-chan time.Time
	if wait > 0 {
		deadline := time.NewTimer(wait)
		defer deadline.Stop()
		timeout = deadline.C
	}

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}
		// protected 节点带有 GUID 前缀，按序号排序
		sort.Slice(children, func(i, j int) bool { return sequenceOf(children[i]) < sequenceOf(children[j]) })

		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		prev, found := "", false
		for i, child := range children {
			if child == myNodeName {
				found = true
				if i > 0 {
					prev = children[i-1]
				}
				break
			}
		}
		// CRITICAL: 节点丢失时不能当作排在最前，否则会和现有持有者同时持锁
		if !found {
			l.abandon()
			return fmt.Errorf("%w: %s", ErrLockNodeLost, myNodeName)
		}
		if prev == "" {
			return nil
		}

		exists, _, eventChan, err := l.conn.ExistsW(l.path + "/" + prev)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
			// 前一个节点被删除或会话事件，重新竞争
		case <-timeout:
			l.abandon()
			return ErrLockWaitTimeout
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		}
	}
}

// Unlock 删除自己的节点，节点已经不存在时视为成功
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}

func (l *DistributedLock) abandon() {
	if err := l.Unlock(); err != nil {
		logger.Base().Warn().Err(err).Str("path", l.path).Msg("failed to remove abandoned lock node")
	}
}

// sequenceOf 取出节点名末尾 10 位序号
func sequenceOf(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}
