package zookeeper

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn 是一个内存版的 zk 节点树，只实现锁用到的操作
type fakeConn struct {
	mu       sync.Mutex
	nodes    map[string]bool
	watchers map[string][]chan zk.Event
	seq      int
	// dropNext 为 true 时下一次创建的顺序节点立即消失，模拟会话过期
	dropNext bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{nodes: map[string]bool{}, watchers: map[string][]chan zk.Event{}}
}

func (c *fakeConn) Exists(p string) (bool, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[p], &zk.Stat{}, nil
}

func (c *fakeConn) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan zk.Event, 1)
	c.watchers[p] = append(c.watchers[p], ch)
	return c.nodes[p], &zk.Stat{}, ch, nil
}

func (c *fakeConn) Create(p string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodes[p] {
		return "", zk.ErrNodeExists
	}
	c.nodes[p] = true
	return p, nil
}

func (c *fakeConn) CreateProtectedEphemeralSequential(p string, data []byte, acl []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	dir, base := path.Split(p)
	node := fmt.Sprintf("%s_c_%d-%s%010d", dir, c.seq, base, c.seq)
	if c.dropNext {
		c.dropNext = false
		return node, nil
	}
	c.nodes[node] = true
	return node, nil
}

func (c *fakeConn) Children(p string) ([]string, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for n := range c.nodes {
		if strings.HasPrefix(n, p+"/") && !strings.Contains(strings.TrimPrefix(n, p+"/"), "/") {
			out = append(out, strings.TrimPrefix(n, p+"/"))
		}
	}
	return out, &zk.Stat{}, nil
}

func (c *fakeConn) Delete(p string, version int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nodes[p] {
		return zk.ErrNoNode
	}
	delete(c.nodes, p)
	for _, ch := range c.watchers[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
	}
	delete(c.watchers, p)
	return nil
}

func TestDistributedLockSerializesHolders(t *testing.T) {
	conn := newFakeConn()

	first, err := NewDistributedLock(conn, "p-1")
	require.NoError(t, err)
	require.NoError(t, first.Lock(context.Background(), time.Second))

	second, err := NewDistributedLock(conn, "p-1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(context.Background(), 2*time.Second) }()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	require.NoError(t, second.Unlock())
}

func TestDistributedLockWaitTimeoutRemovesNode(t *testing.T) {
	conn := newFakeConn()

	holder, err := NewDistributedLock(conn, "p-2")
	require.NoError(t, err)
	require.NoError(t, holder.Lock(context.Background(), time.Second))

	waiter, err := NewDistributedLock(conn, "p-2")
	require.NoError(t, err)
	err = waiter.Lock(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrLockWaitTimeout)

	children, _, err := conn.Children(lockRoot + "/p-2")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestUnlockWithoutLock(t *testing.T) {
	l, err := NewDistributedLock(newFakeConn(), "p-3")
	require.NoError(t, err)
	assert.Error(t, l.Unlock())
}

func TestDistributedLockLostNodeIsNotGranted(t *testing.T) {
	conn := newFakeConn()

	holder, err := NewDistributedLock(conn, "p-4")
	require.NoError(t, err)
	require.NoError(t, holder.Lock(context.Background(), time.Second))

	expired, err := NewDistributedLock(conn, "p-4")
	require.NoError(t, err)
	conn.mu.Lock()
	conn.dropNext = true
	conn.mu.Unlock()

	err = expired.Lock(context.Background(), 200*time.Millisecond)
	require.ErrorIs(t, err, ErrLockNodeLost)

	// 原持有者的节点还在，并且仍然排在最前
	children, _, err := conn.Children(lockRoot + "/p-4")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, holder.lockNode, lockRoot+"/p-4/"+children[0])
	require.NoError(t, holder.Unlock())
}

func TestDistributedLockZeroWaitBoundedByContext(t *testing.T) {
	conn := newFakeConn()

	holder, err := NewDistributedLock(conn, "p-5")
	require.NoError(t, err)
	require.NoError(t, holder.Lock(context.Background(), 0))

	waiter, err := NewDistributedLock(conn, "p-5")
	require.NoError(t, err)
	acquired := make(chan error, 1)
	go func() { acquired <- waiter.Lock(context.Background(), 0) }()

	select {
	case err := <-acquired:
		t.Fatalf("zero wait returned before the holder released: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, holder.Unlock())
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	require.NoError(t, waiter.Unlock())

	// 没有等待上限时由 ctx 结束等待
	require.NoError(t, holder.Lock(context.Background(), 0))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	late, err := NewDistributedLock(conn, "p-5")
	require.NoError(t, err)
	assert.ErrorIs(t, late.Lock(ctx, 0), context.DeadlineExceeded)
	require.NoError(t, holder.Unlock())
}
