// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

var ErrLockTimeout = errors.New("timeout waiting for lock")

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     *Conn  // ZooKeeper连接
	path     string // 锁的路径，例如 /distributed_locks/partner-123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，必要时创建锁路径。
// 根节点是持久节点；每个资源的锁路径是容器节点，最后一个子节点删除后由服务端回收 (需要 ZooKeeper 3.5+)。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := LockPath(resourceID)
	if err := ensureLockPath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{
		conn: conn,
		path: lockPath,
	}, nil
}

// LockPath 返回资源对应的锁节点路径，资源 id 中的 "/" 会被替换
func LockPath(resourceID string) string {
	return lockRoot + "/" + strings.ReplaceAll(resourceID, "/", "_")
}

// nodeCreator 是建锁路径用到的 zk.Conn 子集
type nodeCreator interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateContainer(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
}

// ensureLockPath 直接创建节点，已存在视为成功，不再先查 Exists
func ensureLockPath(c nodeCreator, lockPath string) error {
	acl := zk.WorldACL(zk.PermAll)
	if _, err := c.Create(lockRoot, nil, 0, acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create node %s: %w", lockRoot, err)
	}
	if _, err := c.CreateContainer(lockPath, nil, zk.FlagContainer, acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create node %s: %w", lockPath, err)
	}
	return nil
}

// Lock 尝试获取锁，拿不到时阻塞等待，直到 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	// 1. 在锁路径下创建一个临时顺序节点: /distributed_locks/resourceID/lock-
	nodePath, err := l.createLockNode()
	if err != nil {
		return fmt.Errorf("failed to create sequential node: %w", err)
	}
	l.lockNode = nodePath

	for {
		// 2. 获取锁路径下的所有子节点
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return fmt.Errorf("failed to get children nodes: %w", err)
		}

		// 3. 判断自己是否是最小的节点
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		prev, isFirst, found := predecessor(children, myNodeName)
		if !found {
			l.abandon()
			return errors.New("cannot find own lock node, session may have expired")
		}
		if isFirst {
			return nil
		}

		// 4. 不是最小节点，只监听前一个节点，避免惊群
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
			// 前一个节点发生变化，重新竞争
		case <-ctx.Done():
			l.abandon()
			return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		}
	}
}

// createLockNode 创建临时顺序节点；容器节点恰好被回收时重建一次
func (l *DistributedLock) createLockNode() (string, error) {
	acl := zk.WorldACL(zk.PermAll)
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, acl)
	if errors.Is(err, zk.ErrNoNode) {
		if err := ensureLockPath(l.conn, l.path); err != nil {
			return "", err
		}
		nodePath, err = l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", nil, acl)
	}
	return nodePath, err
}

// Unlock 释放锁
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
	_ = l.Unlock()
}

// predecessor 按序号排序子节点，返回排在 me 之前的节点。
// 受保护的顺序节点名带有 GUID 前缀，因此按 "lock-" 之后的序号排序。
func predecessor(children []string, me string) (prev string, isFirst bool, found bool) {
	sorted := append([]string(nil), children...)
	sort.Slice(sorted, func(i, j int) bool { return sequenceOf(sorted[i]) < sequenceOf(sorted[j]) })
	for i, child := range sorted {
		if child == me {
			if i == 0 {
				return "", true, true
			}
			return sorted[i-1], false, true
		}
	}
	return "", false, false
}

func sequenceOf(node string) string {
	if idx := strings.LastIndex(node, "lock-"); idx >= 0 {
		return node[idx+len("lock-"):]
	}
	return node
}
