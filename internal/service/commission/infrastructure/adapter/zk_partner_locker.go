package adapter

import (
	"context"
	"fmt"
	"time"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/zookeeper"
)

// ZkPartnerLocker 实现了 port.PartnerLocker，每个合作伙伴一个 ZooKeeper 锁节点
type ZkPartnerLocker struct {
	conn    *zookeeper.Conn
	timeout time.Duration
}

// NewZkPartnerLocker timeout 为 0 时只受调用方 ctx 控制
func NewZkPartnerLocker(conn *zookeeper.Conn, timeout time.Duration) *ZkPartnerLocker {
	return &ZkPartnerLocker{conn: conn, timeout: timeout}
}

func (l *ZkPartnerLocker) Lock(ctx context.Context, partnerID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, "partner/"+partnerID)
	if err != nil {
		return nil, fmt.Errorf("create partner lock: %w", err)
	}

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := lock.Lock(waitCtx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("partner_id", partnerID).Msg("Failed to release partner lock")
		}
	}, nil
}
