// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog/log"
)

// Conn 是 ZooKeeper 连接
type Conn struct {
	*zk.Conn
}

// Connect 建立连接，会话超时后临时节点（以及其上的锁）自动释放
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	c, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, err
	}
	log.Info().Strs("servers", servers).Msg("✅ Successfully connected to ZooKeeper.")
	return &Conn{Conn: c}, nil
}
