package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/service/commission/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 运营看板与服务不同源，身份由令牌保证
		return true
	},
}

// PushHub 维护所有运营看板连接，把佣金事件广播出去。
// 它同时是 port.EventPublisher 和随服务启停的 Runner。
type PushHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	lock       sync.RWMutex
}

func NewPushHub() *PushHub {
	return &PushHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run 阻塞直到 ctx 取消，退出时关闭所有连接
func (h *PushHub) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Msg("✅ Push hub started")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.lock.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Msg("🛑 Push hub stopped")
			return nil
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("client_id", client.id).Str("subject", client.subject).Msg("Dashboard client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("client_id", client.id).Msg("Dashboard client unregistered")
		case message := <-h.broadcast:
			h.lock.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- message:
				default:
					// 慢客户端直接断开
					delete(h.clients, id)
					close(c.send)
				}
			}
			h.lock.Unlock()
		}
	}
}

// Publish 非阻塞投递，缓冲区满时丢弃并返回 nil：看板推送不保证送达
func (h *PushHub) Publish(ctx context.Context, event domain.CommissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.Ctx(ctx).Warn().Str("event_type", string(event.Type)).Msg("Push hub buffer full, dropping event")
	}
	return nil
}

// ClientCount 当前在线连接数
func (h *PushHub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// ServeWs 把 HTTP 连接升级为 WebSocket 并注册到 hub
func (h *PushHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if claims, ok := ClaimsFrom(r.Context()); ok {
		subject = claims.Subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), id: uuid.New().String(), subject: subject}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Client 是一个看板 WebSocket 连接
type Client struct {
	hub     *PushHub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	subject string
}

// writePump 把 send 中的消息写入连接，并定期发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理 pong 与关闭，看板不向服务端发送业务消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
