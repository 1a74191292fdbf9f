package server

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	sendBufferSize = 256
)

var (
	ErrClientClosed   = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client 一条 WebSocket 连接
// ID 是连接 ID，每次连接都不同；playerID 是账号 ID，重连后会绑定回原账号。
type Client struct {
	ID string
	IP string

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu       sync.RWMutex
	playerID string
	name     string
	roomCode string
	closed   bool

	disconnectOnce sync.Once
}

// NewClient 创建新连接，分配临时账号和随机昵称
func NewClient(s *Server, conn *websocket.Conn, ip string) *Client {
	return &Client{
		ID:       uuid.NewString(),
		IP:       ip,
		server:   s,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		playerID: uuid.NewString(),
		name:     GenerateNickname(),
	}
}

// ReadPump 从 WebSocket 读取消息并交给处理器
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("读取错误: %v", err)
			}
			return
		}

		allowed, warning := c.server.messageLimiter.AllowMessage(c.ID)
		if !allowed {
			log.Printf("⚠️ 客户端 %s (IP: %s) 消息过于频繁", c.GetName(), c.IP)
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "消息发送过于频繁"))
			if c.server.messageLimiter.ShouldDisconnect(c.ID) {
				log.Printf("🚫 客户端 %s 因多次超速被断开连接", c.GetName())
				return
			}
			continue
		}
		if warning {
			c.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeRateLimit, "请求过于频繁，请放慢速度"))
		}

		msg, err := c.server.codec.Decode(data)
		if err != nil {
			log.Printf("消息解析错误: %v", err)
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
		codec.PutMessage(msg)
	}
}

// WritePump 向 WebSocket 写入消息并定期发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.server.codec.Format() == codec.FormatProtobuf {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send 非阻塞投递消息；缓冲区满时关闭连接
func (c *Client) Send(msg *protocol.Message) error {
	data, err := c.server.codec.Encode(msg)
	if err != nil {
		log.Printf("消息编码错误: %v", err)
		return err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
		return nil
	default:
	}
	c.mu.RUnlock()

	log.Printf("客户端 %s 发送缓冲区已满，断开连接", c.ID)
	c.Close()
	return ErrSendBufferFull
}

// SendMessage 发送消息，失败只记录不返回
func (c *Client) SendMessage(msg *protocol.Message) {
	_ = c.Send(msg)
}

// handleDisconnect 连接断开后的清理，只执行一次
func (c *Client) handleDisconnect() {
	c.disconnectOnce.Do(func() {
		c.Close()
		c.server.onDisconnect(c)
	})
}

// Close 关闭发送通道，WritePump 随后关闭底层连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// IsClosed 连接是否已关闭
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) GetID() string { return c.ID }

func (c *Client) GetPlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// BindAccount 重连成功后绑定回原账号
func (c *Client) BindAccount(playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.name = name
}

// SetRoom 设置所在房间
func (c *Client) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

// GetRoom 获取所在房间
func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode
}
