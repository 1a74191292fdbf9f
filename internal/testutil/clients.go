//go:build !production

package testutil

import (
	"sync"

	"github.com/palemoky/take-six/internal/protocol"
)

// ClientDirectory 把房间消息投递给 SimpleClient 的会话目录
// 同时实现房间成员变化回调，行为与真实服务器一致。
type ClientDirectory struct {
	mu      sync.Mutex
	clients map[string]*SimpleClient
}

// NewClientDirectory 创建 ClientDirectory
func NewClientDirectory() *ClientDirectory {
	return &ClientDirectory{clients: make(map[string]*SimpleClient)}
}

// Add 注册客户端
func (d *ClientDirectory) Add(clients ...*SimpleClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range clients {
		d.clients[c.ID] = c
	}
}

// Remove 注销客户端
func (d *ClientDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, id)
}

func (d *ClientDirectory) Get(id string) *SimpleClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[id]
}

// SendTo 投递消息
func (d *ClientDirectory) SendTo(connID string, msg *protocol.Message) error {
	c := d.Get(connID)
	if c == nil {
		return ErrOffline
	}
	c.SendMessage(msg)
	return nil
}

// IsOnline 连接是否已注册
func (d *ClientDirectory) IsOnline(connID string) bool {
	return d.Get(connID) != nil
}

// OnMembership 更新客户端所在房间
func (d *ClientDirectory) OnMembership(connID, roomCode string) {
	if c := d.Get(connID); c != nil {
		c.SetRoom(roomCode)
	}
}
