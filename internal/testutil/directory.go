//go:build !production

package testutil

import (
	"errors"
	"sync"

	"github.com/palemoky/take-six/internal/protocol"
)

// ErrOffline 目标连接不在线
var ErrOffline = errors.New("connection offline")

// RecordingDirectory 记录所有发出消息的会话目录
type RecordingDirectory struct {
	mu      sync.Mutex
	offline map[string]bool
	sent    map[string][]*protocol.Message
	rooms   map[string]string
}

// NewRecordingDirectory 创建 RecordingDirectory
func NewRecordingDirectory() *RecordingDirectory {
	return &RecordingDirectory{
		offline: make(map[string]bool),
		sent:    make(map[string][]*protocol.Message),
		rooms:   make(map[string]string),
	}
}

// SendTo 记录消息；离线连接返回 ErrOffline
func (d *RecordingDirectory) SendTo(connID string, msg *protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline[connID] {
		return ErrOffline
	}
	d.sent[connID] = append(d.sent[connID], msg)
	return nil
}

// IsOnline 连接是否在线
func (d *RecordingDirectory) IsOnline(connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.offline[connID]
}

// SetOffline 标记连接离线
func (d *RecordingDirectory) SetOffline(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline[connID] = true
}

// OnMembership 记录连接所在的房间，可作为房间管理器的回调
func (d *RecordingDirectory) OnMembership(connID, roomCode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if roomCode == "" {
		delete(d.rooms, connID)
		return
	}
	d.rooms[connID] = roomCode
}

// RoomOf 连接当前所在房间
func (d *RecordingDirectory) RoomOf(connID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[connID]
}

// Messages 发给某连接的全部消息
func (d *RecordingDirectory) Messages(connID string) []*protocol.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*protocol.Message(nil), d.sent[connID]...)
}

// MessagesOfType 发给某连接的指定类型消息
func (d *RecordingDirectory) MessagesOfType(connID string, t protocol.MessageType) []*protocol.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*protocol.Message
	for _, msg := range d.sent[connID] {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// Last 发给某连接的最后一条指定类型消息
func (d *RecordingDirectory) Last(connID string, t protocol.MessageType) *protocol.Message {
	msgs := d.MessagesOfType(connID, t)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset 清空记录
func (d *RecordingDirectory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = make(map[string][]*protocol.Message)
}
