//go:build !production

package testutil

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/take-six/internal/protocol"
)

// MockClient 实现 types.ClientInterface 的 mock
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) GetPlayerID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) GetName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) BindAccount(playerID, name string) {
	m.Called(playerID, name)
}

func (m *MockClient) GetRoom() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) SetRoom(roomCode string) {
	m.Called(roomCode)
}

func (m *MockClient) SendMessage(msg *protocol.Message) {
	m.Called(msg)
}

func (m *MockClient) Close() {
	m.Called()
}

// SimpleClient 简单的客户端实现，记录收到的消息（用于不需要 mock 断言的测试）
type SimpleClient struct {
	ID       string
	PlayerID string
	Name     string

	mu       sync.Mutex
	roomCode string
	messages []*protocol.Message
	closed   bool
}

// NewSimpleClient 创建 SimpleClient，账号 ID 默认为 "acc-"+id
func NewSimpleClient(id, name string) *SimpleClient {
	return &SimpleClient{ID: id, PlayerID: "acc-" + id, Name: name}
}

func (m *SimpleClient) GetID() string { return m.ID }

func (m *SimpleClient) GetPlayerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PlayerID
}

func (m *SimpleClient) GetName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Name
}

func (m *SimpleClient) BindAccount(playerID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayerID = playerID
	m.Name = name
}

func (m *SimpleClient) GetRoom() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomCode
}

func (m *SimpleClient) SetRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomCode = code
}

func (m *SimpleClient) SendMessage(msg *protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *SimpleClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Closed 是否已关闭
func (m *SimpleClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SentMessages 返回收到的消息副本
func (m *SimpleClient) SentMessages() []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Message(nil), m.messages...)
}

// LastMessage 最后一条消息
func (m *SimpleClient) LastMessage() *protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

// MessagesOfType 返回指定类型的消息
func (m *SimpleClient) MessagesOfType(t protocol.MessageType) []*protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*protocol.Message
	for _, msg := range m.messages {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}
