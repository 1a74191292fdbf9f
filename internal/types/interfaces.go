package types

import (
	"github.com/palemoky/take-six/internal/protocol"
)

// ServerInterface 定义服务器接口（用于打破循环依赖）
type ServerInterface interface {
	IsMaintenanceMode() bool
	GetOnlineCount() int
	GetClientByID(id string) ClientInterface
	RegisterClient(id string, client ClientInterface)
	UnregisterClient(id string)
}

// ClientInterface 定义客户端接口
type ClientInterface interface {
	GetID() string       // 连接 ID
	GetPlayerID() string // 稳定账号 ID（重连后不变）
	GetName() string
	BindAccount(playerID, name string) // 重连后绑定回原账号
	GetRoom() string
	SetRoom(code string)
	SendMessage(msg *protocol.Message)
	Close()
}
