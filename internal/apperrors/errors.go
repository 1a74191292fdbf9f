package apperrors

import (
	"errors"

	"github.com/palemoky/take-six/internal/protocol"
)

// GameError 游戏错误（房间和会话共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrRoomNotFound     = &GameError{Code: protocol.ErrCodeRoomNotFound, Message: "房间不存在"}
	ErrRoomFull         = &GameError{Code: protocol.ErrCodeRoomFull, Message: "房间已满"}
	ErrNotInRoom        = &GameError{Code: protocol.ErrCodeNotInRoom, Message: "您不在房间中"}
	ErrGameStarted      = &GameError{Code: protocol.ErrCodeGameStarted, Message: "游戏已开始"}
	ErrWrongPassword    = &GameError{Code: protocol.ErrCodeWrongPassword, Message: "房间密码错误"}
	ErrNotHost          = &GameError{Code: protocol.ErrCodeNotHost, Message: "只有房主可以执行此操作"}
	ErrInvalidState     = &GameError{Code: protocol.ErrCodeInvalidState, Message: "当前状态不允许此操作"}
	ErrNotYourChoice    = &GameError{Code: protocol.ErrCodeNotYourChoice, Message: "还没轮到您选择"}
	ErrInvalidCard      = &GameError{Code: protocol.ErrCodeInvalidCard, Message: "您没有这张牌"}
	ErrAlreadyPlayed    = &GameError{Code: protocol.ErrCodeAlreadyPlayed, Message: "本墩您已出过牌"}
	ErrInvalidRow       = &GameError{Code: protocol.ErrCodeInvalidRow, Message: "无效的行号"}
	ErrNotEnoughPlayers = &GameError{Code: protocol.ErrCodeNotEnoughPlayers, Message: "至少需要 2 名玩家"}
	ErrNotAllReady      = &GameError{Code: protocol.ErrCodeNotAllReady, Message: "还有玩家未准备"}
	ErrInternal         = &GameError{Code: protocol.ErrCodeInternal, Message: "服务器内部错误"}
)

// Code 提取错误码，非 GameError 返回 ErrCodeInternal
func Code(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return protocol.ErrCodeInternal
}
