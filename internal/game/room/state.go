package room

// RoomState 房间状态
type RoomState int

const (
	RoomStateWaiting          RoomState = iota // 大厅等待
	RoomStatePlaying                           // 本墩出牌中
	RoomStateProcessingTrick                   // 结算本墩
	RoomStateWaitingForChoice                  // 等待玩家选择收走的行
	RoomStateRoundOver                         // 本轮 10 墩结束，准备重新发牌
	RoomStateGameOver                          // 游戏结束
)

var roomStateNames = [...]string{
	RoomStateWaiting:          "WAITING",
	RoomStatePlaying:          "PLAYING",
	RoomStateProcessingTrick:  "PROCESSING_TRICK",
	RoomStateWaitingForChoice: "WAITING_FOR_PLAYER_CHOICE",
	RoomStateRoundOver:        "ROUND_OVER",
	RoomStateGameOver:         "GAME_OVER",
}

func (s RoomState) String() string {
	if s < 0 || int(s) >= len(roomStateNames) {
		return "UNKNOWN"
	}
	return roomStateNames[s]
}

// InGame 是否处于一局游戏之中
func (s RoomState) InGame() bool {
	switch s {
	case RoomStatePlaying, RoomStateProcessingTrick, RoomStateWaitingForChoice, RoomStateRoundOver:
		return true
	}
	return false
}

// Joinable 是否允许新玩家加入
func (s RoomState) Joinable() bool {
	return s == RoomStateWaiting || s == RoomStateGameOver
}
