package protocol

// CardInfo 牌信息
type CardInfo struct {
	Number  int `json:"number"`
	Penalty int `json:"penalty"`
}

// RowInfo 桌面一行
type RowInfo struct {
	Cards   []CardInfo `json:"cards"`
	Penalty int        `json:"penalty"` // 该行牛头数之和
}

// PlayedCardInfo 本墩出牌（已翻开）
type PlayedCardInfo struct {
	PlayerID   string   `json:"player_id"`
	PlayerName string   `json:"player_name"`
	Card       CardInfo `json:"card"`
}

// PlayerInfo 玩家公开信息
type PlayerInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	CardsCount int       `json:"cards_count"`
	Ready      bool      `json:"ready"`
	IsHost     bool      `json:"is_host"`
	IsRobot    bool      `json:"is_robot"`
	IsTrustee  bool      `json:"is_trustee"`
	Online     bool      `json:"online"`
	HasPlayed  bool      `json:"has_played"`            // 本墩是否已出牌
	PlayedCard *CardInfo `json:"played_card,omitempty"` // 仅对出牌者本人可见
	NewGame    bool      `json:"new_game"`              // 已请求再来一局
}

// RoomStateDTO 房间快照（按请求者裁剪）
type RoomStateDTO struct {
	RoomCode       string           `json:"room_code"`
	State          string           `json:"state"`
	Round          int              `json:"round"`
	Turn           int              `json:"turn"`
	ScoreThreshold int              `json:"score_threshold"`
	Capacity       int              `json:"capacity"`
	DeckRemaining  int              `json:"deck_remaining"`
	Rows           []RowInfo        `json:"rows"`
	Players        []PlayerInfo     `json:"players"`
	Hand           []CardInfo       `json:"hand"`
	LastTrick      []PlayedCardInfo `json:"last_trick,omitempty"` // 上一墩完整结算后才公开
	ChooserID      string           `json:"chooser_id,omitempty"`
	PendingCard    *CardInfo        `json:"pending_card,omitempty"` // 仅对选择者可见
	WinnerName     string           `json:"winner_name,omitempty"`
}

// RoomListItem 房间列表条目
type RoomListItem struct {
	RoomCode    string `json:"room_code"`
	State       string `json:"state"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}
