package protocol

// --- 客户端请求 Payloads ---

// ReconnectPayload 断线重连请求
type ReconnectPayload struct {
	Token    string `json:"token"`     // 重连令牌
	PlayerID string `json:"player_id"` // 玩家账号 ID
}

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	Capacity       int    `json:"capacity,omitempty"`
	ScoreThreshold int    `json:"score_threshold,omitempty"`
	MaxRounds      int    `json:"max_rounds,omitempty"`
	Private        bool   `json:"private,omitempty"`
	Password       string `json:"password,omitempty"`
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomCode string `json:"room_code"`
	Password string `json:"password,omitempty"`
}

// RoomPayload 只携带房间号的请求（为空时使用当前房间）
type RoomPayload struct {
	RoomCode string `json:"room_code,omitempty"`
}

// PlayCardPayload 出牌请求
type PlayCardPayload struct {
	RoomCode string `json:"room_code,omitempty"`
	Card     int    `json:"card"`
}

// ChooseRowPayload 选择收走的行
type ChooseRowPayload struct {
	RoomCode string `json:"room_code,omitempty"`
	Row      int    `json:"row"`
}

// AddBotsPayload 添加机器人
type AddBotsPayload struct {
	RoomCode string `json:"room_code,omitempty"`
	Count    int    `json:"count"`
}

// KickPlayerPayload 踢出玩家
type KickPlayerPayload struct {
	RoomCode string `json:"room_code,omitempty"`
	PlayerID string `json:"player_id"`
}

// GetLeaderboardPayload 获取排行榜请求
type GetLeaderboardPayload struct {
	Limit int `json:"limit"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID       string `json:"player_id"` // 账号 ID（重连时使用）
	PlayerName     string `json:"player_name"`
	ReconnectToken string `json:"reconnect_token"`
}

// ReconnectedPayload 重连成功响应
type ReconnectedPayload struct {
	PlayerID   string        `json:"player_id"`
	PlayerName string        `json:"player_name"`
	RoomCode   string        `json:"room_code,omitempty"`
	RoomState  *RoomStateDTO `json:"room_state,omitempty"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// PlayerOfflinePayload 玩家掉线通知
type PlayerOfflinePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// PlayerOnlinePayload 玩家上线通知
type PlayerOnlinePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// RoomCreatedPayload 房间创建成功响应
type RoomCreatedPayload struct {
	RoomCode string     `json:"room_code"`
	Player   PlayerInfo `json:"player"`
}

// RoomJoinedPayload 加入房间成功响应
type RoomJoinedPayload struct {
	RoomCode string       `json:"room_code"`
	Player   PlayerInfo   `json:"player"`
	Players  []PlayerInfo `json:"players"`
}

// PlayerJoinedPayload 其他玩家加入通知
type PlayerJoinedPayload struct {
	Player PlayerInfo `json:"player"`
}

// PlayerLeftPayload 玩家离开通知
type PlayerLeftPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// PlayerReadyPayload 玩家准备通知
type PlayerReadyPayload struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

// KickedPayload 被踢出通知
type KickedPayload struct {
	RoomCode string `json:"room_code"`
}

// GameStartPayload 游戏开始通知
type GameStartPayload struct {
	Round   int          `json:"round"`
	Players []PlayerInfo `json:"players"`
}

// CardCommittedPayload 有玩家出牌（不含牌面）
type CardCommittedPayload struct {
	PlayerID  string `json:"player_id"`
	Committed int    `json:"committed"` // 本墩已出牌人数
	Total     int    `json:"total"`
}

// ChooseRowPromptPayload 提示某玩家选择一行收走
type ChooseRowPromptPayload struct {
	PlayerID string    `json:"player_id"`
	Card     *CardInfo `json:"card,omitempty"` // 只发给选择者
	Timeout  int       `json:"timeout"`        // 秒
}

// RowTakenPayload 有玩家收走一行
type RowTakenPayload struct {
	PlayerID  string     `json:"player_id"`
	Row       int        `json:"row"`
	Collected []CardInfo `json:"collected"`
	Penalty   int        `json:"penalty"`
	Score     int        `json:"score"`
	Auto      bool       `json:"auto"` // 超时或托管自动选择
}

// TrickResolvedPayload 本墩结算结果
type TrickResolvedPayload struct {
	Round  int              `json:"round"`
	Turn   int              `json:"turn"`
	Played []PlayedCardInfo `json:"played"`
	Rows   []RowInfo        `json:"rows"`
	Scores map[string]int   `json:"scores"`
}

// RoundOverPayload 本轮结束
type RoundOverPayload struct {
	Round  int            `json:"round"`
	Scores map[string]int `json:"scores"`
}

// GameOverPayload 游戏结束
type GameOverPayload struct {
	WinnerID   string         `json:"winner_id,omitempty"`
	WinnerName string         `json:"winner_name,omitempty"`
	Reason     string         `json:"reason"`
	Results    []PlayerResult `json:"results"`
}

// PlayerResult 玩家最终名次
type PlayerResult struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Rank       int    `json:"rank"`
	Score      int    `json:"score"`
}

// RoomListResultPayload 房间列表结果
type RoomListResultPayload struct {
	Rooms []RoomListItem `json:"rooms"`
}

// StatsResultPayload 个人统计结果
type StatsResultPayload struct {
	PlayerID     string  `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	TotalGames   int     `json:"total_games"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	TotalPenalty int     `json:"total_penalty"`
	BestScore    int     `json:"best_score"`
	Rank         int64   `json:"rank"`
}

// LeaderboardResultPayload 排行榜结果
type LeaderboardResultPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Wins       int     `json:"wins"`
	TotalGames int     `json:"total_games"`
	WinRate    float64 `json:"win_rate"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
