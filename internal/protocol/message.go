package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 断线重连
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgCreateRoom     MessageType = "create_room"      // 创建房间
	MsgJoinRoom       MessageType = "join_room"        // 加入房间
	MsgLeaveRoom      MessageType = "leave_room"       // 离开房间
	MsgReady          MessageType = "ready"            // 准备就绪
	MsgCancelReady    MessageType = "cancel_ready"     // 取消准备
	MsgStartGame      MessageType = "start_game"       // 开始游戏
	MsgRequestNewGame MessageType = "request_new_game" // 再来一局
	MsgAddBots        MessageType = "add_bots"         // 添加机器人（房主）
	MsgKickPlayer     MessageType = "kick_player"      // 踢出玩家（房主）

	// 游戏操作
	MsgPlayCard  MessageType = "play_card"  // 出牌
	MsgChooseRow MessageType = "choose_row" // 选择收走的行

	// 查询
	MsgGetRoomList    MessageType = "get_room_list"   // 获取房间列表
	MsgGetRoomState   MessageType = "get_room_state"  // 获取房间快照
	MsgGetStats       MessageType = "get_stats"       // 获取个人统计
	MsgGetLeaderboard MessageType = "get_leaderboard" // 获取排行榜
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected     MessageType = "connected"      // 连接成功
	MsgReconnected   MessageType = "reconnected"    // 重连成功
	MsgPong          MessageType = "pong"           // 心跳 pong
	MsgPlayerOffline MessageType = "player_offline" // 玩家掉线通知
	MsgPlayerOnline  MessageType = "player_online"  // 玩家上线通知

	// 房间相关
	MsgRoomCreated  MessageType = "room_created"  // 房间创建成功
	MsgRoomJoined   MessageType = "room_joined"   // 加入房间成功
	MsgPlayerJoined MessageType = "player_joined" // 其他玩家加入
	MsgPlayerLeft   MessageType = "player_left"   // 玩家离开
	MsgPlayerReady  MessageType = "player_ready"  // 玩家准备
	MsgKicked       MessageType = "kicked"        // 被房主踢出

	// 游戏流程
	MsgGameStart       MessageType = "game_start"        // 游戏开始
	MsgRoomState       MessageType = "room_state"        // 房间快照（每个玩家各自一份）
	MsgCardCommitted   MessageType = "card_committed"    // 有人已出牌（牌面朝下）
	MsgChooseRowPrompt MessageType = "choose_row_prompt" // 轮到选择收走的行
	MsgRowTaken        MessageType = "row_taken"         // 有人收走一行
	MsgTrickResolved   MessageType = "trick_resolved"    // 本墩结算完成
	MsgRoundOver       MessageType = "round_over"        // 本轮结束
	MsgGameOver        MessageType = "game_over"         // 游戏结束

	// 查询结果
	MsgRoomListResult    MessageType = "room_list_result"   // 房间列表结果
	MsgStatsResult       MessageType = "stats_result"       // 个人统计结果
	MsgLeaderboardResult MessageType = "leaderboard_result" // 排行榜结果

	// 错误
	MsgError MessageType = "error" // 错误消息
)
