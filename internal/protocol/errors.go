package protocol

// 错误码
const (
	ErrCodeUnknown           = 1000
	ErrCodeInvalidMsg        = 1001
	ErrCodeRateLimit         = 1002 // 速率限制
	ErrCodeInvalidToken      = 1003 // 重连令牌无效
	ErrCodeRoomNotFound      = 2001
	ErrCodeRoomFull          = 2002
	ErrCodeNotInRoom         = 2003
	ErrCodeGameStarted       = 2004 // 游戏已开始
	ErrCodeWrongPassword     = 2005
	ErrCodeNotHost           = 2006
	ErrCodeInvalidState      = 3001
	ErrCodeNotYourChoice     = 3002
	ErrCodeInvalidCard       = 3003
	ErrCodeAlreadyPlayed     = 3004
	ErrCodeInvalidRow        = 3005
	ErrCodeNotEnoughPlayers  = 3006
	ErrCodeNotAllReady       = 3007
	ErrCodeInternal          = 5000
	ErrCodeServerMaintenance = 5003 // 服务器维护中
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:           "未知错误",
	ErrCodeInvalidMsg:        "无效的消息格式",
	ErrCodeRateLimit:         "请求过于频繁",
	ErrCodeInvalidToken:      "重连令牌无效或已过期",
	ErrCodeRoomNotFound:      "房间不存在",
	ErrCodeRoomFull:          "房间已满",
	ErrCodeNotInRoom:         "您不在房间中",
	ErrCodeGameStarted:       "游戏已开始",
	ErrCodeWrongPassword:     "房间密码错误",
	ErrCodeNotHost:           "只有房主可以执行此操作",
	ErrCodeInvalidState:      "当前状态不允许此操作",
	ErrCodeNotYourChoice:     "还没轮到您选择",
	ErrCodeInvalidCard:       "您没有这张牌",
	ErrCodeAlreadyPlayed:     "本墩您已出过牌",
	ErrCodeInvalidRow:        "无效的行号",
	ErrCodeNotEnoughPlayers:  "至少需要 2 名玩家",
	ErrCodeNotAllReady:       "还有玩家未准备",
	ErrCodeInternal:          "服务器内部错误",
	ErrCodeServerMaintenance: "服务器维护中",
}
