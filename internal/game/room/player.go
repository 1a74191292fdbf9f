package room

import (
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/protocol"
)

// Identity 调用方身份：连接 ID 加可选的稳定账号 ID
type Identity struct {
	ConnID    string
	AccountID string
	Name      string
}

// Player 房间中的玩家
type Player struct {
	ConnID    string // 当前连接 ID（players map 的 key）
	AccountID string // 稳定账号 ID，机器人为空
	Name      string

	Hand  []card.Card // 升序
	Pile  []card.Card // 收走的牌
	Score int         // 恒等于 Pile 的牛头数之和

	Ready            bool
	IsTrustee        bool // 托管中（掉线真人或机器人）
	IsRobot          bool
	IsHost           bool
	PendingLeave     bool // 主动离开标记，区别于掉线
	RequestedNewGame bool

	seat int // 加入顺序
}

// IsHuman 是否真人玩家
func (p *Player) IsHuman() bool {
	return !p.IsRobot
}

// Connected 真人且未托管
func (p *Player) Connected() bool {
	return !p.IsRobot && !p.IsTrustee
}

func (p *Player) collect(cards []card.Card) {
	if len(cards) == 0 {
		return
	}
	p.Pile = append(p.Pile, cards...)
	p.Score = card.PenaltySum(p.Pile)
}

// resetForGame 新一局开始时清空手牌、收牌与分数
func (p *Player) resetForGame() {
	p.Hand = nil
	p.Pile = nil
	p.Score = 0
	p.Ready = p.IsRobot
	p.RequestedNewGame = false
}

func (p *Player) info(committed bool) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:         p.ConnID,
		Name:       p.Name,
		Score:      p.Score,
		CardsCount: len(p.Hand),
		Ready:      p.Ready,
		IsHost:     p.IsHost,
		IsRobot:    p.IsRobot,
		IsTrustee:  p.IsTrustee,
		Online:     p.Connected(),
		HasPlayed:  committed,
		NewGame:    p.RequestedNewGame,
	}
}
