package room

import (
	"log"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/protocol/convert"
)

// chooser 当前需要选择收走哪一行的玩家
func (r *Room) chooser() *Player {
	if r.state != RoomStateWaitingForChoice || len(r.pending) == 0 {
		return nil
	}
	return r.pending[0].player
}

// suspendForChoice 出牌小于所有行末张：暂停结算，等待出牌者选择
func (r *Room) suspendForChoice(e entry) {
	r.state = RoomStateWaitingForChoice
	r.armChoiceTimer()

	timeout := int(r.opts.ChoiceTimeout.Seconds())
	info := convert.CardToInfo(e.card)
	r.sendTo(e.player, codec.MustNewMessage(protocol.MsgChooseRowPrompt, protocol.ChooseRowPromptPayload{
		PlayerID: e.player.ConnID,
		Card:     &info,
		Timeout:  timeout,
	}))
	r.broadcastExcept(e.player.ConnID, codec.MustNewMessage(protocol.MsgChooseRowPrompt, protocol.ChooseRowPromptPayload{
		PlayerID: e.player.ConnID,
		Timeout:  timeout,
	}))
	r.touch()

	log.Printf("⏳ 房间 %s 等待 %s 选择收走的行 (牌 %s)", r.Code, e.player.Name, e.card)
}

// armChoiceTimer 启动选择超时；回调在锁内校验序号，过期回调什么也不做
func (r *Room) armChoiceTimer() {
	r.cancelChoiceTimer()
	seq := r.choiceSeq
	sched := r.deps.scheduler
	if sched == nil {
		sched = RealScheduler{}
	}
	r.choiceTimer = sched.AfterFunc(r.opts.ChoiceTimeout, func() {
		r.onChoiceTimeout(seq)
	})
}

// cancelChoiceTimer 取消选择超时，并使已触发但尚未拿到锁的回调失效
func (r *Room) cancelChoiceTimer() {
	if r.choiceTimer != nil {
		r.choiceTimer.Stop()
		r.choiceTimer = nil
	}
	r.choiceSeq++
}

func (r *Room) onChoiceTimeout(seq uint64) {
	_ = r.withLock(func() error {
		if r.closed || r.state != RoomStateWaitingForChoice || r.choiceSeq != seq {
			return nil
		}
		r.choiceTimer = nil
		r.choiceSeq++

		log.Printf("⏰ 房间 %s 中 %s 选择超时，自动收走牛头最少的一行", r.Code, r.chooser().Name)
		r.applyChoice(r.table.AutoChoice(), true)
		r.advance()
		return nil
	})
}

// ChooseRow 选择者收走指定行
func (r *Room) ChooseRow(connID string, idx int) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if r.state != RoomStateWaitingForChoice {
			return apperrors.ErrInvalidState
		}
		if r.chooser() != p {
			return apperrors.ErrNotYourChoice
		}
		if !rule.IsValidRow(idx) {
			return apperrors.ErrInvalidRow
		}

		r.cancelChoiceTimer()
		r.applyChoice(idx, false)
		r.advance()
		return nil
	})
}

// applyChoice 当前牌的主人收走第 idx 行，该行以触发牌重新开始
func (r *Room) applyChoice(idx int, auto bool) {
	e := r.pending[0]
	r.pending = r.pending[1:]

	collected := r.table.Take(idx, e.card)
	e.player.collect(collected)
	r.state = RoomStateProcessingTrick

	r.broadcast(codec.MustNewMessage(protocol.MsgRowTaken, protocol.RowTakenPayload{
		PlayerID:  e.player.ConnID,
		Row:       idx,
		Collected: convert.CardsToInfos(collected),
		Penalty:   card.PenaltySum(collected),
		Score:     e.player.Score,
		Auto:      auto,
	}))
	r.touch()
}
