package room

import (
	"log"
	"slices"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/protocol/convert"
)

// PlayCard 出牌：每墩每人一张，牌面朝下直到本墩结算完成
func (r *Room) PlayCard(connID string, number int) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if r.state != RoomStatePlaying {
			return apperrors.ErrInvalidState
		}
		if _, ok := r.played[connID]; ok {
			return apperrors.ErrAlreadyPlayed
		}
		if !r.commit(p, number) {
			return apperrors.ErrInvalidCard
		}
		r.advance()
		return nil
	})
}

// commit 从手牌中取出一张牌放入本墩
func (r *Room) commit(p *Player, number int) bool {
	hand, c, ok := card.Remove(p.Hand, number)
	if !ok {
		return false
	}
	p.Hand = hand
	r.played[p.ConnID] = c

	r.broadcast(codec.MustNewMessage(protocol.MsgCardCommitted, protocol.CardCommittedPayload{
		PlayerID:  p.ConnID,
		Committed: len(r.played),
		Total:     len(r.players),
	}))
	r.touch()
	return true
}

func (r *Room) hasCommitted(p *Player) bool {
	_, ok := r.played[p.ConnID]
	return ok
}

// advance 推进状态机，直到需要外部输入（出牌、选择、投票）为止
func (r *Room) advance() {
	for {
		switch r.state {
		case RoomStatePlaying:
			r.autoFill()
			if len(r.played) < len(r.players) {
				return
			}
			r.beginResolution()
		case RoomStateProcessingTrick:
			if !r.resolveNext() {
				return
			}
		case RoomStateRoundOver:
			r.startRound()
		default:
			return
		}
	}
}

// autoFill 为机器人和托管玩家出最小的牌
func (r *Room) autoFill() {
	paused := r.humanAutoPlayPaused()
	for _, p := range r.sortedPlayers() {
		if !p.IsTrustee || r.hasCommitted(p) {
			continue
		}
		if paused && p.IsHuman() {
			continue
		}
		if c, ok := card.Lowest(p.Hand); ok {
			r.commit(p, c.Number)
		}
	}
}

// humanAutoPlayPaused 没有在线真人且存在掉线真人时，暂停真人托管出牌
func (r *Room) humanAutoPlayPaused() bool {
	offline := false
	for _, p := range r.players {
		if p.IsRobot {
			continue
		}
		if !p.IsTrustee {
			return false
		}
		offline = true
	}
	return offline
}

// beginResolution 所有人都已出牌，按牌面升序开始结算
func (r *Room) beginResolution() {
	r.state = RoomStateProcessingTrick

	entries := make([]entry, 0, len(r.played))
	for _, p := range r.players {
		if c, ok := r.played[p.ConnID]; ok {
			entries = append(entries, entry{player: p, card: c})
		}
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.card.Number - b.card.Number })

	r.trick = entries
	r.pending = slices.Clone(entries)
}

// resolveNext 结算下一张牌；返回 false 表示需要等待玩家选择
func (r *Room) resolveNext() bool {
	if len(r.pending) == 0 {
		r.finalizeTrick()
		return true
	}

	e := r.pending[0]
	idx, ok := r.table.Candidate(e.card)
	if !ok {
		if e.player.IsTrustee {
			r.applyChoice(r.table.AutoChoice(), true)
			return true
		}
		r.suspendForChoice(e)
		return false
	}

	r.pending = r.pending[1:]
	if collected := r.table.Place(idx, e.card); len(collected) > 0 {
		e.player.collect(collected)
		r.broadcast(codec.MustNewMessage(protocol.MsgRowTaken, protocol.RowTakenPayload{
			PlayerID:  e.player.ConnID,
			Row:       idx,
			Collected: convert.CardsToInfos(collected),
			Penalty:   card.PenaltySum(collected),
			Score:     e.player.Score,
		}))
	}
	return true
}

// finalizeTrick 本墩结算完成：公开出牌，检查结束条件
func (r *Room) finalizeTrick() {
	r.lastTrick = r.trick
	r.trick = nil
	r.pending = nil
	clear(r.played)

	r.broadcast(codec.MustNewMessage(protocol.MsgTrickResolved, protocol.TrickResolvedPayload{
		Round:  r.round,
		Turn:   r.turn,
		Played: entryInfos(r.lastTrick),
		Rows:   convert.TableToInfos(&r.table),
		Scores: r.scores(),
	}))
	r.touch()

	if r.thresholdReached() {
		r.endGame(ReasonThreshold)
		return
	}
	if r.turn >= TricksPerRound {
		r.state = RoomStateRoundOver
		r.broadcast(codec.MustNewMessage(protocol.MsgRoundOver, protocol.RoundOverPayload{
			Round:  r.round,
			Scores: r.scores(),
		}))
		log.Printf("🔄 房间 %s 第 %d 轮结束", r.Code, r.round)
		return
	}
	r.turn++
	r.state = RoomStatePlaying
}

func (r *Room) thresholdReached() bool {
	for _, p := range r.players {
		if p.Score >= r.opts.ScoreThreshold {
			return true
		}
	}
	return false
}

func (r *Room) scores() map[string]int {
	scores := make(map[string]int, len(r.players))
	for id, p := range r.players {
		scores[id] = p.Score
	}
	return scores
}
