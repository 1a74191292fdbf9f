package room

import (
	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/protocol/convert"
)

// Snapshot 按请求者裁剪的房间快照
// 只包含请求者自己的手牌；本墩出牌在结算完成前只对出牌者本人可见。
func (r *Room) Snapshot(connID string) (*protocol.RoomStateDTO, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[connID]
	if !ok {
		return nil, apperrors.ErrNotInRoom
	}
	return r.snapshotFor(p), nil
}

func (r *Room) stateMessage(viewer *Player) *protocol.Message {
	return codec.MustNewMessage(protocol.MsgRoomState, r.snapshotFor(viewer))
}

func (r *Room) snapshotFor(viewer *Player) *protocol.RoomStateDTO {
	dto := &protocol.RoomStateDTO{
		RoomCode:       r.Code,
		State:          r.state.String(),
		Round:          r.round,
		Turn:           r.turn,
		ScoreThreshold: r.opts.ScoreThreshold,
		Capacity:       r.opts.Capacity,
		DeckRemaining:  r.deck.Len(),
		Rows:           convert.TableToInfos(&r.table),
		Hand:           convert.CardsToInfos(viewer.Hand),
		LastTrick:      entryInfos(r.lastTrick),
		WinnerName:     r.winnerName,
	}

	for _, p := range r.sortedPlayers() {
		c, committed := r.played[p.ConnID]
		info := p.info(committed)
		if committed && p == viewer {
			ci := convert.CardToInfo(c)
			info.PlayedCard = &ci
		}
		dto.Players = append(dto.Players, info)
	}

	if chooser := r.chooser(); chooser != nil {
		dto.ChooserID = chooser.ConnID
		if chooser == viewer {
			ci := convert.CardToInfo(r.pending[0].card)
			dto.PendingCard = &ci
		}
	}
	return dto
}

func (r *Room) playerInfos() []protocol.PlayerInfo {
	players := r.sortedPlayers()
	infos := make([]protocol.PlayerInfo, 0, len(players))
	for _, p := range players {
		infos = append(infos, p.info(r.hasCommitted(p)))
	}
	return infos
}

func entryInfos(entries []entry) []protocol.PlayedCardInfo {
	if len(entries) == 0 {
		return nil
	}
	infos := make([]protocol.PlayedCardInfo, len(entries))
	for i, e := range entries {
		infos[i] = protocol.PlayedCardInfo{
			PlayerID:   e.player.ConnID,
			PlayerName: e.player.Name,
			Card:       convert.CardToInfo(e.card),
		}
	}
	return infos
}
