package room

import (
	"time"

	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/server/storage"
)

// ToRoomData 将 Room 转换为可序列化的 RoomData
func (r *Room) ToRoomData() *storage.RoomData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.toRoomData()
}

func (r *Room) toRoomData() *storage.RoomData {
	data := &storage.RoomData{
		Code:           r.Code,
		State:          r.state.String(),
		Round:          r.round,
		Turn:           r.turn,
		Capacity:       r.opts.Capacity,
		ScoreThreshold: r.opts.ScoreThreshold,
		Private:        r.opts.Private,
		Players:        make([]storage.PlayerData, 0, len(r.players)),
		Rows:           make([][]int, 0, len(r.table)),
		DeckRemaining:  r.deck.Len(),
		CreatedAt:      r.CreatedAt.Unix(),
		UpdatedAt:      time.Now().Unix(),
	}

	for _, row := range r.table {
		data.Rows = append(data.Rows, card.Numbers(row))
	}

	for _, p := range r.sortedPlayers() {
		data.Players = append(data.Players, storage.PlayerData{
			ID:        p.ConnID,
			AccountID: p.AccountID,
			Name:      p.Name,
			Hand:      card.Numbers(p.Hand),
			Pile:      card.Numbers(p.Pile),
			Score:     p.Score,
			Ready:     p.Ready,
			IsHost:    p.IsHost,
			IsRobot:   p.IsRobot,
			IsTrustee: p.IsTrustee,
		})
	}

	return data
}
