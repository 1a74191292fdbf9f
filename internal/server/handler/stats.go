package handler

import (
	"context"
	"time"

	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/types"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
	queryTimeout            = 3 * time.Second
)

// --- 排行榜处理 ---

// handleGetStats 获取个人统计
func (h *Handler) handleGetStats(client types.ClientInterface) {
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "统计服务不可用"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	playerID := client.GetPlayerID()
	playerStats, err := h.leaderboard.GetPlayerStats(ctx, playerID)
	if err != nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取统计失败"))
		return
	}

	if playerStats == nil {
		// 没有统计数据，返回空数据
		client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, protocol.StatsResultPayload{
			PlayerID:   playerID,
			PlayerName: client.GetName(),
		}))
		return
	}

	// 获取排名
	rank, _ := h.leaderboard.GetPlayerRank(ctx, playerID)

	client.SendMessage(codec.MustNewMessage(protocol.MsgStatsResult, protocol.StatsResultPayload{
		PlayerID:     playerStats.PlayerID,
		PlayerName:   playerStats.PlayerName,
		TotalGames:   playerStats.TotalGames,
		Wins:         playerStats.Wins,
		WinRate:      playerStats.WinRate(),
		TotalPenalty: playerStats.TotalPenalty,
		BestScore:    playerStats.BestScore,
		Rank:         rank,
	}))
}

// handleGetLeaderboard 获取排行榜
func (h *Handler) handleGetLeaderboard(client types.ClientInterface, msg *protocol.Message) {
	if h.leaderboard == nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "排行榜服务不可用"))
		return
	}

	limit := defaultLeaderboardLimit
	if payload, err := codec.ParsePayload[protocol.GetLeaderboardPayload](msg); err == nil && payload.Limit > 0 {
		limit = min(payload.Limit, maxLeaderboardLimit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	entries, err := h.leaderboard.GetLeaderboard(ctx, limit)
	if err != nil {
		client.SendMessage(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "获取排行榜失败"))
		return
	}

	// 转换为协议格式
	protocolEntries := make([]protocol.LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		protocolEntries = append(protocolEntries, protocol.LeaderboardEntry{
			Rank:       entry.Rank,
			PlayerID:   entry.PlayerID,
			PlayerName: entry.PlayerName,
			Wins:       entry.Wins,
			TotalGames: entry.TotalGames,
			WinRate:    entry.WinRate,
		})
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgLeaderboardResult, protocol.LeaderboardResultPayload{
		Entries: protocolEntries,
	}))
}

// handleGetRoomList 获取房间列表
func (h *Handler) handleGetRoomList(client types.ClientInterface) {
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomListResult, protocol.RoomListResultPayload{
		Rooms: h.roomManager.GetRoomList(),
	}))
}
