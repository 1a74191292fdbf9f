package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key
	playerStatsKey    = "player:stats:"
	leaderboardKey    = "leaderboard:rating"
	weeklyLeaderboard = "leaderboard:weekly:"
)

// PlayerStats 玩家统计数据
type PlayerStats struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`

	// 总计
	TotalGames int `json:"total_games"` // 总场次
	Wins       int `json:"wins"`        // 胜场（唯一最低分）

	// 牛头
	TotalPenalty int `json:"total_penalty"` // 累计牛头数
	BestScore    int `json:"best_score"`    // 单局最低牛头数，-1 表示尚无记录

	// 积分
	Rating int `json:"rating"`

	// 连胜/连败
	CurrentStreak int `json:"current_streak"` // 正数为连胜，负数为连败
	MaxWinStreak  int `json:"max_win_streak"`

	// 时间
	LastPlayedAt int64 `json:"last_played_at"`
	CreatedAt    int64 `json:"created_at"`
}

// WinRate 胜率（百分比）
func (s *PlayerStats) WinRate() float64 {
	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalGames) * 100
}

// 积分规则
const (
	RatingWin      = 30 // 获胜
	RatingPerPlace = 10 // 每领先一名
	RatingLast     = -10

	// 连胜加成
	StreakBonus3 = 5
	StreakBonus5 = 10
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Rating     int     `json:"rating"`
	Wins       int     `json:"wins"`
	TotalGames int     `json:"total_games"`
	WinRate    float64 `json:"win_rate"`
}

// LeaderboardManager 排行榜管理器
type LeaderboardManager struct {
	redis *redis.Client
}

// NewLeaderboardManager 创建排行榜管理器
func NewLeaderboardManager(client *redis.Client) *LeaderboardManager {
	return &LeaderboardManager{redis: client}
}

// GetPlayerStats 获取玩家统计，不存在时返回 nil
func (lm *LeaderboardManager) GetPlayerStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	key := playerStatsKey + playerID
	data, err := lm.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SavePlayerStats 保存玩家统计
func (lm *LeaderboardManager) SavePlayerStats(ctx context.Context, stats *PlayerStats) error {
	key := playerStatsKey + stats.PlayerID
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return lm.redis.Set(ctx, key, data, 0).Err()
}

func (lm *LeaderboardManager) getOrCreateStats(ctx context.Context, playerID, playerName string) (*PlayerStats, error) {
	stats, err := lm.GetPlayerStats(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return &PlayerStats{
			PlayerID:   playerID,
			PlayerName: playerName,
			BestScore:  -1,
			CreatedAt:  time.Now().Unix(),
		}, nil
	}
	return stats, nil
}

// ratingChange 按名次计算积分变化
func ratingChange(rank, players int, isWinner bool) int {
	switch {
	case isWinner:
		return RatingWin
	case rank == players:
		return RatingLast
	default:
		return (players - rank) * RatingPerPlace / 2
	}
}

func updateStreak(stats *PlayerStats, isWinner bool) {
	if isWinner {
		stats.Wins++
		stats.CurrentStreak = max(1, stats.CurrentStreak+1)
	} else {
		stats.CurrentStreak = min(-1, stats.CurrentStreak-1)
	}
	stats.MaxWinStreak = max(stats.MaxWinStreak, stats.CurrentStreak)
}

func streakBonus(streak int) int {
	switch {
	case streak >= 5:
		return StreakBonus5
	case streak >= 3:
		return StreakBonus3
	default:
		return 0
	}
}

// RecordGame 实现 HistorySink：为每个真人玩家更新统计与排行榜
func (lm *LeaderboardManager) RecordGame(ctx context.Context, rec *GameRecord) error {
	if rec == nil {
		return nil
	}
	for _, r := range rec.Results {
		if r.IsRobot || r.AccountID == "" {
			continue
		}
		if err := lm.RecordPlayerResult(ctx, r, len(rec.Results)); err != nil {
			return fmt.Errorf("record %s: %w", r.AccountID, err)
		}
	}
	return nil
}

// RecordPlayerResult 记录单个玩家的结果
func (lm *LeaderboardManager) RecordPlayerResult(ctx context.Context, r PlayerResult, players int) error {
	stats, err := lm.getOrCreateStats(ctx, r.AccountID, r.Name)
	if err != nil {
		return err
	}

	stats.PlayerName = r.Name
	stats.TotalGames++
	stats.TotalPenalty += r.Score
	stats.LastPlayedAt = time.Now().Unix()
	if stats.BestScore < 0 || r.Score < stats.BestScore {
		stats.BestScore = r.Score
	}

	change := ratingChange(r.Rank, players, r.IsWinner)
	updateStreak(stats, r.IsWinner)
	change += streakBonus(stats.CurrentStreak)
	stats.Rating = max(0, stats.Rating+change)

	if err := lm.SavePlayerStats(ctx, stats); err != nil {
		return err
	}
	return lm.UpdateLeaderboard(ctx, stats)
}

// UpdateLeaderboard 更新排行榜
func (lm *LeaderboardManager) UpdateLeaderboard(ctx context.Context, stats *PlayerStats) error {
	member := redis.Z{Score: float64(stats.Rating), Member: stats.PlayerID}

	if err := lm.redis.ZAdd(ctx, leaderboardKey, member).Err(); err != nil {
		return err
	}

	year, week := time.Now().ISOWeek()
	weeklyKey := fmt.Sprintf("%s%d-W%02d", weeklyLeaderboard, year, week)
	if err := lm.redis.ZAdd(ctx, weeklyKey, member).Err(); err != nil {
		return err
	}
	lm.redis.Expire(ctx, weeklyKey, 8*24*time.Hour)

	return nil
}

// GetLeaderboard 获取总排行榜（从高到低）
func (lm *LeaderboardManager) GetLeaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	results, err := lm.redis.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]*LeaderboardEntry, 0, len(results))
	for i, result := range results {
		playerID, ok := result.Member.(string)
		if !ok {
			continue
		}

		stats, err := lm.GetPlayerStats(ctx, playerID)
		if err != nil || stats == nil {
			continue
		}

		entries = append(entries, &LeaderboardEntry{
			Rank:       i + 1,
			PlayerID:   playerID,
			PlayerName: stats.PlayerName,
			Rating:     int(result.Score),
			Wins:       stats.Wins,
			TotalGames: stats.TotalGames,
			WinRate:    stats.WinRate(),
		})
	}

	return entries, nil
}

// GetPlayerRank 获取玩家排名，未上榜返回 -1
func (lm *LeaderboardManager) GetPlayerRank(ctx context.Context, playerID string) (int64, error) {
	rank, err := lm.redis.ZRevRank(ctx, leaderboardKey, playerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return -1, err
	}
	return rank + 1, nil
}
