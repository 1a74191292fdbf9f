package storage

import (
	"context"
	"errors"
	"time"
)

// GameRecord 一局游戏的最终结果
type GameRecord struct {
	RoomCode string         `json:"room_code" db:"room_code"`
	Rounds   int            `json:"rounds" db:"rounds"`
	Reason   string         `json:"reason" db:"reason"`
	EndedAt  time.Time      `json:"ended_at" db:"ended_at"`
	Results  []PlayerResult `json:"results"`
}

// PlayerResult 玩家名次与得分（得分越低越好）
type PlayerResult struct {
	AccountID string `json:"account_id" db:"account_id"`
	Name      string `json:"name" db:"player_name"`
	Rank      int    `json:"rank" db:"rank"`
	Score     int    `json:"score" db:"score"`
	IsRobot   bool   `json:"is_robot" db:"is_robot"`
	IsWinner  bool   `json:"is_winner" db:"is_winner"`
}

// HistorySink 接收每局结束时的结果
type HistorySink interface {
	RecordGame(ctx context.Context, rec *GameRecord) error
}

// MultiSink 将结果写入多个 HistorySink
type MultiSink []HistorySink

// RecordGame 依次写入，汇总所有错误
func (m MultiSink) RecordGame(ctx context.Context, rec *GameRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.RecordGame(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
