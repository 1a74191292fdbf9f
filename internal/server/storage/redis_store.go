package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key 前缀
	roomKeyPrefix    = "room:"
	sessionKeyPrefix = "session:"

	// 房间数据过期时间
	roomExpiration = 2 * time.Hour
)

// RoomData 房间快照（用于 Redis 序列化）
type RoomData struct {
	Code           string       `json:"code"`
	State          string       `json:"state"`
	Round          int          `json:"round"`
	Turn           int          `json:"turn"`
	Capacity       int          `json:"capacity"`
	ScoreThreshold int          `json:"score_threshold"`
	Private        bool         `json:"private"`
	Players        []PlayerData `json:"players"`
	Rows           [][]int      `json:"rows"`
	DeckRemaining  int          `json:"deck_remaining"`
	CreatedAt      int64        `json:"created_at"`
	UpdatedAt      int64        `json:"updated_at"`
}

// PlayerData 玩家数据
type PlayerData struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id,omitempty"`
	Name      string `json:"name"`
	Hand      []int  `json:"hand"` // 简化为点数列表
	Pile      []int  `json:"pile"`
	Score     int    `json:"score"`
	Ready     bool   `json:"ready"`
	IsHost    bool   `json:"is_host"`
	IsRobot   bool   `json:"is_robot"`
	IsTrustee bool   `json:"is_trustee"`
}

// RedisStore Redis 存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// --- 房间存储 ---

// SaveRoom 保存房间到 Redis
func (rs *RedisStore) SaveRoom(ctx context.Context, roomCode string, data *RoomData) error {
	if data == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化房间数据失败: %w", err)
	}

	key := roomKeyPrefix + roomCode
	return rs.client.Set(ctx, key, jsonData, roomExpiration).Err()
}

// LoadRoom 从 Redis 加载房间快照，不存在时返回 nil
func (rs *RedisStore) LoadRoom(ctx context.Context, code string) (*RoomData, error) {
	key := roomKeyPrefix + code
	data, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var roomData RoomData
	if err := json.Unmarshal(data, &roomData); err != nil {
		return nil, fmt.Errorf("反序列化房间数据失败: %w", err)
	}

	return &roomData, nil
}

// DeleteRoom 从 Redis 删除房间
func (rs *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	key := roomKeyPrefix + code
	return rs.client.Del(ctx, key).Err()
}

// GetAllRoomCodes 获取所有房间号
func (rs *RedisStore) GetAllRoomCodes(ctx context.Context) ([]string, error) {
	var codes []string
	iter := rs.client.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		codes = append(codes, iter.Val()[len(roomKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// --- 会话存储 ---

// PlayerSessionData 玩家会话数据（用于 Redis 序列化）
type PlayerSessionData struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	ReconnectToken string `json:"token"`
	RoomCode       string `json:"room_code"`
	IsOnline       bool   `json:"is_online"`
	DisconnectedAt int64  `json:"disconnected_at,omitempty"`
}

// SaveSession 保存会话到 Redis
func (rs *RedisStore) SaveSession(ctx context.Context, session *PlayerSessionData, ttl time.Duration) error {
	data := map[string]any{
		"player_id":   session.PlayerID,
		"player_name": session.PlayerName,
		"token":       session.ReconnectToken,
		"room_code":   session.RoomCode,
		"is_online":   session.IsOnline,
	}

	if session.DisconnectedAt != 0 {
		data["disconnected_at"] = session.DisconnectedAt
	}

	key := sessionKeyPrefix + session.PlayerID
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, key, data)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// LoadSession 从 Redis 加载会话
func (rs *RedisStore) LoadSession(ctx context.Context, playerID string) (*PlayerSessionData, error) {
	key := sessionKeyPrefix + playerID
	data, err := rs.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	session := &PlayerSessionData{
		PlayerID:       data["player_id"],
		PlayerName:     data["player_name"],
		ReconnectToken: data["token"],
		RoomCode:       data["room_code"],
		IsOnline:       data["is_online"] == "1",
	}
	if v, ok := data["disconnected_at"]; ok {
		session.DisconnectedAt, _ = strconv.ParseInt(v, 10, 64)
	}

	return session, nil
}

// DeleteSession 删除会话
func (rs *RedisStore) DeleteSession(ctx context.Context, playerID string) error {
	key := sessionKeyPrefix + playerID
	return rs.client.Del(ctx, key).Err()
}

// Ping 检查 Redis 连接
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}
