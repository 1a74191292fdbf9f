package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 10000
	defaultCodec          = "json"

	defaultRedisAddr = "localhost:6379"

	defaultPostgresMaxOpen = 10
	defaultPostgresMaxIdle = 5

	defaultChoiceTimeout         = 30 // 秒
	defaultScoreThreshold        = 66
	defaultCapacity              = 4
	defaultRoomTimeout           = 10 // 分钟
	defaultSessionTimeout        = 10 // 分钟
	defaultShutdownTimeout       = 30 // 分钟
	defaultShutdownCheckInterval = 10 // 秒
	defaultRoomCleanupDelay      = 30 // 秒

	defaultRateMaxPerSecond    = 10
	defaultRateMaxPerMinute    = 60
	defaultBanDuration         = 300 // 秒
	defaultMessageMaxPerSecond = 20
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Game     GameConfig     `yaml:"game"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
	Codec          string `yaml:"codec"`   // json | protobuf
	LogDir         string `yaml:"log_dir"` // 为空时只输出到标准输出
}

// Addr 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig 对局历史库，URL 为空时不启用
type PostgresConfig struct {
	URL     string `yaml:"url"`
	MaxOpen int    `yaml:"max_open"`
	MaxIdle int    `yaml:"max_idle"`
}

// Enabled 是否配置了 Postgres
func (c *PostgresConfig) Enabled() bool {
	return c.URL != ""
}

// GameConfig 游戏配置
type GameConfig struct {
	ChoiceTimeout         int `yaml:"choice_timeout"`          // 选择收走行超时（秒）
	ScoreThreshold        int `yaml:"score_threshold"`         // 默认牛头阈值
	MaxRounds             int `yaml:"max_rounds"`              // 默认最大轮数，0 不限
	DefaultCapacity       int `yaml:"default_capacity"`        // 默认房间容量
	RoomTimeout           int `yaml:"room_timeout"`            // 无人在线的房间保留时长（分钟）
	SessionTimeout        int `yaml:"session_timeout"`         // 离线会话保留时长（分钟）
	ShutdownTimeout       int `yaml:"shutdown_timeout"`        // 优雅关闭最长等待（分钟）
	ShutdownCheckInterval int `yaml:"shutdown_check_interval"` // 优雅关闭检查间隔（秒）
	RoomCleanupDelay      int `yaml:"room_cleanup_delay"`      // 游戏结束后清理房间的延迟（秒）
}

// ChoiceTimeoutDuration 返回选择超时时长
func (c *GameConfig) ChoiceTimeoutDuration() time.Duration {
	return time.Duration(c.ChoiceTimeout) * time.Second
}

// RoomTimeoutDuration 返回房间闲置超时时长
func (c *GameConfig) RoomTimeoutDuration() time.Duration {
	return time.Duration(c.RoomTimeout) * time.Minute
}

// SessionTimeoutDuration 返回离线会话保留时长
func (c *GameConfig) SessionTimeoutDuration() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Minute
}

// ShutdownTimeoutDuration 返回优雅关闭超时时长
func (c *GameConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Minute
}

// ShutdownCheckIntervalDuration 返回优雅关闭检查间隔
func (c *GameConfig) ShutdownCheckIntervalDuration() time.Duration {
	return time.Duration(c.ShutdownCheckInterval) * time.Second
}

// RoomCleanupDelayDuration 返回房间清理延迟
func (c *GameConfig) RoomCleanupDelayDuration() time.Duration {
	return time.Duration(c.RoomCleanupDelay) * time.Second
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string           `yaml:"allowed_origins"`
	IPWhitelist    []string           `yaml:"ip_whitelist"` // 非空时只允许名单内的 IP
	IPBlacklist    []string           `yaml:"ip_blacklist"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	MessageLimit   MessageLimitConfig `yaml:"message_limit"`
}

// RateLimitConfig 连接速率限制（按 IP）
type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	MaxPerMinute int `yaml:"max_per_minute"`
	BanDuration  int `yaml:"ban_duration"` // 秒
}

// BanDurationTime 返回封禁时长
func (c *RateLimitConfig) BanDurationTime() time.Duration {
	return time.Duration(c.BanDuration) * time.Second
}

// MessageLimitConfig 消息速率限制（按连接）
type MessageLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
}

// Load 加载配置文件，再用环境变量（含 .env）覆盖
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// Default 返回默认配置（同样应用环境变量）
func Default() *Config {
	var cfg Config
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}
	if c.Server.Codec == "" {
		c.Server.Codec = defaultCodec
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}

	if c.Postgres.MaxOpen == 0 {
		c.Postgres.MaxOpen = defaultPostgresMaxOpen
	}
	if c.Postgres.MaxIdle == 0 {
		c.Postgres.MaxIdle = defaultPostgresMaxIdle
	}

	g := &c.Game
	if g.ChoiceTimeout == 0 {
		g.ChoiceTimeout = defaultChoiceTimeout
	}
	if g.ScoreThreshold == 0 {
		g.ScoreThreshold = defaultScoreThreshold
	}
	if g.DefaultCapacity == 0 {
		g.DefaultCapacity = defaultCapacity
	}
	if g.RoomTimeout == 0 {
		g.RoomTimeout = defaultRoomTimeout
	}
	if g.SessionTimeout == 0 {
		g.SessionTimeout = defaultSessionTimeout
	}
	if g.ShutdownTimeout == 0 {
		g.ShutdownTimeout = defaultShutdownTimeout
	}
	if g.ShutdownCheckInterval == 0 {
		g.ShutdownCheckInterval = defaultShutdownCheckInterval
	}
	if g.RoomCleanupDelay == 0 {
		g.RoomCleanupDelay = defaultRoomCleanupDelay
	}

	s := &c.Security
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}
	if s.RateLimit.MaxPerSecond == 0 {
		s.RateLimit.MaxPerSecond = defaultRateMaxPerSecond
	}
	if s.RateLimit.MaxPerMinute == 0 {
		s.RateLimit.MaxPerMinute = defaultRateMaxPerMinute
	}
	if s.RateLimit.BanDuration == 0 {
		s.RateLimit.BanDuration = defaultBanDuration
	}
	if s.MessageLimit.MaxPerSecond == 0 {
		s.MessageLimit.MaxPerSecond = defaultMessageMaxPerSecond
	}
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.Codec = getEnv("SERVER_CODEC", c.Server.Codec)
	c.Server.LogDir = getEnv("LOG_DIR", c.Server.LogDir)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Postgres.URL = getEnv("DATABASE_URL", c.Postgres.URL)

	c.Game.ChoiceTimeout = getEnvInt("GAME_CHOICE_TIMEOUT", c.Game.ChoiceTimeout)
	c.Game.ScoreThreshold = getEnvInt("GAME_SCORE_THRESHOLD", c.Game.ScoreThreshold)
	c.Game.MaxRounds = getEnvInt("GAME_MAX_ROUNDS", c.Game.MaxRounds)

	c.Security.AllowedOrigins = getEnvList("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.IPWhitelist = getEnvList("SECURITY_IP_WHITELIST", c.Security.IPWhitelist)
	c.Security.IPBlacklist = getEnvList("SECURITY_IP_BLACKLIST", c.Security.IPBlacklist)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList 逗号分隔的列表
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
