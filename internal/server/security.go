package server

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	rateCleanupInterval = 5 * time.Minute
	rateIdleExpiry      = 10 * time.Minute

	// 超速警告次数超过该值后断开连接
	maxMessageWarnings = 5
)

// RateLimiter 按 IP 限制建连频率，超限后封禁一段时间
type RateLimiter struct {
	requests map[string]*clientRate
	mu       sync.RWMutex

	maxRequestsPerSecond int
	maxRequestsPerMinute int
	banDuration          time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type clientRate struct {
	secondCount int
	minuteCount int
	lastSecond  time.Time
	lastMinute  time.Time
	bannedUntil time.Time
}

// NewRateLimiter 创建速率限制器并启动清理协程
func NewRateLimiter(maxPerSecond, maxPerMinute int, banDuration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests:             make(map[string]*clientRate),
		maxRequestsPerSecond: maxPerSecond,
		maxRequestsPerMinute: maxPerMinute,
		banDuration:          banDuration,
		stop:                 make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow 检查是否允许该 IP 建立连接
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rate, exists := rl.requests[ip]
	if !exists {
		rl.requests[ip] = &clientRate{
			secondCount: 1,
			minuteCount: 1,
			lastSecond:  now,
			lastMinute:  now,
		}
		return true
	}

	if now.Before(rate.bannedUntil) {
		return false
	}

	if now.Sub(rate.lastSecond) >= time.Second {
		rate.secondCount = 0
		rate.lastSecond = now
	}
	if now.Sub(rate.lastMinute) >= time.Minute {
		rate.minuteCount = 0
		rate.lastMinute = now
	}

	rate.secondCount++
	rate.minuteCount++

	if rate.secondCount > rl.maxRequestsPerSecond || rate.minuteCount > rl.maxRequestsPerMinute {
		rate.bannedUntil = now.Add(rl.banDuration)
		// 封禁结束后重新计数
		rate.secondCount, rate.minuteCount = 0, 0
		log.Printf("⚠️ IP %s 因请求过于频繁被暂时封禁 %v", ip, rl.banDuration)
		return false
	}

	return true
}

// IsBanned 检查 IP 是否被封禁
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	rate, exists := rl.requests[ip]
	if !exists {
		return false
	}
	return time.Now().Before(rate.bannedUntil)
}

// Stop 停止清理协程
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rateCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.cleanup(now)
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, rate := range rl.requests {
		if now.Sub(rate.lastMinute) > rateIdleExpiry && now.After(rate.bannedUntil) {
			delete(rl.requests, ip)
		}
	}
}

// --- 来源验证 ---

// OriginChecker 来源验证器
type OriginChecker struct {
	allowedOrigins map[string]bool
	allowAll       bool
}

// NewOriginChecker 创建来源验证器，列表为空或包含 "*" 时放行所有来源
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{
		allowedOrigins: make(map[string]bool),
		allowAll:       len(origins) == 0,
	}

	for _, origin := range origins {
		if origin == "*" {
			oc.allowAll = true
			return oc
		}
		oc.allowedOrigins[strings.ToLower(origin)] = true
	}

	return oc
}

// Check 检查来源是否允许
func (oc *OriginChecker) Check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		// 本地客户端不带 Origin
		return true
	}

	return oc.allowedOrigins[strings.ToLower(origin)]
}

// --- IP 白名单/黑名单 ---

// IPFilter IP 过滤器
type IPFilter struct {
	whitelist map[string]bool
	blacklist map[string]bool
	mu        sync.RWMutex
}

// NewIPFilter 创建 IP 过滤器；白名单为空时只按黑名单过滤
func NewIPFilter(whitelist, blacklist []string) *IPFilter {
	f := &IPFilter{
		whitelist: make(map[string]bool),
		blacklist: make(map[string]bool),
	}
	for _, ip := range whitelist {
		f.AddToWhitelist(ip)
	}
	for _, ip := range blacklist {
		f.AddToBlacklist(ip)
	}
	return f
}

// AddToWhitelist 添加到白名单
func (f *IPFilter) AddToWhitelist(ip string) {
	if ip = strings.TrimSpace(ip); ip == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whitelist[ip] = true
}

// AddToBlacklist 添加到黑名单
func (f *IPFilter) AddToBlacklist(ip string) {
	if ip = strings.TrimSpace(ip); ip == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[ip] = true
}

// IsAllowed 检查 IP 是否允许，黑名单优先于白名单
func (f *IPFilter) IsAllowed(ip string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.blacklist[ip] {
		return false
	}
	if len(f.whitelist) > 0 && !f.whitelist[ip] {
		return false
	}
	return true
}

// GetClientIP 获取客户端真实 IP
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// 第一个是最原始的客户端
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// --- 消息速率限制 ---

// MessageRateLimiter 按连接限制消息频率
type MessageRateLimiter struct {
	limits map[string]*messageRate
	mu     sync.Mutex

	maxMessagesPerSecond int
	warningThreshold     int
}

type messageRate struct {
	count     int
	lastReset time.Time
	warnings  int
}

// NewMessageRateLimiter 创建消息速率限制器
func NewMessageRateLimiter(maxPerSecond int) *MessageRateLimiter {
	return &MessageRateLimiter{
		limits:               make(map[string]*messageRate),
		maxMessagesPerSecond: maxPerSecond,
		warningThreshold:     maxPerSecond / 2,
	}
}

// AllowMessage 检查是否允许处理该连接的消息，warning 表示已接近或超过上限
func (ml *MessageRateLimiter) AllowMessage(connID string) (allowed bool, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	rate, exists := ml.limits[connID]
	if !exists {
		ml.limits[connID] = &messageRate{count: 1, lastReset: now}
		return true, false
	}

	if now.Sub(rate.lastReset) >= time.Second {
		rate.count = 1
		rate.lastReset = now
		return true, false
	}

	rate.count++

	if rate.count > ml.maxMessagesPerSecond {
		rate.warnings++
		return false, true
	}
	if rate.count > ml.warningThreshold {
		return true, true
	}
	return true, false
}

// GetWarningCount 获取超速次数
func (ml *MessageRateLimiter) GetWarningCount(connID string) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if rate, ok := ml.limits[connID]; ok {
		return rate.warnings
	}
	return 0
}

// ShouldDisconnect 超速次数过多时返回 true
func (ml *MessageRateLimiter) ShouldDisconnect(connID string) bool {
	return ml.GetWarningCount(connID) > maxMessageWarnings
}

// ClearRateLimit 移除连接的计数记录
func (ml *MessageRateLimiter) ClearRateLimit(connID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.limits, connID)
}
