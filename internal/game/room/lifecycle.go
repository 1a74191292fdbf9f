package room

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/palemoky/take-six/internal/apperrors"
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
	"github.com/palemoky/take-six/internal/protocol"
	"github.com/palemoky/take-six/internal/protocol/codec"
	"github.com/palemoky/take-six/internal/server/storage"
)

// 游戏结束原因
const (
	ReasonThreshold        = "threshold"
	ReasonDeckExhausted    = "deck_exhausted"
	ReasonMaxRounds        = "max_rounds"
	ReasonNotEnoughPlayers = "not_enough_players"
	ReasonInternalError    = "internal_error"
)

var botNames = []string{"阿尔法", "贝塔", "伽马", "德尔塔", "艾普西隆", "泽塔", "伊塔", "西塔", "约塔", "卡帕"}

// Join 加入房间
// 同一账号换了新连接时，按规则重新绑定原来的玩家对象而不是新建。
func (r *Room) Join(id Identity, password string) error {
	return r.withLock(func() error {
		if r.closed {
			return apperrors.ErrRoomNotFound
		}
		if _, ok := r.players[id.ConnID]; ok {
			r.touch()
			return nil
		}
		if existing := r.playerByAccount(id.AccountID); existing != nil {
			return r.rebind(existing, id)
		}

		if !r.state.Joinable() {
			return apperrors.ErrGameStarted
		}
		if r.opts.Private && password != r.opts.Password {
			return apperrors.ErrWrongPassword
		}
		if r.activeCount() >= r.opts.Capacity || len(r.players) >= MaxPlayers {
			return apperrors.ErrRoomFull
		}

		p := &Player{
			ConnID:    id.ConnID,
			AccountID: id.AccountID,
			Name:      id.Name,
			seat:      r.nextSeat,
		}
		r.nextSeat++
		r.players[p.ConnID] = p

		if (id.AccountID != "" && id.AccountID == r.opts.OwnerID) || r.host() == nil {
			r.setHost(p)
		}

		r.membership(p.ConnID, r.Code)
		r.sendTo(p, codec.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
			RoomCode: r.Code,
			Player:   p.info(false),
			Players:  r.playerInfos(),
		}))
		r.broadcastExcept(p.ConnID, codec.MustNewMessage(protocol.MsgPlayerJoined, protocol.PlayerJoinedPayload{
			Player: p.info(false),
		}))
		r.touch()

		log.Printf("👤 玩家 %s 加入房间 %s (%d/%d)", p.Name, r.Code, r.activeCount(), r.opts.Capacity)
		return nil
	})
}

// rebind 将已有玩家绑定到新连接
func (r *Room) rebind(p *Player, id Identity) error {
	switch {
	case r.state == RoomStateWaiting:
	case p.IsTrustee && (r.state.InGame() || r.state == RoomStateGameOver):
	default:
		return apperrors.ErrGameStarted
	}

	oldConn := p.ConnID
	if !p.IsTrustee {
		// 旧连接仍在线：通知它已被新连接取代
		r.sendTo(p, codec.MustNewMessage(protocol.MsgKicked, protocol.KickedPayload{RoomCode: r.Code}))
		r.membership(oldConn, "")
	}

	delete(r.players, oldConn)
	if c, ok := r.played[oldConn]; ok {
		delete(r.played, oldConn)
		r.played[id.ConnID] = c
	}

	p.ConnID = id.ConnID
	if id.Name != "" {
		p.Name = id.Name
	}
	p.IsTrustee = false
	p.Ready = false
	p.PendingLeave = false
	r.players[p.ConnID] = p

	r.membership(p.ConnID, r.Code)
	r.sendTo(p, codec.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
		RoomCode: r.Code,
		Player:   p.info(r.hasCommitted(p)),
		Players:  r.playerInfos(),
	}))
	r.broadcastExcept(p.ConnID, codec.MustNewMessage(protocol.MsgPlayerOnline, protocol.PlayerOnlinePayload{
		PlayerID:   p.ConnID,
		PlayerName: p.Name,
	}))
	r.touch()

	log.Printf("📶 玩家 %s 重新连接到房间 %s (%s)", p.Name, r.Code, r.state)

	// 全员掉线时托管出牌被暂停，真人回来后继续
	if r.state == RoomStatePlaying {
		r.advance()
	}
	return nil
}

// SetReady 设置准备状态，全员准备后自动开局
func (r *Room) SetReady(connID string, ready bool) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if r.state != RoomStateWaiting {
			if r.state.InGame() {
				return apperrors.ErrGameStarted
			}
			return apperrors.ErrInvalidState
		}

		p.Ready = ready
		r.broadcast(codec.MustNewMessage(protocol.MsgPlayerReady, protocol.PlayerReadyPayload{
			PlayerID: p.ConnID,
			Ready:    ready,
		}))
		r.touch()

		if ready {
			r.maybeStart()
		}
		return nil
	})
}

// StartGame 显式开局（调用者视为已准备）
func (r *Room) StartGame(connID string) error {
	return r.withLock(func() error {
		caller, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}

		var vote func(*Player) bool
		switch r.state {
		case RoomStateWaiting:
			vote = func(p *Player) bool { return p == caller || p.Ready }
		case RoomStateGameOver:
			vote = func(p *Player) bool { return p == caller || p.RequestedNewGame }
		default:
			return apperrors.ErrGameStarted
		}

		if err := r.checkVotes(vote); err != nil {
			return err
		}
		r.startGame()
		return nil
	})
}

// RequestNewGame 游戏结束后请求再来一局，全员同意后开局
func (r *Room) RequestNewGame(connID string) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if r.state != RoomStateGameOver {
			return apperrors.ErrInvalidState
		}

		p.RequestedNewGame = true
		r.broadcast(codec.MustNewMessage(protocol.MsgPlayerReady, protocol.PlayerReadyPayload{
			PlayerID: p.ConnID,
			Ready:    true,
		}))
		r.touch()
		r.maybeStart()
		return nil
	})
}

// Leave 主动离开房间
func (r *Room) Leave(connID string) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		p.PendingLeave = true
		r.removePlayer(p)
		return nil
	})
}

// OnDisconnected 连接断开
// 主动离开中的玩家直接移除；否则转为托管，保留手牌与分数以便重连。
func (r *Room) OnDisconnected(connID string) {
	_ = r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok || p.IsRobot {
			return nil
		}
		if p.PendingLeave {
			r.removePlayer(p)
			return nil
		}
		if p.IsTrustee {
			return nil
		}

		p.IsTrustee = true
		p.Ready = false
		p.RequestedNewGame = false
		r.broadcastExcept(p.ConnID, codec.MustNewMessage(protocol.MsgPlayerOffline, protocol.PlayerOfflinePayload{
			PlayerID:   p.ConnID,
			PlayerName: p.Name,
		}))
		r.touch()

		log.Printf("📴 玩家 %s 在房间 %s 中掉线，进入托管", p.Name, r.Code)

		switch r.state {
		case RoomStatePlaying:
			r.advance()
		case RoomStateWaitingForChoice:
			if r.chooser() == p {
				r.cancelChoiceTimer()
				r.applyChoice(r.table.AutoChoice(), true)
				r.advance()
			}
		case RoomStateWaiting, RoomStateGameOver:
			r.maybeStart()
		}
		return nil
	})
}

// AddBots 房主添加机器人
func (r *Room) AddBots(connID string, count int) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if !p.IsHost {
			return apperrors.ErrNotHost
		}
		if !r.state.Joinable() {
			return apperrors.ErrGameStarted
		}
		if count <= 0 {
			return apperrors.ErrInvalidState
		}
		if count > r.opts.Capacity-len(r.players) {
			return apperrors.ErrRoomFull
		}

		for range count {
			bot := &Player{
				ConnID:           "bot-" + uuid.NewString(),
				Name:             r.botName(),
				IsRobot:          true,
				IsTrustee:        true,
				Ready:            true,
				RequestedNewGame: r.state == RoomStateGameOver,
				seat:             r.nextSeat,
			}
			r.nextSeat++
			r.players[bot.ConnID] = bot
			r.broadcast(codec.MustNewMessage(protocol.MsgPlayerJoined, protocol.PlayerJoinedPayload{
				Player: bot.info(false),
			}))
		}
		r.touch()

		log.Printf("🤖 房间 %s 添加了 %d 个机器人", r.Code, count)
		r.maybeStart()
		return nil
	})
}

// Kick 房主踢出玩家（仅限大厅或游戏结束后）
func (r *Room) Kick(connID, targetID string) error {
	return r.withLock(func() error {
		p, ok := r.players[connID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if !p.IsHost {
			return apperrors.ErrNotHost
		}
		if !r.state.Joinable() {
			return apperrors.ErrGameStarted
		}
		target, ok := r.players[targetID]
		if !ok {
			return apperrors.ErrNotInRoom
		}
		if target == p {
			return apperrors.ErrInvalidState
		}

		r.sendTo(target, codec.MustNewMessage(protocol.MsgKicked, protocol.KickedPayload{RoomCode: r.Code}))
		target.PendingLeave = true
		r.removePlayer(target)
		log.Printf("🦶 房间 %s 房主踢出了 %s", r.Code, target.Name)
		return nil
	})
}

// Close 强制关闭房间（清理超时房间时使用）
func (r *Room) Close() {
	_ = r.withLock(func() error {
		if !r.closed {
			r.broadcast(codec.NewErrorMessageWithText(protocol.ErrCodeUnknown, "房间超时已关闭"))
			r.teardown()
		}
		return nil
	})
}

// removePlayer 移除玩家并修复本墩状态
func (r *Room) removePlayer(p *Player) {
	wasChooser := r.state == RoomStateWaitingForChoice && r.chooser() == p

	delete(r.players, p.ConnID)
	delete(r.played, p.ConnID)
	r.pending = slices.DeleteFunc(r.pending, func(e entry) bool { return e.player == p })

	if p.IsHuman() {
		r.membership(p.ConnID, "")
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgPlayerLeft, protocol.PlayerLeftPayload{
		PlayerID:   p.ConnID,
		PlayerName: p.Name,
	}))
	log.Printf("👋 玩家 %s 离开房间 %s", p.Name, r.Code)

	if !r.hasHuman() {
		r.teardown()
		return
	}
	if p.IsHost {
		r.reassignHost()
	}
	r.touch()

	if !r.state.InGame() {
		r.maybeStart()
		return
	}
	if len(r.players) < MinPlayers {
		r.abortGame(ReasonNotEnoughPlayers)
		return
	}
	if wasChooser {
		// 选择者离开：丢弃其触发牌，继续结算
		r.cancelChoiceTimer()
		r.state = RoomStateProcessingTrick
	}
	r.advance()
}

// teardown 房间清空后解散；管理器在解锁后移除房间
func (r *Room) teardown() {
	r.cancelChoiceTimer()
	for _, p := range r.players {
		if p.IsHuman() {
			r.membership(p.ConnID, "")
		}
	}
	clear(r.players)
	clear(r.played)
	r.pending = nil
	r.closed = true
	r.dirty = false

	log.Printf("🏠 房间 %s 已解散", r.Code)

	if r.deps.onEmpty != nil {
		onEmpty, code := r.deps.onEmpty, r.Code
		r.later(func() { onEmpty(code) })
	}
}

// activeCount 非托管玩家数
func (r *Room) activeCount() int {
	n := 0
	for _, p := range r.players {
		if !p.IsTrustee {
			n++
		}
	}
	return n
}

func (r *Room) host() *Player {
	for _, p := range r.players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Room) setHost(p *Player) {
	for _, other := range r.players {
		other.IsHost = other == p
	}
}

// reassignHost 房主离开后交给最早加入的真人
func (r *Room) reassignHost() {
	for _, p := range r.sortedPlayers() {
		if p.IsHuman() {
			r.setHost(p)
			return
		}
	}
}

func (r *Room) botName() string {
	used := make(map[string]bool, len(r.players))
	for _, p := range r.players {
		used[p.Name] = true
	}
	for _, name := range botNames {
		if !used[name] {
			return name
		}
	}
	return "机器人"
}

// checkVotes 至少 2 人、至少 1 名投票者，且所有非托管玩家都已同意
func (r *Room) checkVotes(vote func(*Player) bool) error {
	if len(r.players) < MinPlayers {
		return apperrors.ErrNotEnoughPlayers
	}
	voters := 0
	for _, p := range r.players {
		if p.IsTrustee {
			continue
		}
		voters++
		if !vote(p) {
			return apperrors.ErrNotAllReady
		}
	}
	if voters == 0 {
		return apperrors.ErrNotAllReady
	}
	return nil
}

// maybeStart 全员准备或全员同意再来一局时自动开局
func (r *Room) maybeStart() {
	switch r.state {
	case RoomStateWaiting:
		if r.checkVotes(func(p *Player) bool { return p.Ready }) == nil {
			r.startGame()
		}
	case RoomStateGameOver:
		if r.checkVotes(func(p *Player) bool { return p.RequestedNewGame }) == nil {
			r.startGame()
		}
	}
}

// startGame 开始新的一局：整副牌只在开局时洗一次
func (r *Room) startGame() {
	r.cancelChoiceTimer()
	r.deck = r.newDeck()
	for _, p := range r.players {
		p.resetForGame()
	}
	r.round = 0
	r.turn = 0
	r.winnerName = ""
	r.lastTrick = nil
	r.trick = nil
	r.pending = nil
	r.discard = nil
	clear(r.played)

	log.Printf("🎮 房间 %s 游戏开始，%d 名玩家", r.Code, len(r.players))

	r.startRound()
	if r.state != RoomStatePlaying {
		return
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgGameStart, protocol.GameStartPayload{
		Round:   r.round,
		Players: r.playerInfos(),
	}))
	r.advance()
}

// startRound 发新一轮：4 张起始牌 + 每人 10 张
func (r *Room) startRound() {
	if r.opts.MaxRounds > 0 && r.round >= r.opts.MaxRounds {
		r.endGame(ReasonMaxRounds)
		return
	}
	if r.deck.Len() < rule.RowCount+TricksPerRound*len(r.players) {
		r.endGame(ReasonDeckExhausted)
		return
	}

	seeds, err := r.deck.Draw(rule.RowCount)
	if err != nil {
		r.failGame(err)
		return
	}
	for _, row := range r.table {
		r.discard = append(r.discard, row...)
	}
	r.table.Clear()
	if err := r.table.Seed(seeds); err != nil {
		r.failGame(err)
		return
	}
	for _, p := range r.sortedPlayers() {
		hand, err := r.deck.Draw(TricksPerRound)
		if err != nil {
			r.failGame(err)
			return
		}
		card.SortAscending(hand)
		p.Hand = hand
		p.Ready = p.IsRobot
	}

	r.round++
	r.turn = 1
	r.trick = nil
	r.pending = nil
	clear(r.played)
	r.state = RoomStatePlaying
	r.touch()

	log.Printf("🃏 房间 %s 第 %d 轮发牌完成，牌堆剩余 %d 张，弃牌 %d 张", r.Code, r.round, r.deck.Len(), len(r.discard))
}

// failGame 内部不变量被破坏：结束本局（无胜者），房间保留
func (r *Room) failGame(err error) {
	log.Printf("❌ 房间 %s 内部错误: %v", r.Code, err)
	r.abortGame(ReasonInternalError)
}

// endGame 正常结束，唯一最低分者获胜
func (r *Room) endGame(reason string) {
	r.finishGame(reason, true)
}

// abortGame 异常结束，不判定胜者
func (r *Room) abortGame(reason string) {
	r.finishGame(reason, false)
}

func (r *Room) finishGame(reason string, pickWinner bool) {
	if r.closed {
		return
	}
	wasInGame := r.state.InGame()

	r.cancelChoiceTimer()
	r.pending = nil
	r.trick = nil
	clear(r.played)
	r.state = RoomStateGameOver

	ranked := r.rankings()
	var winner *Player
	if pickWinner && len(ranked) > 0 && (len(ranked) == 1 || ranked[0].player.Score < ranked[1].player.Score) {
		winner = ranked[0].player
	}
	r.winnerName = ""
	if winner != nil {
		r.winnerName = winner.Name
	}

	for _, p := range r.players {
		p.Ready = false
		p.RequestedNewGame = p.IsRobot
	}

	payload := protocol.GameOverPayload{Reason: reason, Results: make([]protocol.PlayerResult, 0, len(ranked))}
	if winner != nil {
		payload.WinnerID = winner.ConnID
		payload.WinnerName = winner.Name
	}
	for _, rp := range ranked {
		payload.Results = append(payload.Results, protocol.PlayerResult{
			PlayerID:   rp.player.ConnID,
			PlayerName: rp.player.Name,
			Rank:       rp.rank,
			Score:      rp.player.Score,
		})
	}
	r.broadcast(codec.MustNewMessage(protocol.MsgGameOver, payload))
	r.touch()

	log.Printf("🏁 房间 %s 游戏结束 (%s)，胜者: %q", r.Code, reason, r.winnerName)

	if wasInGame {
		r.recordHistory(reason, ranked, winner)
	}
}

type rankedPlayer struct {
	player *Player
	rank   int
}

// rankings 按分数升序排名，同分同名次（1,1,3）
func (r *Room) rankings() []rankedPlayer {
	players := r.sortedPlayers()
	slices.SortStableFunc(players, func(a, b *Player) int { return a.Score - b.Score })

	ranked := make([]rankedPlayer, len(players))
	for i, p := range players {
		rank := i + 1
		if i > 0 && p.Score == players[i-1].Score {
			rank = ranked[i-1].rank
		}
		ranked[i] = rankedPlayer{player: p, rank: rank}
	}
	return ranked
}

// recordHistory 解锁后异步写入历史记录
func (r *Room) recordHistory(reason string, ranked []rankedPlayer, winner *Player) {
	if r.deps.history == nil || len(ranked) == 0 {
		return
	}

	rec := &storage.GameRecord{
		RoomCode: r.Code,
		Rounds:   r.round,
		Reason:   reason,
		EndedAt:  time.Now(),
		Results:  make([]storage.PlayerResult, 0, len(ranked)),
	}
	for _, rp := range ranked {
		accountID := rp.player.AccountID
		if accountID == "" {
			accountID = rp.player.ConnID
		}
		rec.Results = append(rec.Results, storage.PlayerResult{
			AccountID: accountID,
			Name:      rp.player.Name,
			Rank:      rp.rank,
			Score:     rp.player.Score,
			IsRobot:   rp.player.IsRobot,
			IsWinner:  rp.player == winner,
		})
	}

	sink := r.deps.history
	r.later(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
			defer cancel()
			if err := sink.RecordGame(ctx, rec); err != nil {
				log.Printf("⚠️ 房间 %s 写入历史记录失败: %v", rec.RoomCode, err)
			}
		}()
	})
}
