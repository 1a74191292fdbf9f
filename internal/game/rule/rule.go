package rule

import (
	"fmt"

	"github.com/palemoky/take-six/internal/game/card"
)

const (
	RowCount    = 4 // 桌面行数
	RowCapacity = 5 // 每行最多容纳的牌数，第 6 张触发收牌
)

// Row 桌面上的一行牌，按放置顺序排列
type Row []card.Card

// Last 最后一张牌
func (r Row) Last() (card.Card, bool) {
	if len(r) == 0 {
		return card.Card{}, false
	}
	return r[len(r)-1], true
}

// Penalty 该行牛头数之和
func (r Row) Penalty() int {
	return card.PenaltySum(r)
}

// IsFull 是否已满（再放一张就要收牌）
func (r Row) IsFull() bool {
	return len(r) >= RowCapacity
}

// IsAscending 行内牌面数字是否严格递增
func (r Row) IsAscending() bool {
	for i := 1; i < len(r); i++ {
		if r[i].Number <= r[i-1].Number {
			return false
		}
	}
	return true
}

// Table 四行牌组成的桌面
type Table [RowCount]Row

// Seed 每行放入一张起始牌
func (t *Table) Seed(cards []card.Card) error {
	if len(cards) != RowCount {
		return fmt.Errorf("seed table: need %d cards, got %d", RowCount, len(cards))
	}
	for i, c := range cards {
		t[i] = Row{c}
	}
	return nil
}

// Clear 清空桌面
func (t *Table) Clear() {
	for i := range t {
		t[i] = nil
	}
}

// Candidate 为出牌选择目标行
//
// 末张小于出牌的非空行中选差值最小的一行；没有这样的行时退而选择第一条空行；
// 都没有则返回 false，需要出牌者选择一行收走。
func (t *Table) Candidate(c card.Card) (int, bool) {
	best, bestDiff := -1, 0
	firstEmpty := -1

	for i, row := range t {
		last, ok := row.Last()
		if !ok {
			if firstEmpty < 0 {
				firstEmpty = i
			}
			continue
		}
		if last.Number >= c.Number {
			continue
		}
		if diff := c.Number - last.Number; best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}

	if best >= 0 {
		return best, true
	}
	if firstEmpty >= 0 {
		return firstEmpty, true
	}
	return -1, false
}

// Place 将牌放到指定行
// 行已满时返回被收走的 5 张牌，该行只剩下刚放入的牌。
func (t *Table) Place(idx int, c card.Card) []card.Card {
	row := t[idx]
	if row.IsFull() {
		collected := append([]card.Card(nil), row...)
		t[idx] = Row{c}
		return collected
	}
	t[idx] = append(row, c)
	return nil
}

// Take 收走指定行的全部牌，并以触发牌重新开始该行
func (t *Table) Take(idx int, c card.Card) []card.Card {
	collected := append([]card.Card(nil), t[idx]...)
	t[idx] = Row{c}
	return collected
}

// AutoChoice 自动选择牛头数最少的一行，相同时取序号最小的
func (t *Table) AutoChoice() int {
	best, bestPenalty := 0, t[0].Penalty()
	for i := 1; i < RowCount; i++ {
		if p := t[i].Penalty(); p < bestPenalty {
			best, bestPenalty = i, p
		}
	}
	return best
}

// Penalties 每行的牛头数
func (t *Table) Penalties() [RowCount]int {
	var out [RowCount]int
	for i, row := range t {
		out[i] = row.Penalty()
	}
	return out
}

// IsValidRow 行序号是否合法
func IsValidRow(idx int) bool {
	return idx >= 0 && idx < RowCount
}
