package card

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	DeckSize  = 104 // 整副牌张数
	MinNumber = 1
	MaxNumber = 104
)

// ErrDeckExhausted 牌堆剩余不足
var ErrDeckExhausted = errors.New("deck exhausted")

// Card 定义一张牌，创建后不可变
type Card struct {
	Number  int // 牌面数字 1-104
	Penalty int // 牛头数（罚分）
}

// New 根据牌面数字创建一张牌
func New(number int) Card {
	return Card{Number: number, Penalty: PenaltyOf(number)}
}

// PenaltyOf 计算牌面数字对应的牛头数
func PenaltyOf(number int) int {
	switch {
	case number == 55:
		return 7
	case number%11 == 0:
		return 5
	case number%10 == 0:
		return 3
	case number%5 == 0:
		return 2
	default:
		return 1
	}
}

// IsValidNumber 牌面数字是否在整副牌范围内
func IsValidNumber(number int) bool {
	return number >= MinNumber && number <= MaxNumber
}

func (c Card) String() string {
	return fmt.Sprintf("%d(%d)", c.Number, c.Penalty)
}

// Deck 牌堆，顺序即抽牌顺序
type Deck []Card

// NewDeck 创建一副完整的牌（1-104 顺序排列）
func NewDeck() Deck {
	deck := make(Deck, 0, DeckSize)
	for n := MinNumber; n <= MaxNumber; n++ {
		deck = append(deck, New(n))
	}
	return deck
}

// Shuffle 洗牌
func (d Deck) Shuffle() {
	rand.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})
}

// Draw 从牌堆顶部抽取 n 张牌
func (d *Deck) Draw(n int) ([]Card, error) {
	if n < 0 || n > len(*d) {
		return nil, fmt.Errorf("draw %d of %d: %w", n, len(*d), ErrDeckExhausted)
	}
	drawn := make([]Card, n)
	copy(drawn, (*d)[:n])
	*d = (*d)[n:]
	return drawn, nil
}

// Len 剩余张数
func (d Deck) Len() int {
	return len(d)
}
