package card

import "slices"

// SortAscending 按牌面数字升序排序
func SortAscending(cards []Card) {
	slices.SortFunc(cards, func(a, b Card) int {
		return a.Number - b.Number
	})
}

// IndexOf 查找指定数字的牌，不存在返回 -1
func IndexOf(cards []Card, number int) int {
	for i, c := range cards {
		if c.Number == number {
			return i
		}
	}
	return -1
}

// Contains 是否包含指定数字的牌
func Contains(cards []Card, number int) bool {
	return IndexOf(cards, number) >= 0
}

// Remove 移除指定数字的牌，返回新切片和被移除的牌
func Remove(cards []Card, number int) ([]Card, Card, bool) {
	idx := IndexOf(cards, number)
	if idx < 0 {
		return cards, Card{}, false
	}
	removed := cards[idx]
	return slices.Delete(cards, idx, idx+1), removed, true
}

// Lowest 返回数字最小的牌
func Lowest(cards []Card) (Card, bool) {
	if len(cards) == 0 {
		return Card{}, false
	}
	lowest := cards[0]
	for _, c := range cards[1:] {
		if c.Number < lowest.Number {
			lowest = c
		}
	}
	return lowest, true
}

// PenaltySum 牛头数之和
func PenaltySum(cards []Card) int {
	sum := 0
	for _, c := range cards {
		sum += c.Penalty
	}
	return sum
}

// Numbers 提取牌面数字
func Numbers(cards []Card) []int {
	nums := make([]int, len(cards))
	for i, c := range cards {
		nums[i] = c.Number
	}
	return nums
}
