package convert

import (
	"github.com/palemoky/take-six/internal/game/card"
	"github.com/palemoky/take-six/internal/game/rule"
	"github.com/palemoky/take-six/internal/protocol"
)

// CardToInfo 将 card.Card 转换为 protocol.CardInfo
func CardToInfo(c card.Card) protocol.CardInfo {
	return protocol.CardInfo{Number: c.Number, Penalty: c.Penalty}
}

// CardsToInfos 将 []card.Card 转换为 []protocol.CardInfo
func CardsToInfos(cards []card.Card) []protocol.CardInfo {
	infos := make([]protocol.CardInfo, len(cards))
	for i, c := range cards {
		infos[i] = CardToInfo(c)
	}
	return infos
}

// TableToInfos 将桌面四行转换为 []protocol.RowInfo
func TableToInfos(t *rule.Table) []protocol.RowInfo {
	rows := make([]protocol.RowInfo, 0, len(t))
	for _, row := range t {
		rows = append(rows, protocol.RowInfo{
			Cards:   CardsToInfos(row),
			Penalty: row.Penalty(),
		})
	}
	return rows
}
