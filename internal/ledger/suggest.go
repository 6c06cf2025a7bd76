package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/money"
)

type position struct {
	participantID string
	amount        decimal.Decimal // always positive
}

// SuggestSettlements reduces a balance map to a short list of point-to-point
// payments that would drive every balance to within money.Epsilon of zero.
//
// The algorithm greedily matches the current largest debtor against the
// current largest creditor. This approximates the minimum number of
// transactions but is not a proven optimum in the general case. Output is
// deterministic: positions are ordered by descending magnitude with ties
// broken by participant id.
func SuggestSettlements(groupID, currency string, balances map[string]decimal.Decimal) []models.Settlement {
	var debtors, creditors []position
	for id, bal := range balances {
		if money.IsZeroish(bal) {
			continue
		}
		if bal.Sign() < 0 {
			debtors = append(debtors, position{id, bal.Neg()})
		} else {
			creditors = append(creditors, position{id, bal})
		}
	}
	sortPositions(debtors)
	sortPositions(creditors)

	var suggestions []models.Settlement
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := debtor.amount
		if creditor.amount.Cmp(amount) < 0 {
			amount = creditor.amount
		}

		suggestions = append(suggestions, models.Settlement{
			GroupID:           groupID,
			FromParticipantID: debtor.participantID,
			ToParticipantID:   creditor.participantID,
			Amount:            amount,
			Currency:          currency,
			Status:            models.SettlementSuggested,
		})

		debtor.amount = debtor.amount.Sub(amount)
		creditor.amount = creditor.amount.Sub(amount)
		if money.IsZeroish(debtor.amount) {
			i++
		}
		if money.IsZeroish(creditor.amount) {
			j++
		}
	}

	return suggestions
}

func sortPositions(ps []position) {
	sort.Slice(ps, func(a, b int) bool {
		if cmp := ps[a].amount.Cmp(ps[b].amount); cmp != 0 {
			return cmp > 0
		}
		return ps[a].participantID < ps[b].participantID
	})
}
