package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
)

// Balances walks every expense of a group and returns each participant's net
// position: positive means the group owes them, negative means they owe the
// group. For each expense the payer is credited the full amount and every
// split's participant is debited their share; the two effects cancel for the
// payer to the extent of their own share.
//
// The result is zero-sum and independent of iteration order. Amounts are
// assumed comparable: currency conversion, if any, happens before this call.
func Balances(participants []models.Participant, expenses []models.Expense) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(participants))
	for _, p := range participants {
		balances[p.ID] = decimal.Zero
	}

	for _, e := range expenses {
		balances[e.PayerID] = balances[e.PayerID].Add(e.Amount)
		for _, s := range e.Splits {
			balances[s.ParticipantID] = balances[s.ParticipantID].Sub(s.Amount)
		}
	}

	return balances
}
