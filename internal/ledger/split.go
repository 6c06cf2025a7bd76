// Package ledger implements the pure calculation core: expense splitting,
// balance aggregation and settlement suggestion. Nothing in this package
// touches storage; all functions are deterministic over their inputs.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/money"
)

// percentTolerance is how far requested percentages may drift from 100.
var percentTolerance = money.MustParse("0.01")

// ComputeSplits divides total among the requested shares under the given
// strategy. For every strategy the returned split amounts sum to total
// exactly; any rounding remainder is assigned to the payer's split. Exactly
// one split carries IsPayer, matching payerID.
func ComputeSplits(total decimal.Decimal, strategy models.SplitStrategy, payerID string, shares []models.ShareInput) ([]models.ExpenseSplit, error) {
	if total.Sign() <= 0 {
		return nil, models.Errorf(models.KindInvalidSplit, "expense amount must be positive, got %s", total)
	}
	if len(shares) == 0 {
		return nil, models.Errorf(models.KindInvalidSplit, "at least one share is required")
	}

	seen := make(map[string]bool, len(shares))
	payerIdx := -1
	for i, sh := range shares {
		if sh.ParticipantID == "" {
			return nil, models.Errorf(models.KindInvalidSplit, "share %d has no participant", i)
		}
		if seen[sh.ParticipantID] {
			return nil, models.Errorf(models.KindInvalidSplit, "duplicate participant %s in shares", sh.ParticipantID)
		}
		seen[sh.ParticipantID] = true
		if sh.ParticipantID == payerID {
			payerIdx = i
		}
	}
	if payerIdx < 0 {
		return nil, models.Errorf(models.KindPayerNotInSplit, "payer %s is not among the shares", payerID)
	}

	var splits []models.ExpenseSplit
	var err error
	switch strategy {
	case models.SplitEqual:
		splits = equalSplits(total, shares)
	case models.SplitAmount:
		splits, err = amountSplits(total, shares)
	case models.SplitPercentage:
		splits, err = percentageSplits(total, shares)
	default:
		return nil, models.Errorf(models.KindInvalidSplit, "unknown split strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}

	// Assign any rounding remainder to the payer so the splits always
	// reconcile to the full total.
	remainder := total.Sub(sumAmounts(splits))
	if !remainder.IsZero() {
		splits[payerIdx].Amount = splits[payerIdx].Amount.Add(remainder)
	}
	splits[payerIdx].IsPayer = true

	return splits, nil
}

func equalSplits(total decimal.Decimal, shares []models.ShareInput) []models.ExpenseSplit {
	n := decimal.NewFromInt(int64(len(shares)))
	per := money.Round(total.Div(n))
	pct := money.Round(money.Hundred.Div(n))

	splits := make([]models.ExpenseSplit, len(shares))
	for i, sh := range shares {
		splits[i] = models.ExpenseSplit{
			ParticipantID: sh.ParticipantID,
			Amount:        per,
			Percentage:    pct,
			Status:        models.SplitPending,
		}
	}
	return splits
}

func amountSplits(total decimal.Decimal, shares []models.ShareInput) ([]models.ExpenseSplit, error) {
	requested := decimal.Zero
	for _, sh := range shares {
		if sh.Amount.Sign() < 0 {
			return nil, models.Errorf(models.KindInvalidSplit, "negative share amount for %s", sh.ParticipantID)
		}
		requested = requested.Add(sh.Amount)
	}
	if !requested.Equal(total) {
		return nil, models.Errorf(models.KindInvalidSplit,
			"share amounts sum to %s, expense total is %s", requested, total)
	}

	splits := make([]models.ExpenseSplit, len(shares))
	for i, sh := range shares {
		splits[i] = models.ExpenseSplit{
			ParticipantID: sh.ParticipantID,
			Amount:        money.Round(sh.Amount),
			Percentage:    money.Round(sh.Amount.Mul(money.Hundred).Div(total)),
			Status:        models.SplitPending,
		}
	}
	return splits, nil
}

func percentageSplits(total decimal.Decimal, shares []models.ShareInput) ([]models.ExpenseSplit, error) {
	requested := decimal.Zero
	for _, sh := range shares {
		if sh.Percentage.Sign() < 0 {
			return nil, models.Errorf(models.KindInvalidSplit, "negative percentage for %s", sh.ParticipantID)
		}
		requested = requested.Add(sh.Percentage)
	}
	if requested.Sub(money.Hundred).Abs().Cmp(percentTolerance) > 0 {
		return nil, models.Errorf(models.KindInvalidSplit,
			"percentages sum to %s, want 100", requested)
	}

	splits := make([]models.ExpenseSplit, len(shares))
	for i, sh := range shares {
		splits[i] = models.ExpenseSplit{
			ParticipantID: sh.ParticipantID,
			Amount:        money.Round(total.Mul(sh.Percentage).Div(money.Hundred)),
			Percentage:    money.Round(sh.Percentage),
			Status:        models.SplitPending,
		}
	}
	return splits, nil
}

func sumAmounts(splits []models.ExpenseSplit) decimal.Decimal {
	total := decimal.Zero
	for _, s := range splits {
		total = total.Add(s.Amount)
	}
	return total
}

// ReconcileSplits merges freshly computed splits into an existing set by
// participant identity: a split for a participant already present keeps its
// id and settlement status and takes the new amount, percentage and payer
// flag; participants only in the computed set become new splits; existing
// splits whose participant is gone are simply not carried over, so the
// storage layer deletes them. This keeps settlement history (e.g. SETTLED
// shares) on participants unaffected by the edit.
func ReconcileSplits(existing, computed []models.ExpenseSplit) []models.ExpenseSplit {
	byParticipant := make(map[string]models.ExpenseSplit, len(existing))
	for _, s := range existing {
		byParticipant[s.ParticipantID] = s
	}

	merged := make([]models.ExpenseSplit, len(computed))
	for i, c := range computed {
		if prev, ok := byParticipant[c.ParticipantID]; ok {
			c.ID = prev.ID
			c.ExpenseID = prev.ExpenseID
			c.Status = prev.Status
		}
		merged[i] = c
	}
	return merged
}
