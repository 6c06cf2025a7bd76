package models

import "github.com/shopspring/decimal"

// SplitStrategy selects how an expense is divided among participants.
type SplitStrategy string

const (
	// SplitEqual divides the total evenly; the payer's split absorbs the
	// rounding remainder.
	SplitEqual SplitStrategy = "EQUAL"

	// SplitAmount takes each requested share verbatim; shares must sum to
	// the expense total.
	SplitAmount SplitStrategy = "AMOUNT"

	// SplitPercentage derives each share from a percentage of the total;
	// percentages must sum to 100.
	SplitPercentage SplitStrategy = "PERCENTAGE"
)

// SplitStatus tracks whether one participant's share has been settled.
type SplitStatus string

const (
	SplitPending  SplitStatus = "PENDING"
	SplitSettled  SplitStatus = "SETTLED"
	SplitDisputed SplitStatus = "DISPUTED"
)

// Expense is a single purchase recorded against a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the owning group.
	GroupID string

	// Title is the human-readable description.
	Title string

	// Amount is the full expense total. The sum of split amounts always
	// equals it exactly.
	Amount decimal.Decimal

	// Currency is the ISO 4217 code of the amount.
	Currency string

	// PayerID is the participant who paid the full amount.
	PayerID string

	// Strategy is how the amount was divided.
	Strategy SplitStrategy

	// Splits are the per-participant shares, one per participant.
	Splits []ExpenseSplit

	// CreatedAt is the Unix timestamp when the expense was recorded. It is
	// the value compared against a finalization's snapshot cutoff.
	CreatedAt int64

	// Locked marks the expense as frozen by an approved finalization.
	// Amount, splits and payer are immutable once set.
	Locked bool

	// LockedAt is the Unix timestamp of locking, zero if unlocked.
	LockedAt int64

	// LockedByFinalizationID identifies the finalization that locked the
	// expense, empty if unlocked.
	LockedByFinalizationID string
}

// ExpenseSplit is one participant's owed share of a single expense.
type ExpenseSplit struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	// ExpenseID is the owning expense.
	ExpenseID string

	// ParticipantID is the participant who owes Amount.
	ParticipantID string

	// Amount is the owed share.
	Amount decimal.Decimal

	// Percentage is the share of the total this split represents, kept for
	// display. Derived for EQUAL and AMOUNT strategies.
	Percentage decimal.Decimal

	// IsPayer marks the split belonging to the expense's payer. Exactly one
	// split per expense carries it.
	IsPayer bool

	// Status tracks settlement of this share.
	Status SplitStatus
}

// ShareInput is one participant's requested share when creating or
// recomputing an expense. Amount is read for the AMOUNT strategy,
// Percentage for PERCENTAGE; EQUAL uses only the participant id.
type ShareInput struct {
	ParticipantID string
	Amount        decimal.Decimal
	Percentage    decimal.Decimal
}
