package models

import "github.com/shopspring/decimal"

// SettlementStatus is the lifecycle state of a settlement.
//
// Transitions move strictly forward:
//
//	SUGGESTED -> PENDING -> {COMPLETED, CANCELLED, FAILED}
//
// The only entry points that skip PENDING are the explicit administrative
// create-with-status paths, which are logged.
type SettlementStatus string

const (
	SettlementSuggested SettlementStatus = "SUGGESTED"
	SettlementPending   SettlementStatus = "PENDING"
	SettlementCompleted SettlementStatus = "COMPLETED"
	SettlementCancelled SettlementStatus = "CANCELLED"
	SettlementFailed    SettlementStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s SettlementStatus) Terminal() bool {
	switch s {
	case SettlementCompleted, SettlementCancelled, SettlementFailed:
		return true
	}
	return false
}

// Settlement is a proposed or recorded payment between two participants.
// It never mutates expense records; a COMPLETED settlement is an independent
// ledger entry the consumer nets against gross balances.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromParticipantID is the debtor making the payment.
	FromParticipantID string

	// ToParticipantID is the creditor receiving it.
	ToParticipantID string

	// Amount is the payment amount.
	Amount decimal.Decimal

	// Currency is the ISO 4217 code of the amount.
	Currency string

	// Status is the lifecycle state.
	Status SettlementStatus

	// Method is the optional settlement method (e.g., "cash", "transfer").
	Method string

	// ExternalRef is an optional external reference code, such as a
	// payment-gateway transaction id.
	ExternalRef string

	// Note is an optional free-text description.
	Note string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// ConfirmedAt is the Unix timestamp of the PENDING transition, zero
	// while suggested. The expiry sweep measures from it, not from
	// CreatedAt, so a suggestion may sit unconfirmed indefinitely.
	ConfirmedAt int64

	// SettledAt is the Unix timestamp of completion, zero otherwise.
	SettledAt int64
}
