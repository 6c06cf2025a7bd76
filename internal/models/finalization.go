package models

// FinalizationStatus is the lifecycle state of a finalization.
//
//	PENDING -> {APPROVED, REJECTED, EXPIRED -> APPROVED}
//
// EXPIRED is transitional: the expiry sweep marks a past-deadline
// finalization EXPIRED and immediately approves it, treating silence as
// consent.
type FinalizationStatus string

const (
	FinalizationPending  FinalizationStatus = "PENDING"
	FinalizationApproved FinalizationStatus = "APPROVED"
	FinalizationRejected FinalizationStatus = "REJECTED"
	FinalizationExpired  FinalizationStatus = "EXPIRED"
)

// Terminal reports whether the finalization can no longer change state.
// EXPIRED is not terminal; it always proceeds to APPROVED.
func (s FinalizationStatus) Terminal() bool {
	return s == FinalizationApproved || s == FinalizationRejected
}

// ExpenseFinalization is one attempt to lock a group's expense history.
// At most one PENDING finalization exists per group at a time.
type ExpenseFinalization struct {
	// ID is the unique identifier for the finalization (UUID format).
	ID string

	// GroupID is the group being finalized.
	GroupID string

	// Status is the lifecycle state.
	Status FinalizationStatus

	// FinalizedAt is the snapshot cutoff, fixed at creation: expenses
	// created at or before it are locked on approval.
	FinalizedAt int64

	// Deadline is when unanswered approvals turn into implicit consent.
	Deadline int64

	// InitiatorID is the admin participant who started the workflow.
	InitiatorID string

	// Reason is the initiator's free-text justification.
	Reason string

	// CreatedAt is the Unix timestamp when the finalization was created.
	CreatedAt int64

	// ResolvedAt is the Unix timestamp of the terminal transition, zero
	// while pending.
	ResolvedAt int64
}

// ResponseStatus is one member's answer to a finalization approval request.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "PENDING"
	ResponseAccepted ResponseStatus = "ACCEPTED"
	ResponseDeclined ResponseStatus = "DECLINED"
)

// Terminal reports whether the member has answered.
func (s ResponseStatus) Terminal() bool {
	return s == ResponseAccepted || s == ResponseDeclined
}

// MemberResponse records one member's approval state for a finalization.
type MemberResponse struct {
	FinalizationID string
	ParticipantID  string
	Status         ResponseStatus

	// RespondedAt is the Unix timestamp of the answer, zero while pending.
	RespondedAt int64
}
