package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure independently of any transport
// status code. Callers map kinds to whatever their transport needs.
type ErrorKind string

const (
	KindInvalidSplit               ErrorKind = "invalid_split"
	KindPayerNotInSplit            ErrorKind = "payer_not_in_split"
	KindExpenseLocked              ErrorKind = "expense_locked"
	KindParticipantNotFound        ErrorKind = "participant_not_found"
	KindExpenseNotFound            ErrorKind = "expense_not_found"
	KindGroupNotFound              ErrorKind = "group_not_found"
	KindFinalizationNotFound       ErrorKind = "finalization_not_found"
	KindSettlementNotFound         ErrorKind = "settlement_not_found"
	KindUnauthorized               ErrorKind = "unauthorized"
	KindFinalizationAlreadyPending ErrorKind = "finalization_already_pending"
	KindInvalidStateTransition     ErrorKind = "invalid_state_transition"
)

// Error is a typed domain failure.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Errorf builds a typed domain error.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err carries no domain kind.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
