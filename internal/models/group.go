package models

// Role is a participant's role within a group.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Group represents a shared ledger for a set of participants.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Lisbon Trip").
	Name string

	// Currency is the ISO 4217 code balances and settlements are expressed
	// in. The ledger does not convert; expenses are assumed comparable.
	Currency string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Participant is a named slot within a group. It may be bound to a real user
// identity via UserID; an unbound participant represents someone who has not
// joined digitally but can still owe and be owed money.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string

	// GroupID is the group this participant belongs to.
	GroupID string

	// Name is the display name within the group.
	Name string

	// UserID is the bound user identity, empty if unbound.
	UserID string

	// Role controls group administration (initiating finalizations).
	Role Role

	// CreatedAt is the Unix timestamp when the participant was added.
	CreatedAt int64
}

// Bound reports whether the participant is linked to a user identity.
func (p Participant) Bound() bool { return p.UserID != "" }
