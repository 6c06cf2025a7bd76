// Package models defines the core domain entities of the shared-expense ledger.
//
// # Entities
//
//   - Group: a shared ledger with a settlement currency
//   - Participant: a group-scoped identity slot, optionally bound to a user
//   - Expense and ExpenseSplit: one purchase and its per-participant shares
//   - Settlement: a proposed or recorded payment between two participants
//   - ExpenseFinalization: a quorum workflow that locks historical expenses
//   - MemberResponse: one member's accept/decline on a finalization
//   - Event: a domain event emitted by state-changing operations
//
// # Design principles
//
// Entities reference each other by string id rather than by pointer, so there
// are no ownership cycles; lookup lives at the storage boundary. Balances are
// computed per participant, not per user: an unbound participant (someone who
// has not joined digitally) can still accrue debt. Timestamps are Unix
// seconds, zero meaning unset.
package models
