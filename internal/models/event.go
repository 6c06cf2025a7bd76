package models

// EventType identifies a domain event emitted by a state-changing operation.
type EventType string

const (
	EventExpenseCreated        EventType = "expense.created"
	EventExpenseUpdated        EventType = "expense.updated"
	EventSettlementCreated     EventType = "settlement.created"
	EventSettlementConfirmed   EventType = "settlement.confirmed"
	EventSettlementCompleted   EventType = "settlement.completed"
	EventSettlementCancelled   EventType = "settlement.cancelled"
	EventSettlementFailed      EventType = "settlement.failed"
	EventFinalizationInitiated EventType = "finalization.initiated"
	EventFinalizationApproved  EventType = "finalization.approved"
	EventFinalizationRejected  EventType = "finalization.rejected"
	EventFinalizationExpired   EventType = "finalization.expired"
)

// Event is a domain event. The engine only emits; a collaborator decides
// whether delivery is synchronous or queued and how events become
// notifications.
type Event struct {
	Type EventType

	// GroupID scopes the event.
	GroupID string

	// SubjectID is the id of the entity the event is about (expense,
	// settlement or finalization).
	SubjectID string

	// ActorID is the participant who triggered the change, empty for
	// sweeper-driven events.
	ActorID string

	// OccurredAt is the Unix timestamp of the change.
	OccurredAt int64

	// Attrs carries small event-specific details, such as the number of
	// expenses locked by an approval.
	Attrs map[string]string
}
