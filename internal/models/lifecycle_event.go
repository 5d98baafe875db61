package models

import "time"

type LifecycleEventType string

const (
	LifecycleTicketIssued      LifecycleEventType = "ticket.issued"
	LifecycleTicketPurchased   LifecycleEventType = "ticket.purchased"
	LifecycleTicketDeactivated LifecycleEventType = "ticket.deactivated"
	LifecycleTicketCheckedIn   LifecycleEventType = "ticket.checked_in"
	LifecycleLedgerReset       LifecycleEventType = "checkin.ledger_reset"
)

// LifecycleEvent is the message published to Kafka for every state change.
type LifecycleEvent struct {
	Type       LifecycleEventType `json:"type"`
	TicketID   string             `json:"ticketId,omitempty"`
	EventID    string             `json:"eventId,omitempty"`
	ActorID    string             `json:"actorId,omitempty"`
	TicketType TicketType         `json:"ticketType,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}
