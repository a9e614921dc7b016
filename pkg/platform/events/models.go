// Package events carries domain events emitted by the escrow and installment
// engines. Events are informational fan-out for downstream consumers
// (reporting, notifications); emission is fire-and-forget and never fails the
// originating operation.
package events

import (
	"time"
)

// EventType names a payment-domain event.
type EventType string

const (
	// Escrow events
	EventEscrowOpened     EventType = "escrow_opened"
	EventEscrowFunded     EventType = "escrow_funded"
	EventReleaseRequested EventType = "release_requested"
	EventReleaseExecuted  EventType = "release_executed"
	EventEscrowCancelled  EventType = "escrow_cancelled"

	// Installment events
	EventInstallmentPaid    EventType = "installment_paid"
	EventInstallmentOverdue EventType = "installment_overdue"
	EventPlanCompleted      EventType = "plan_completed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so publishers can fan out to any sink.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	// Subject is the aggregate the event concerns (account number or plan id).
	Subject string `json:"subject"`
	// Amount is the decimal string of the money moved, when applicable.
	Amount string `json:"amount,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
	// Attributes carries event-specific detail (request ids, installment
	// numbers, recipients).
	Attributes map[string]string `json:"attributes,omitempty"`
}
