// Package domain holds the typed identifiers shared across engine modules.
// Party, property, and payment ids are opaque external identifiers: the core
// stores and compares them but never dereferences them.
package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// AccountID identifies an escrow account (the generated account number).
type AccountID string

func (id AccountID) String() string { return string(id) }

// PlanID identifies an installment plan.
type PlanID string

func (id PlanID) String() string { return string(id) }

// RequestID identifies a release request within an escrow account.
type RequestID string

func (id RequestID) String() string { return string(id) }

// PartyID is an opaque identifier for a buyer, seller, or agent.
type PartyID string

func (id PartyID) String() string { return string(id) }

// PropertyID is an opaque identifier for a property.
type PropertyID string

// LeadID is an opaque identifier for a sales lead.
type LeadID string

func (id LeadID) String() string { return string(id) }

// PaymentID is an opaque identifier supplied by the payment ledger.
type PaymentID string

// NewPlanID returns a fresh installment plan id.
func NewPlanID() PlanID { return PlanID(uuid.NewString()) }

// NewRequestID returns a fresh release request id.
func NewRequestID() RequestID { return RequestID(uuid.NewString()) }

// NewAccountNumber generates an escrow account number in the form
// ESC-<year>-<6-digit-random>. Uniqueness is enforced at the store; callers
// retry with a new number on collision.
func NewAccountNumber(now time.Time) (AccountID, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	return AccountID(fmt.Sprintf("ESC-%d-%06d", now.Year(), n.Int64())), nil
}
