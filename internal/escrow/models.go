package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/money"
)

// Status is the lifecycle state of an escrow account.
type Status string

const (
	// StatusActive marks an account open and collecting deposits.
	StatusActive Status = "ACTIVE"
	// StatusFunded marks an account whose deposits reached the target amount.
	StatusFunded Status = "FUNDED"
	// StatusPartialRelease marks an account with some, but not all, funds paid out.
	StatusPartialRelease Status = "PARTIAL_RELEASE"
	// StatusCompleted marks an account fully released; terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks an explicitly cancelled account; terminal.
	StatusCancelled Status = "CANCELLED"
	// StatusDisputed is reserved for external dispute handling. Engine
	// operations never produce it.
	StatusDisputed Status = "DISPUTED"
)

// PartyRole identifies which transacting party an identity resolved to.
type PartyRole string

const (
	RoleBuyer  PartyRole = "buyer"
	RoleSeller PartyRole = "seller"
)

// Default condition names seeded on every new account.
const (
	ConditionTitleDeedTransfer = "title_deed_transfer"
	ConditionNOC               = "noc"
	ConditionHandover          = "handover"
)

// Condition is a named milestone on the transaction. Conditions are
// informational: release is gated on party approvals, not on fulfilment.
type Condition struct {
	Name        string     `json:"name"`
	Fulfilled   bool       `json:"fulfilled"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
}

// ReleaseApproval is a proposal to disburse funds, requiring approval from
// both buyer and seller before execution. Approvals are overwritable until
// the request executes; execution happens at most once.
type ReleaseApproval struct {
	ID          id.RequestID    `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	RequestedBy id.PartyID      `json:"requested_by"`
	RequestedAt time.Time       `json:"requested_at"`

	BuyerApproved    bool       `json:"buyer_approved"`
	BuyerApprovedAt  *time.Time `json:"buyer_approved_at,omitempty"`
	SellerApproved   bool       `json:"seller_approved"`
	SellerApprovedAt *time.Time `json:"seller_approved_at,omitempty"`

	Executed   bool       `json:"executed"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	Recipient  id.PartyID `json:"recipient,omitempty"`
}

// Account is the escrow aggregate. The engine is its sole writer; every
// mutation happens inside a store Update and either commits whole or not at
// all, so the balance invariant 0 <= released <= deposited holds at every
// observable state.
type Account struct {
	Number     id.AccountID  `json:"number"`
	PropertyID id.PropertyID `json:"property_id"`
	BuyerID    id.PartyID    `json:"buyer_id"`
	SellerID   id.PartyID    `json:"seller_id"`
	AgentID    id.PartyID    `json:"agent_id,omitempty"`

	TotalAmount     decimal.Decimal `json:"total_amount"`
	DepositedAmount decimal.Decimal `json:"deposited_amount"`
	ReleasedAmount  decimal.Decimal `json:"released_amount"`

	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	IBAN              string `json:"iban,omitempty"`

	Conditions      []Condition       `json:"conditions"`
	ReleaseRequests []ReleaseApproval `json:"release_requests"`

	Status   Status     `json:"status"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// CreateAccountParams carries the inputs for opening an escrow account.
type CreateAccountParams struct {
	PropertyID        id.PropertyID
	BuyerID           id.PartyID
	SellerID          id.PartyID
	AgentID           id.PartyID
	TotalAmount       decimal.Decimal
	BankName          string
	BankAccountNumber string
	IBAN              string
}

// NewAccount builds a fresh ACTIVE aggregate with zero balances and the
// standard conditions seeded unfulfilled.
func NewAccount(number id.AccountID, property id.PropertyID, buyer, seller, agent id.PartyID,
	total decimal.Decimal, bankName, bankAccountNumber, iban string, now time.Time) *Account {
	return &Account{
		Number:            number,
		PropertyID:        property,
		BuyerID:           buyer,
		SellerID:          seller,
		AgentID:           agent,
		TotalAmount:       total,
		DepositedAmount:   decimal.Zero,
		ReleasedAmount:    decimal.Zero,
		BankName:          bankName,
		BankAccountNumber: bankAccountNumber,
		IBAN:              iban,
		Conditions:        defaultConditions(),
		ReleaseRequests:   []ReleaseApproval{},
		Status:            StatusActive,
		OpenedAt:          now,
	}
}

// defaultConditions seeds the three standard milestones, all unfulfilled.
func defaultConditions() []Condition {
	return []Condition{
		{Name: ConditionTitleDeedTransfer},
		{Name: ConditionNOC},
		{Name: ConditionHandover},
	}
}

// Available returns the balance still held in escrow: deposited minus released.
func (a *Account) Available() decimal.Decimal {
	return a.DepositedAmount.Sub(a.ReleasedAmount)
}

// Clone deep-copies the aggregate so stores can hand out mutation-safe copies.
func (a *Account) Clone() *Account {
	out := *a
	out.Conditions = append([]Condition(nil), a.Conditions...)
	out.ReleaseRequests = append([]ReleaseApproval(nil), a.ReleaseRequests...)
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}

// Deposit adds funds to the account. Deposits accumulate without an upper
// bound; reaching the target amount promotes ACTIVE to FUNDED exactly once.
func (a *Account) Deposit(amount decimal.Decimal, now time.Time) error {
	if !money.IsPositive(amount) {
		return dErrors.New(dErrors.CodeBadRequest, "deposit amount must be positive, got %s", amount)
	}
	a.DepositedAmount = a.DepositedAmount.Add(amount)
	if a.Status == StatusActive && a.DepositedAmount.GreaterThanOrEqual(a.TotalAmount) {
		a.Status = StatusFunded
	}
	return nil
}

// RequestRelease appends a new release request. Only a FUNDED account accepts
// requests; once a partial release happens the request window is closed and
// further disbursements go through administrative release.
func (a *Account) RequestRelease(requestID id.RequestID, amount decimal.Decimal, requestedBy id.PartyID, reason string, now time.Time) error {
	if a.Status != StatusFunded {
		return dErrors.New(dErrors.CodeInvalidState,
			"escrow account %s is %s; release can only be requested while FUNDED", a.Number, a.Status)
	}
	if !money.IsPositive(amount) {
		return dErrors.New(dErrors.CodeBadRequest, "release amount must be positive, got %s", amount)
	}
	a.ReleaseRequests = append(a.ReleaseRequests, ReleaseApproval{
		ID:          requestID,
		Amount:      amount,
		Reason:      reason,
		RequestedBy: requestedBy,
		RequestedAt: now,
	})
	return nil
}

// findRequest returns the request with the given id, or nil.
func (a *Account) findRequest(requestID id.RequestID) *ReleaseApproval {
	for i := range a.ReleaseRequests {
		if a.ReleaseRequests[i].ID == requestID {
			return &a.ReleaseRequests[i]
		}
	}
	return nil
}

// resolveRole maps an identity onto the buyer or seller role. Identities
// matching neither party are rejected: a release decision must be
// attributable to a transacting party.
func (a *Account) resolveRole(party id.PartyID) (PartyRole, error) {
	switch party {
	case a.BuyerID:
		return RoleBuyer, nil
	case a.SellerID:
		return RoleSeller, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest,
			"identity %s is neither buyer nor seller on escrow account %s", party, a.Number)
	}
}

// Approve records a party's decision on a release request. When the second
// approval lands the release executes immediately, paying the seller; an
// executed request ignores further approval changes so re-approving can never
// re-trigger the release.
func (a *Account) Approve(requestID id.RequestID, approvedBy id.PartyID, approved bool, now time.Time) (allApproved bool, executedNow bool, err error) {
	req := a.findRequest(requestID)
	if req == nil {
		return false, false, dErrors.New(dErrors.CodeNotFound,
			"release request %s not found on escrow account %s", requestID, a.Number)
	}
	role, err := a.resolveRole(approvedBy)
	if err != nil {
		return false, false, err
	}
	if req.Executed {
		return true, false, nil
	}

	switch role {
	case RoleBuyer:
		req.BuyerApproved = approved
		if approved {
			req.BuyerApprovedAt = &now
		} else {
			req.BuyerApprovedAt = nil
		}
	case RoleSeller:
		req.SellerApproved = approved
		if approved {
			req.SellerApprovedAt = &now
		} else {
			req.SellerApprovedAt = nil
		}
	}

	allApproved = req.BuyerApproved && req.SellerApproved
	if !allApproved {
		return false, false, nil
	}

	if err := a.Release(req.Amount, a.SellerID, now); err != nil {
		return true, false, err
	}
	req.Executed = true
	req.ExecutedAt = &now
	req.Recipient = a.SellerID
	return true, true, nil
}

// Release pays funds out of escrow, capped by the available balance. A
// partial release moves the account to PARTIAL_RELEASE; releasing the full
// remaining balance completes and closes the account.
func (a *Account) Release(amount decimal.Decimal, recipient id.PartyID, now time.Time) error {
	if a.Status != StatusFunded && a.Status != StatusPartialRelease {
		return dErrors.New(dErrors.CodeInvalidState,
			"escrow account %s is %s; funds can only be released from a funded account", a.Number, a.Status)
	}
	if !money.IsPositive(amount) {
		return dErrors.New(dErrors.CodeBadRequest, "release amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(a.Available()) {
		return dErrors.New(dErrors.CodeInvalidState,
			"release amount %s exceeds available balance %s on escrow account %s",
			amount, a.Available(), a.Number)
	}
	a.ReleasedAmount = a.ReleasedAmount.Add(amount)
	if a.ReleasedAmount.LessThan(a.DepositedAmount) {
		a.Status = StatusPartialRelease
	} else {
		a.Status = StatusCompleted
		a.ClosedAt = &now
	}
	return nil
}

// Cancel closes the account without fund movement; reversal of deposits is
// an external concern. Terminal states cannot be cancelled.
func (a *Account) Cancel(now time.Time) error {
	if a.Status == StatusCompleted || a.Status == StatusCancelled {
		return dErrors.New(dErrors.CodeInvalidState,
			"escrow account %s is %s and cannot be cancelled", a.Number, a.Status)
	}
	a.Status = StatusCancelled
	a.ClosedAt = &now
	return nil
}

// FulfillCondition marks a named condition fulfilled. Idempotent: fulfilling
// a fulfilled condition keeps the original timestamp.
func (a *Account) FulfillCondition(name string, now time.Time) error {
	for i := range a.Conditions {
		if a.Conditions[i].Name == name {
			if !a.Conditions[i].Fulfilled {
				a.Conditions[i].Fulfilled = true
				a.Conditions[i].FulfilledAt = &now
			}
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound,
		"condition %q not found on escrow account %s", name, a.Number)
}
