package installment

import (
	"time"

	"github.com/shopspring/decimal"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/money"
)

// PlanStatus is the lifecycle state of an installment plan.
type PlanStatus string

const (
	// PlanActive marks a plan with outstanding installments.
	PlanActive PlanStatus = "ACTIVE"
	// PlanCompleted marks a plan whose every installment is paid; terminal.
	PlanCompleted PlanStatus = "COMPLETED"
	// PlanDefaulted is reserved for external default handling.
	PlanDefaulted PlanStatus = "DEFAULTED"
	// PlanCancelled marks an explicitly cancelled plan; terminal.
	PlanCancelled PlanStatus = "CANCELLED"
)

// InstallmentStatus is the state of one scheduled payment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
	InstallmentWaived  InstallmentStatus = "waived"
)

// Frequency is the spacing between consecutive due dates.
type Frequency string

const (
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
)

// MonthsIncrement returns the calendar-month step between due dates.
func (f Frequency) MonthsIncrement() (int, error) {
	switch f {
	case FrequencyMonthly:
		return 1, nil
	case FrequencyQuarterly:
		return 3, nil
	case FrequencySemiAnnual:
		return 6, nil
	case FrequencyAnnual:
		return 12, nil
	default:
		return 0, dErrors.New(dErrors.CodeBadRequest, "unknown frequency %q", string(f))
	}
}

// Installment is one scheduled payment within a plan.
type Installment struct {
	Number    int               `json:"number"`
	Amount    decimal.Decimal   `json:"amount"`
	DueDate   time.Time         `json:"due_date"`
	Status    InstallmentStatus `json:"status"`
	PaidDate  *time.Time        `json:"paid_date,omitempty"`
	PaymentID id.PaymentID      `json:"payment_id,omitempty"`
	LateFee   decimal.Decimal   `json:"late_fee"`
}

// Plan is the installment aggregate. The engine is its sole writer; the
// installments collection is stored as a sub-document and rewritten with the
// parent row on every mutation.
type Plan struct {
	ID         id.PlanID     `json:"id"`
	PropertyID id.PropertyID `json:"property_id"`
	LeadID     id.LeadID     `json:"lead_id"`

	TotalAmount       decimal.Decimal `json:"total_amount"`
	DownPaymentAmount decimal.Decimal `json:"down_payment_amount"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`

	InstallmentCount int       `json:"installment_count"`
	Frequency        Frequency `json:"frequency"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`

	Installments []Installment `json:"installments"`

	Status    PlanStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Clone deep-copies the aggregate so stores can hand out mutation-safe copies.
func (p *Plan) Clone() *Plan {
	out := *p
	out.Installments = make([]Installment, len(p.Installments))
	for i, inst := range p.Installments {
		if inst.PaidDate != nil {
			t := *inst.PaidDate
			inst.PaidDate = &t
		}
		out.Installments[i] = inst
	}
	return &out
}

// findInstallment returns the installment with the given 1-based number, or nil.
func (p *Plan) findInstallment(number int) *Installment {
	for i := range p.Installments {
		if p.Installments[i].Number == number {
			return &p.Installments[i]
		}
	}
	return nil
}

// RecordPayment marks an installment paid. Paying an already-paid
// installment re-stamps the payment date and id rather than rejecting; the
// ledger upstream deduplicates payments. The plan completes exactly when the
// last unpaid installment is recorded.
func (p *Plan) RecordPayment(number int, paymentID id.PaymentID, now time.Time) error {
	inst := p.findInstallment(number)
	if inst == nil {
		return dErrors.New(dErrors.CodeNotFound,
			"installment %d not found on plan %s", number, p.ID)
	}
	inst.Status = InstallmentPaid
	inst.PaidDate = &now
	inst.PaymentID = paymentID

	if p.allPaid() {
		p.Status = PlanCompleted
	}
	return nil
}

func (p *Plan) allPaid() bool {
	for i := range p.Installments {
		if p.Installments[i].Status != InstallmentPaid {
			return false
		}
	}
	return true
}

// MarkMissed applies the overdue rule to one installment: only a pending
// installment past its due date becomes overdue, charged a flat late fee.
// Any other state is a safe no-op, so repeated sweeps never compound fees.
// Returns whether the installment transitioned.
func (p *Plan) MarkMissed(number int, now time.Time) (bool, error) {
	inst := p.findInstallment(number)
	if inst == nil {
		return false, dErrors.New(dErrors.CodeNotFound,
			"installment %d not found on plan %s", number, p.ID)
	}
	if inst.Status != InstallmentPending || !inst.DueDate.Before(now) {
		return false, nil
	}
	inst.Status = InstallmentOverdue
	inst.LateFee = money.LateFee(inst.Amount)
	return true, nil
}

// UpcomingInstallment is a due-soon installment flattened out of its plan.
type UpcomingInstallment struct {
	PlanID       id.PlanID       `json:"plan_id"`
	PropertyID   id.PropertyID   `json:"property_id"`
	Number       int             `json:"number"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	DaysUntilDue int             `json:"days_until_due"`
}
