package installment

import (
	"time"

	"github.com/shopspring/decimal"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/money"
)

// CreatePlanParams carries the inputs for generating an amortization schedule.
type CreatePlanParams struct {
	PropertyID        id.PropertyID
	LeadID            id.LeadID
	TotalAmount       decimal.Decimal
	DownPaymentAmount decimal.Decimal
	InstallmentCount  int
	Frequency         Frequency
	StartDate         time.Time
}

func (p CreatePlanParams) validate() error {
	if p.InstallmentCount < 1 {
		return dErrors.New(dErrors.CodeBadRequest, "installment count must be at least 1, got %d", p.InstallmentCount)
	}
	if money.IsPositive(p.DownPaymentAmount.Neg()) {
		return dErrors.New(dErrors.CodeBadRequest, "down payment must not be negative, got %s", p.DownPaymentAmount)
	}
	if p.TotalAmount.LessThan(p.DownPaymentAmount) {
		return dErrors.New(dErrors.CodeBadRequest,
			"total amount %s must cover the down payment %s", p.TotalAmount, p.DownPaymentAmount)
	}
	if p.StartDate.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "start date is required")
	}
	return nil
}

// NewPlan generates the full amortization schedule. Every installment
// carries the same rounded amount; the division remainder is not
// redistributed. Due dates advance by calendar months from the start date
// (dueDate(n) = startDate + (n-1)*increment months), so month-end overflow
// follows standard calendar rollover.
func NewPlan(planID id.PlanID, params CreatePlanParams, now time.Time) (*Plan, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	monthsIncrement, err := params.Frequency.MonthsIncrement()
	if err != nil {
		return nil, err
	}

	amount := money.InstallmentAmount(params.TotalAmount, params.DownPaymentAmount, params.InstallmentCount)
	installments := make([]Installment, params.InstallmentCount)
	for i := 0; i < params.InstallmentCount; i++ {
		installments[i] = Installment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: params.StartDate.AddDate(0, i*monthsIncrement, 0),
			Status:  InstallmentPending,
			LateFee: decimal.Zero,
		}
	}

	return &Plan{
		ID:                planID,
		PropertyID:        params.PropertyID,
		LeadID:            params.LeadID,
		TotalAmount:       params.TotalAmount,
		DownPaymentAmount: params.DownPaymentAmount,
		InstallmentAmount: amount,
		InstallmentCount:  params.InstallmentCount,
		Frequency:         params.Frequency,
		StartDate:         params.StartDate,
		EndDate:           installments[len(installments)-1].DueDate,
		Installments:      installments,
		Status:            PlanActive,
		CreatedAt:         now,
	}, nil
}

// UpcomingWithin selects this plan's pending installments due between the
// start of today and daysAhead days out, annotated with days-until-due
// (ceiling of the day difference).
func (p *Plan) UpcomingWithin(now time.Time, daysAhead int) []UpcomingInstallment {
	today := startOfDay(now)
	horizon := today.AddDate(0, 0, daysAhead)

	var upcoming []UpcomingInstallment
	for _, inst := range p.Installments {
		if inst.Status != InstallmentPending {
			continue
		}
		if inst.DueDate.Before(today) || inst.DueDate.After(horizon) {
			continue
		}
		upcoming = append(upcoming, UpcomingInstallment{
			PlanID:       p.ID,
			PropertyID:   p.PropertyID,
			Number:       inst.Number,
			Amount:       inst.Amount,
			DueDate:      inst.DueDate,
			DaysUntilDue: daysUntil(today, inst.DueDate),
		})
	}
	return upcoming
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// daysUntil is the ceiling of the time from today to due, in days.
func daysUntil(today, due time.Time) int {
	diff := due.Sub(today)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}
