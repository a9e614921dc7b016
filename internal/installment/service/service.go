// Package service implements the installment plan engine: schedule
// generation, payment recording, overdue handling, and due-soon queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"amanah/internal/installment"
	"amanah/internal/installment/cache"
	"amanah/internal/installment/metrics"
	id "amanah/pkg/domain"
	"amanah/pkg/platform/events"
	"amanah/pkg/requestcontext"
)

// DefaultDaysAhead is the horizon for upcoming-installment queries when the
// caller does not specify one.
const DefaultDaysAhead = 30

type Service struct {
	store     installment.Store
	cache     cache.UpcomingCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithUpcomingCache enables the read cache for Upcoming queries.
func WithUpcomingCache(c cache.UpcomingCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func New(store installment.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("installment store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreatePlan generates and persists a new amortization schedule.
func (s *Service) CreatePlan(ctx context.Context, params installment.CreatePlanParams) (*installment.Plan, error) {
	now := requestcontext.Now(ctx)
	plan, err := installment.NewPlan(id.NewPlanID(), params, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("create installment plan: %w", err)
	}

	s.metrics.IncPlansCreated()
	s.logger.InfoContext(ctx, "installment plan created",
		"plan", plan.ID,
		"lead", plan.LeadID,
		"installments", plan.InstallmentCount,
		"installment_amount", plan.InstallmentAmount,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.invalidateUpcoming(ctx, plan.LeadID)
	return plan, nil
}

// RecordPayment marks an installment paid and completes the plan when it was
// the last one outstanding.
func (s *Service) RecordPayment(ctx context.Context, planID id.PlanID, number int, paymentID id.PaymentID) (*installment.Plan, error) {
	now := requestcontext.Now(ctx)
	var completed bool
	plan, err := s.store.Update(ctx, planID, func(p *installment.Plan) error {
		before := p.Status
		if err := p.RecordPayment(number, paymentID, now); err != nil {
			return err
		}
		completed = before != installment.PlanCompleted && p.Status == installment.PlanCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInstallmentsPaid()
	s.logger.InfoContext(ctx, "installment payment recorded",
		"plan", planID,
		"installment", number,
		"payment_id", paymentID,
		"plan_status", plan.Status,
	)
	events.Emit(ctx, s.logger, s.publisher, events.EventInstallmentPaid, planID.String(),
		"installment", strconv.Itoa(number),
		"payment_id", string(paymentID),
	)
	if completed {
		s.metrics.IncPlansCompleted()
		events.Emit(ctx, s.logger, s.publisher, events.EventPlanCompleted, planID.String())
	}
	s.invalidateUpcoming(ctx, plan.LeadID)
	return plan, nil
}

// HandleMissed applies the overdue rule to a single installment. Safe to
// call repeatedly: only a pending, past-due installment transitions, and the
// late fee is computed once.
func (s *Service) HandleMissed(ctx context.Context, planID id.PlanID, number int) (*installment.Plan, error) {
	now := requestcontext.Now(ctx)
	var changed bool
	plan, err := s.store.Update(ctx, planID, func(p *installment.Plan) error {
		var err error
		changed, err = p.MarkMissed(number, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.AddInstallmentsOverdue(1)
		s.logger.WarnContext(ctx, "installment overdue",
			"plan", planID,
			"installment", number,
		)
		events.Emit(ctx, s.logger, s.publisher, events.EventInstallmentOverdue, planID.String(),
			"installment", strconv.Itoa(number),
		)
		s.invalidateUpcoming(ctx, plan.LeadID)
	}
	return plan, nil
}

// Upcoming returns the lead's pending installments due within daysAhead days
// (default 30), flattened across plans and sorted by due date. The result is
// recomputed from plan state on each call; the optional cache only bounds
// recomputation, never correctness beyond its TTL.
func (s *Service) Upcoming(ctx context.Context, leadID id.LeadID, daysAhead int) ([]installment.UpcomingInstallment, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, leadID, daysAhead)
		if err == nil {
			s.metrics.IncCacheHit()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "upcoming cache read failed", "lead", leadID, "error", err.Error())
		}
		s.metrics.IncCacheMiss()
	}

	now := requestcontext.Now(ctx)
	plans, err := s.store.ListActiveByLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("list plans for lead %s: %w", leadID, err)
	}

	upcoming := make([]installment.UpcomingInstallment, 0)
	for _, plan := range plans {
		upcoming = append(upcoming, plan.UpcomingWithin(now, daysAhead)...)
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(upcoming[j].DueDate)
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, leadID, daysAhead, upcoming); err != nil {
			s.logger.WarnContext(ctx, "upcoming cache write failed", "lead", leadID, "error", err.Error())
		}
	}
	return upcoming, nil
}

// Get returns the current plan state.
func (s *Service) Get(ctx context.Context, planID id.PlanID) (*installment.Plan, error) {
	return s.store.Get(ctx, planID)
}

// SweepOverdue applies the overdue rule across every active plan and returns
// how many installments transitioned.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	plans, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active plans: %w", err)
	}

	total := 0
	for _, candidate := range plans {
		if !hasOverdueCandidate(candidate, now) {
			continue
		}
		var changed int
		plan, err := s.store.Update(ctx, candidate.ID, func(p *installment.Plan) error {
			for i := range p.Installments {
				transitioned, err := p.MarkMissed(p.Installments[i].Number, now)
				if err != nil {
					return err
				}
				if transitioned {
					changed++
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("sweep plan %s: %w", candidate.ID, err)
		}
		if changed > 0 {
			total += changed
			s.metrics.AddInstallmentsOverdue(changed)
			events.Emit(ctx, s.logger, s.publisher, events.EventInstallmentOverdue, plan.ID.String(),
				"count", strconv.Itoa(changed),
			)
			s.invalidateUpcoming(ctx, plan.LeadID)
		}
	}
	return total, nil
}

// RunSweeper applies SweepOverdue on a fixed interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			marked, err := s.SweepOverdue(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "overdue sweep failed", "error", err.Error())
				continue
			}
			if marked > 0 {
				s.logger.InfoContext(ctx, "overdue sweep finished", "marked", marked)
			}
		}
	}
}

func hasOverdueCandidate(plan *installment.Plan, now time.Time) bool {
	for _, inst := range plan.Installments {
		if inst.Status == installment.InstallmentPending && inst.DueDate.Before(now) {
			return true
		}
	}
	return false
}

func (s *Service) invalidateUpcoming(ctx context.Context, leadID id.LeadID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, leadID); err != nil {
		s.logger.WarnContext(ctx, "upcoming cache invalidation failed", "lead", leadID, "error", err.Error())
	}
}
