// Package service implements the escrow account engine: open, deposit,
// dual-party conditional release, administrative release, and cancellation.
// All mutations run inside the store's per-account serialization, so the
// balance invariant holds even under concurrent requests.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"amanah/internal/escrow"
	"amanah/internal/escrow/metrics"
	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/money"
	"amanah/pkg/platform/events"
	"amanah/pkg/requestcontext"
)

// accountNumberAttempts bounds retries on account-number collisions.
const accountNumberAttempts = 5

type Service struct {
	store     escrow.Store
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

func New(store escrow.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("escrow store is required")
	}
	svc := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func validateCreateParams(p escrow.CreateAccountParams) error {
	if !money.IsPositive(p.TotalAmount) {
		return dErrors.New(dErrors.CodeBadRequest, "total amount must be positive, got %s", p.TotalAmount)
	}
	if strings.TrimSpace(string(p.BuyerID)) == "" || strings.TrimSpace(string(p.SellerID)) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "buyer and seller ids are required")
	}
	if strings.TrimSpace(p.BankName) == "" || strings.TrimSpace(p.BankAccountNumber) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "bank name and bank account number are required")
	}
	return nil
}

// CreateAccount opens a new escrow account with the three standard
// conditions unfulfilled. Account-number collisions are retried with a fresh
// random suffix.
func (s *Service) CreateAccount(ctx context.Context, params escrow.CreateAccountParams) (*escrow.Account, error) {
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := id.NewAccountNumber(now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate account number")
		}
		account := escrow.NewAccount(number, params.PropertyID, params.BuyerID, params.SellerID,
			params.AgentID, params.TotalAmount, params.BankName, params.BankAccountNumber, params.IBAN, now)

		err = s.store.Create(ctx, account)
		if err == nil {
			s.metrics.IncAccountsOpened()
			s.logger.InfoContext(ctx, "escrow account opened",
				"account", account.Number,
				"total_amount", account.TotalAmount,
				"request_id", requestcontext.RequestID(ctx),
			)
			events.Emit(ctx, s.logger, s.publisher, events.EventEscrowOpened, account.Number.String(),
				"total_amount", account.TotalAmount.String(),
			)
			return account, nil
		}
		if !dErrors.Is(err, dErrors.CodeConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create escrow account")
		}
	}
	return nil, dErrors.New(dErrors.CodeInternal,
		"could not allocate a unique escrow account number after %d attempts", accountNumberAttempts)
}

// Deposit records funds received against the account. The caller guarantees
// the deposit is backed by a completed payment; the engine does not verify
// payments itself.
func (s *Service) Deposit(ctx context.Context, number id.AccountID, amount decimal.Decimal, paymentID id.PaymentID) (*escrow.Account, error) {
	now := requestcontext.Now(ctx)
	var funded bool
	account, err := s.store.Update(ctx, number, func(a *escrow.Account) error {
		before := a.Status
		if err := a.Deposit(amount, now); err != nil {
			return err
		}
		funded = before != escrow.StatusFunded && a.Status == escrow.StatusFunded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDeposits()
	s.logger.InfoContext(ctx, "escrow deposit recorded",
		"account", number,
		"amount", amount,
		"payment_id", paymentID,
		"deposited_amount", account.DepositedAmount,
		"status", account.Status,
	)
	if funded {
		events.Emit(ctx, s.logger, s.publisher, events.EventEscrowFunded, number.String(),
			"deposited_amount", account.DepositedAmount.String(),
		)
	}
	return account, nil
}

// RequestRelease appends a release request awaiting both parties' approval.
func (s *Service) RequestRelease(ctx context.Context, number id.AccountID, amount decimal.Decimal, requestedBy id.PartyID, reason string) (*escrow.Account, id.RequestID, error) {
	now := requestcontext.Now(ctx)
	requestID := id.NewRequestID()
	account, err := s.store.Update(ctx, number, func(a *escrow.Account) error {
		return a.RequestRelease(requestID, amount, requestedBy, reason, now)
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "escrow release requested",
		"account", number,
		"request", requestID,
		"amount", amount,
		"requested_by", requestedBy,
	)
	events.Emit(ctx, s.logger, s.publisher, events.EventReleaseRequested, number.String(),
		"request_id", requestID.String(),
		"amount", amount.String(),
	)
	return account, requestID, nil
}

// ApproveRelease records a buyer or seller decision on a release request.
// The second positive approval executes the release atomically within the
// same store update, paying the seller. Returns whether both approvals are
// currently in place.
func (s *Service) ApproveRelease(ctx context.Context, number id.AccountID, requestID id.RequestID, approvedBy id.PartyID, approved bool) (*escrow.Account, bool, error) {
	now := requestcontext.Now(ctx)
	var (
		allApproved bool
		executed    bool
	)
	account, err := s.store.Update(ctx, number, func(a *escrow.Account) error {
		var err error
		allApproved, executed, err = a.Approve(requestID, approvedBy, approved, now)
		return err
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidState) {
			s.metrics.IncReleaseRejected()
		}
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "escrow release approval recorded",
		"account", number,
		"request", requestID,
		"approved_by", approvedBy,
		"approved", approved,
		"all_approved", allApproved,
		"executed", executed,
	)
	if executed {
		s.recordRelease(ctx, account)
		events.Emit(ctx, s.logger, s.publisher, events.EventReleaseExecuted, number.String(),
			"request_id", requestID.String(),
			"recipient", account.SellerID.String(),
			"released_amount", account.ReleasedAmount.String(),
		)
	}
	return account, allApproved, nil
}

// Release disburses funds directly, outside the dual-approval flow. Used for
// administrative releases; the balance and state checks still apply.
func (s *Service) Release(ctx context.Context, number id.AccountID, amount decimal.Decimal, recipient id.PartyID) (*escrow.Account, error) {
	now := requestcontext.Now(ctx)
	account, err := s.store.Update(ctx, number, func(a *escrow.Account) error {
		return a.Release(amount, recipient, now)
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidState) {
			s.metrics.IncReleaseRejected()
		}
		return nil, err
	}

	s.recordRelease(ctx, account)
	s.logger.InfoContext(ctx, "escrow funds released",
		"account", number,
		"amount", amount,
		"recipient", recipient,
		"released_amount", account.ReleasedAmount,
		"status", account.Status,
	)
	events.Emit(ctx, s.logger, s.publisher, events.EventReleaseExecuted, number.String(),
		"recipient", recipient.String(),
		"amount", amount.String(),
	)
	return account, nil
}

// Cancel closes the account without moving funds.
func (s *Service) Cancel(ctx context.Context, number id.AccountID, reason string) (*escrow.Account, error) {
	now := requestcontext.Now(ctx)
	account, err := s.store.Update(ctx, number, func(a *escrow.Account) error {
		return a.Cancel(now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAccountsClosed("cancelled")
	s.logger.InfoContext(ctx, "escrow account cancelled",
		"account", number,
		"reason", reason,
	)
	events.Emit(ctx, s.logger, s.publisher, events.EventEscrowCancelled, number.String(),
		"reason", reason,
	)
	return account, nil
}

// FulfillCondition marks a named condition fulfilled. Informational only;
// release gating is the approval flow's job.
func (s *Service) FulfillCondition(ctx context.Context, number id.AccountID, name string) (*escrow.Account, error) {
	now := requestcontext.Now(ctx)
	return s.store.Update(ctx, number, func(a *escrow.Account) error {
		return a.FulfillCondition(name, now)
	})
}

// Get returns the current aggregate state.
func (s *Service) Get(ctx context.Context, number id.AccountID) (*escrow.Account, error) {
	return s.store.Get(ctx, number)
}

func (s *Service) recordRelease(ctx context.Context, account *escrow.Account) {
	s.metrics.IncReleasesExecuted()
	if account.Status == escrow.StatusCompleted {
		s.metrics.IncAccountsClosed("completed")
	}
}
