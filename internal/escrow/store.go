package escrow

import (
	"context"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
)

// ErrDuplicateNumber signals an account-number collision on Create. The
// service retries with a freshly generated number.
var ErrDuplicateNumber = dErrors.New(dErrors.CodeConflict, "escrow account number already exists")

// Store persists escrow aggregates. Implementations must serialize Update
// calls per account so read-check-write sequences cannot interleave; two
// concurrent releases must observe each other's writes.
type Store interface {
	// Create inserts a new account, failing with ErrDuplicateNumber when the
	// account number is taken.
	Create(ctx context.Context, account *Account) error

	// Get returns a copy of the account, or a NotFound error.
	Get(ctx context.Context, number id.AccountID) (*Account, error)

	// Update applies mutate to the current aggregate under per-account
	// serialization. When mutate returns an error nothing is persisted and
	// the error propagates unchanged.
	Update(ctx context.Context, number id.AccountID, mutate func(*Account) error) (*Account, error)
}

// notFound builds the canonical missing-account error.
func notFound(number id.AccountID) error {
	return dErrors.New(dErrors.CodeNotFound, "escrow account %s not found", number)
}
