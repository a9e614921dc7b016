package escrow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
)

var testTime = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	return NewAccount(
		"ESC-2025-000042", "prop-1", "buyer-1", "seller-1", "agent-1",
		decimal.NewFromInt(1_000_000),
		"Emirates NBD", "1234567890", "AE070331234567890123456",
		testTime,
	)
}

func TestNewAccount(t *testing.T) {
	acc := newTestAccount(t)

	assert.Equal(t, StatusActive, acc.Status)
	assert.True(t, acc.DepositedAmount.IsZero())
	assert.True(t, acc.ReleasedAmount.IsZero())
	assert.Nil(t, acc.ClosedAt)
	assert.Empty(t, acc.ReleaseRequests)

	require.Len(t, acc.Conditions, 3)
	names := []string{acc.Conditions[0].Name, acc.Conditions[1].Name, acc.Conditions[2].Name}
	assert.Equal(t, []string{ConditionTitleDeedTransfer, ConditionNOC, ConditionHandover}, names)
	for _, c := range acc.Conditions {
		assert.False(t, c.Fulfilled)
	}
}

func TestDeposit(t *testing.T) {
	t.Run("accumulates and promotes to FUNDED at target", func(t *testing.T) {
		acc := newTestAccount(t)

		require.NoError(t, acc.Deposit(decimal.NewFromInt(600_000), testTime))
		assert.Equal(t, StatusActive, acc.Status)
		assert.True(t, acc.DepositedAmount.Equal(decimal.NewFromInt(600_000)))

		require.NoError(t, acc.Deposit(decimal.NewFromInt(400_000), testTime))
		assert.Equal(t, StatusFunded, acc.Status)
		assert.True(t, acc.DepositedAmount.Equal(decimal.NewFromInt(1_000_000)))
		assert.True(t, acc.Available().Equal(decimal.NewFromInt(1_000_000)))
	})

	t.Run("overfunding is accepted and does not re-transition", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))
		require.Equal(t, StatusFunded, acc.Status)

		require.NoError(t, acc.Deposit(decimal.NewFromInt(50_000), testTime))
		assert.Equal(t, StatusFunded, acc.Status)
		assert.True(t, acc.DepositedAmount.Equal(decimal.NewFromInt(1_050_000)))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		acc := newTestAccount(t)
		err := acc.Deposit(decimal.Zero, testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		err = acc.Deposit(decimal.NewFromInt(-10), testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		assert.True(t, acc.DepositedAmount.IsZero())
	})
}

func TestRequestRelease(t *testing.T) {
	t.Run("only from FUNDED", func(t *testing.T) {
		acc := newTestAccount(t)
		err := acc.RequestRelease("req-1", decimal.NewFromInt(100), "buyer-1", "handover", testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidState))
		assert.Empty(t, acc.ReleaseRequests)
	})

	t.Run("appends pending request", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))

		require.NoError(t, acc.RequestRelease("req-1", decimal.NewFromInt(1_000_000), "buyer-1", "handover complete", testTime))
		require.Len(t, acc.ReleaseRequests, 1)
		req := acc.ReleaseRequests[0]
		assert.Equal(t, id.RequestID("req-1"), req.ID)
		assert.False(t, req.BuyerApproved)
		assert.False(t, req.SellerApproved)
		assert.False(t, req.Executed)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))
		err := acc.RequestRelease("req-1", decimal.Zero, "buyer-1", "", testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func TestApprove(t *testing.T) {
	setup := func(t *testing.T, amount int64) *Account {
		t.Helper()
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))
		require.NoError(t, acc.RequestRelease("req-1", decimal.NewFromInt(amount), "buyer-1", "handover", testTime))
		return acc
	}

	t.Run("second approval executes, paying the seller", func(t *testing.T) {
		acc := setup(t, 1_000_000)

		all, executed, err := acc.Approve("req-1", "buyer-1", true, testTime)
		require.NoError(t, err)
		assert.False(t, all)
		assert.False(t, executed)
		assert.Equal(t, StatusFunded, acc.Status)

		all, executed, err = acc.Approve("req-1", "seller-1", true, testTime)
		require.NoError(t, err)
		assert.True(t, all)
		assert.True(t, executed)

		assert.Equal(t, StatusCompleted, acc.Status)
		assert.True(t, acc.ReleasedAmount.Equal(decimal.NewFromInt(1_000_000)))
		require.NotNil(t, acc.ClosedAt)

		req := acc.ReleaseRequests[0]
		assert.True(t, req.Executed)
		assert.Equal(t, id.PartyID("seller-1"), req.Recipient)
	})

	t.Run("partial amount moves to PARTIAL_RELEASE", func(t *testing.T) {
		acc := setup(t, 400_000)

		_, _, err := acc.Approve("req-1", "buyer-1", true, testTime)
		require.NoError(t, err)
		_, executed, err := acc.Approve("req-1", "seller-1", true, testTime)
		require.NoError(t, err)
		require.True(t, executed)

		assert.Equal(t, StatusPartialRelease, acc.Status)
		assert.True(t, acc.Available().Equal(decimal.NewFromInt(600_000)))
		assert.Nil(t, acc.ClosedAt)
	})

	t.Run("re-approving an executed request never re-releases", func(t *testing.T) {
		acc := setup(t, 400_000)
		_, _, err := acc.Approve("req-1", "buyer-1", true, testTime)
		require.NoError(t, err)
		_, _, err = acc.Approve("req-1", "seller-1", true, testTime)
		require.NoError(t, err)
		released := acc.ReleasedAmount

		all, executed, err := acc.Approve("req-1", "buyer-1", true, testTime)
		require.NoError(t, err)
		assert.True(t, all)
		assert.False(t, executed)
		assert.True(t, acc.ReleasedAmount.Equal(released))
	})

	t.Run("approval can be withdrawn before execution", func(t *testing.T) {
		acc := setup(t, 400_000)
		_, _, err := acc.Approve("req-1", "buyer-1", true, testTime)
		require.NoError(t, err)
		_, _, err = acc.Approve("req-1", "buyer-1", false, testTime)
		require.NoError(t, err)

		all, executed, err := acc.Approve("req-1", "seller-1", true, testTime)
		require.NoError(t, err)
		assert.False(t, all)
		assert.False(t, executed)
		assert.True(t, acc.ReleasedAmount.IsZero())
	})

	t.Run("unrelated identity is rejected without recording a decision", func(t *testing.T) {
		acc := setup(t, 400_000)
		_, _, err := acc.Approve("req-1", "stranger", true, testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		req := acc.ReleaseRequests[0]
		assert.False(t, req.BuyerApproved)
		assert.False(t, req.SellerApproved)
	})

	t.Run("unknown request id", func(t *testing.T) {
		acc := setup(t, 400_000)
		_, _, err := acc.Approve("missing", "buyer-1", true, testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestRelease(t *testing.T) {
	t.Run("over-release leaves the account unchanged", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))

		err := acc.Release(decimal.NewFromInt(1_000_001), "seller-1", testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidState))
		assert.Equal(t, StatusFunded, acc.Status)
		assert.True(t, acc.ReleasedAmount.IsZero())
	})

	t.Run("sequence of partial releases completes the account", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))

		require.NoError(t, acc.Release(decimal.NewFromInt(300_000), "seller-1", testTime))
		assert.Equal(t, StatusPartialRelease, acc.Status)

		require.NoError(t, acc.Release(decimal.NewFromInt(700_000), "seller-1", testTime))
		assert.Equal(t, StatusCompleted, acc.Status)
		assert.True(t, acc.Available().IsZero())
		assert.NotNil(t, acc.ClosedAt)
	})

	t.Run("not allowed while ACTIVE", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(500_000), testTime))
		err := acc.Release(decimal.NewFromInt(100), "seller-1", testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidState))
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancels an active account", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Cancel(testTime))
		assert.Equal(t, StatusCancelled, acc.Status)
		assert.NotNil(t, acc.ClosedAt)
	})

	t.Run("completed account cannot be cancelled", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))
		require.NoError(t, acc.Release(decimal.NewFromInt(1_000_000), "seller-1", testTime))
		require.Equal(t, StatusCompleted, acc.Status)

		err := acc.Cancel(testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidState))
		assert.Equal(t, StatusCompleted, acc.Status)
	})

	t.Run("cancel is not idempotent", func(t *testing.T) {
		acc := newTestAccount(t)
		require.NoError(t, acc.Cancel(testTime))
		err := acc.Cancel(testTime)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidState))
	})
}

func TestFulfillCondition(t *testing.T) {
	acc := newTestAccount(t)

	require.NoError(t, acc.FulfillCondition(ConditionNOC, testTime))
	var noc *Condition
	for i := range acc.Conditions {
		if acc.Conditions[i].Name == ConditionNOC {
			noc = &acc.Conditions[i]
		}
	}
	require.NotNil(t, noc)
	assert.True(t, noc.Fulfilled)
	require.NotNil(t, noc.FulfilledAt)
	first := *noc.FulfilledAt

	// Idempotent: the original timestamp survives.
	later := testTime.Add(time.Hour)
	require.NoError(t, acc.FulfillCondition(ConditionNOC, later))
	assert.Equal(t, first, *noc.FulfilledAt)

	err := acc.FulfillCondition("unknown", testTime)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestClone(t *testing.T) {
	acc := newTestAccount(t)
	require.NoError(t, acc.Deposit(decimal.NewFromInt(1_000_000), testTime))
	require.NoError(t, acc.RequestRelease("req-1", decimal.NewFromInt(100), "buyer-1", "", testTime))

	clone := acc.Clone()
	clone.Conditions[0].Fulfilled = true
	clone.ReleaseRequests[0].BuyerApproved = true
	clone.Status = StatusCancelled

	assert.False(t, acc.Conditions[0].Fulfilled)
	assert.False(t, acc.ReleaseRequests[0].BuyerApproved)
	assert.Equal(t, StatusFunded, acc.Status)
}
