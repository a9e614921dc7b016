package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amanah/pkg/money"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"}, // half rounds up
		{"10.004", "10"},
		{"10.004", "10.00"},
		{"-1.005", "-1.01"},
		{"0", "0"},
		{"123.456789", "123.46"},
	}
	for _, tc := range cases {
		in, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		want, err := decimal.NewFromString(tc.want)
		require.NoError(t, err)
		assert.True(t, money.Round2(in).Equal(want), "round2(%s) = %s, want %s", tc.in, money.Round2(in), tc.want)
	}
}

func TestInstallmentAmount(t *testing.T) {
	t.Run("even division", func(t *testing.T) {
		total := decimal.NewFromInt(120_000)
		down := decimal.NewFromInt(20_000)
		got := money.InstallmentAmount(total, down, 10)
		assert.True(t, got.Equal(decimal.NewFromInt(10_000)), "got %s", got)
	})

	t.Run("uneven division rounds half-up", func(t *testing.T) {
		total := decimal.NewFromInt(100)
		down := decimal.Zero
		// 100/3 = 33.333... -> 33.33
		got := money.InstallmentAmount(total, down, 3)
		want, _ := decimal.NewFromString("33.33")
		assert.True(t, got.Equal(want), "got %s", got)
	})

	t.Run("rounding slack stays within a cent per installment", func(t *testing.T) {
		total, _ := decimal.NewFromString("999.99")
		down := decimal.Zero
		const count = 7
		per := money.InstallmentAmount(total, down, count)
		sum := per.Mul(decimal.NewFromInt(count))
		slack := sum.Sub(total).Abs()
		maxSlack, _ := decimal.NewFromString("0.07") // count * 0.01
		assert.True(t, slack.LessThanOrEqual(maxSlack), "slack %s exceeds %s", slack, maxSlack)
	})
}

func TestLateFee(t *testing.T) {
	amount := decimal.NewFromInt(10_000)
	fee := money.LateFee(amount)
	assert.True(t, fee.Equal(decimal.NewFromInt(200)), "got %s", fee)

	// No compounding: the fee is a pure function of the amount.
	assert.True(t, money.LateFee(amount).Equal(fee))

	odd, _ := decimal.NewFromString("33.33")
	// 33.33 * 0.02 = 0.6666 -> 0.67
	want, _ := decimal.NewFromString("0.67")
	assert.True(t, money.LateFee(odd).Equal(want), "got %s", money.LateFee(odd))
}

func TestIsPositive(t *testing.T) {
	assert.True(t, money.IsPositive(decimal.NewFromInt(1)))
	assert.False(t, money.IsPositive(decimal.Zero))
	assert.False(t, money.IsPositive(decimal.NewFromInt(-1)))
}

func TestParse(t *testing.T) {
	got, err := money.Parse("1234.56")
	require.NoError(t, err)
	want, _ := decimal.NewFromString("1234.56")
	assert.True(t, got.Equal(want))

	_, err = money.Parse("not-a-number")
	assert.Error(t, err)
}
