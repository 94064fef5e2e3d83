package tuition

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func ngn(amount float64) valueobject.Money {
	return valueobject.NewMoneyNGN(decimal.NewFromFloat(amount))
}

func testSession(t *testing.T) valueobject.Session {
	t.Helper()
	session, err := valueobject.ParseSession("2023/2024")
	require.NoError(t, err)
	return session
}

func createTestSummary(t *testing.T, amountDue, arrears float64) *PaymentSummary {
	t.Helper()
	arrearsResult := ArrearsResult{Amount: ngn(arrears), Source: ArrearsNone}
	if arrears > 0 {
		arrearsResult.Source = ArrearsFromPriorTerm
	}
	summary, err := NewPaymentSummary(
		uuid.New(),
		"JSS1A",
		testSession(t),
		valueobject.SecondTerm,
		ngn(amountDue),
		arrearsResult,
	)
	require.NoError(t, err)
	return summary
}

func assertSummaryInvariants(t *testing.T, s *PaymentSummary) {
	t.Helper()
	expectedBalance := s.TotalDue.Sub(s.TotalPaid)
	if expectedBalance.IsNegative() {
		expectedBalance = decimal.Zero
	}
	assert.True(t, s.Balance.Equal(expectedBalance), "balance must equal max(0, totalDue-totalPaid)")
	assert.True(t, s.TotalDue.Equal(s.AmountDue.Add(s.Arrears)), "totalDue must equal amountDue+arrears")
	assert.False(t, s.Balance.IsNegative(), "balance must never be negative")
}

// ============================================
// NewPaymentSummary Tests
// ============================================

func TestNewPaymentSummary(t *testing.T) {
	t.Run("creates summary with arrears folded into total due", func(t *testing.T) {
		s := createTestSummary(t, 25000, 10000)

		assert.True(t, s.AmountDue.Equal(decimal.NewFromInt(25000)))
		assert.True(t, s.Arrears.Equal(decimal.NewFromInt(10000)))
		assert.True(t, s.TotalDue.Equal(decimal.NewFromInt(35000)))
		assert.True(t, s.TotalPaid.IsZero())
		assert.True(t, s.Balance.Equal(decimal.NewFromInt(35000)))
		assert.Equal(t, StatusOwingWithArrears, s.Status)
		assert.Equal(t, ArrearsFromPriorTerm, s.ArrearsSource)
		assertSummaryInvariants(t, s)
	})

	t.Run("no arrears starts as owing", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)
		assert.Equal(t, StatusOwing, s.Status)
	})

	t.Run("rejects nil pupil", func(t *testing.T) {
		_, err := NewPaymentSummary(uuid.Nil, "JSS1A", testSession(t), valueobject.FirstTerm,
			ngn(100), ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsNone})
		assert.Error(t, err)
	})

	t.Run("rejects invalid term", func(t *testing.T) {
		_, err := NewPaymentSummary(uuid.New(), "JSS1A", testSession(t), valueobject.Term(9),
			ngn(100), ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsNone})
		assert.Error(t, err)
	})

	t.Run("rejects negative amount due", func(t *testing.T) {
		_, err := NewPaymentSummary(uuid.New(), "JSS1A", testSession(t), valueobject.FirstTerm,
			ngn(-100), ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsNone})
		assert.Error(t, err)
	})
}

func TestPaymentSummary_LedgerKey(t *testing.T) {
	s := createTestSummary(t, 50000, 0)

	key := s.LedgerKey()
	assert.Contains(t, key, s.PupilID.String())
	assert.Contains(t, key, "2023-2024")
	assert.Contains(t, key, "_2")
	assert.NotContains(t, key, "/")
	assert.Equal(t, LedgerKey(s.PupilID, s.Session, s.Term), key)
}

// ============================================
// ApplyPayment Tests
// ============================================

func TestPaymentSummary_ApplyPayment(t *testing.T) {
	now := time.Now()

	t.Run("partial payment with no arrears goes to current term", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)

		split, err := s.ApplyPayment(ngn(30000), now)
		require.NoError(t, err)

		assert.True(t, split.ArrearsPayment.IsZero())
		assert.True(t, split.CurrentTermPayment.Equal(decimal.NewFromInt(30000)))
		assert.True(t, split.BalanceAfter.Equal(decimal.NewFromInt(20000)))
		assert.Equal(t, StatusPartial, split.StatusAfter)
		assert.Equal(t, StatusPartial, s.Status)
		assert.Equal(t, 2, s.GetVersion())
		require.NotNil(t, s.LastPaymentAt)
		assert.Equal(t, now, *s.LastPaymentAt)
		assertSummaryInvariants(t, s)
	})

	t.Run("arrears are paid down before the current term", func(t *testing.T) {
		s := createTestSummary(t, 25000, 10000)

		split, err := s.ApplyPayment(ngn(15000), now)
		require.NoError(t, err)

		assert.True(t, split.ArrearsPayment.Equal(decimal.NewFromInt(10000)))
		assert.True(t, split.CurrentTermPayment.Equal(decimal.NewFromInt(5000)))
		assert.True(t, split.BalanceAfter.Equal(decimal.NewFromInt(20000)))
		assert.Equal(t, StatusPartial, split.StatusAfter)
		assertSummaryInvariants(t, s)
	})

	t.Run("payment smaller than arrears goes entirely to arrears", func(t *testing.T) {
		s := createTestSummary(t, 25000, 10000)

		split, err := s.ApplyPayment(ngn(4000), now)
		require.NoError(t, err)

		assert.True(t, split.ArrearsPayment.Equal(decimal.NewFromInt(4000)))
		assert.True(t, split.CurrentTermPayment.IsZero())
	})

	t.Run("exact settlement marks the account paid", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)

		split, err := s.ApplyPayment(ngn(50000), now)
		require.NoError(t, err)

		assert.True(t, split.BalanceAfter.IsZero())
		assert.Equal(t, StatusPaid, split.StatusAfter)
		assert.True(t, s.IsSettled())
		assertSummaryInvariants(t, s)
	})

	t.Run("rejects payment on a settled account with zero max", func(t *testing.T) {
		s := createTestSummary(t, 25000, 0)
		_, err := s.ApplyPayment(ngn(25000), now)
		require.NoError(t, err)

		_, err = s.ApplyPayment(ngn(1), now)
		require.Error(t, err)

		var overErr *OverpaymentError
		require.ErrorAs(t, err, &overErr)
		assert.True(t, overErr.MaxAllowed.IsZero())
		assert.True(t, overErr.Attempted.Equal(decimal.NewFromInt(1)))
	})

	t.Run("rejects overpayment with exact maximum and no state change", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)
		versionBefore := s.GetVersion()

		_, err := s.ApplyPayment(ngn(60000), now)
		require.Error(t, err)

		var overErr *OverpaymentError
		require.ErrorAs(t, err, &overErr)
		assert.True(t, overErr.MaxAllowed.Equal(decimal.NewFromInt(50000)))

		assert.True(t, s.TotalPaid.IsZero())
		assert.Equal(t, versionBefore, s.GetVersion())
		assert.Empty(t, s.GetDomainEvents())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)

		_, err := s.ApplyPayment(valueobject.ZeroNGN(), now)
		assert.Error(t, err)

		_, err = s.ApplyPayment(ngn(-10), now)
		assert.Error(t, err)
	})

	t.Run("raises a payment recorded event", func(t *testing.T) {
		s := createTestSummary(t, 50000, 0)

		_, err := s.ApplyPayment(ngn(10000), now)
		require.NoError(t, err)

		events := s.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "PaymentRecorded", events[0].EventType())
	})
}

func TestPaymentSummary_PaymentSequence(t *testing.T) {
	now := time.Now()

	t.Run("arrears cascade across consecutive payments", func(t *testing.T) {
		s := createTestSummary(t, 25000, 10000)

		first, err := s.ApplyPayment(ngn(6000), now)
		require.NoError(t, err)
		assert.True(t, first.ArrearsPayment.Equal(decimal.NewFromInt(6000)))
		assert.True(t, first.CurrentTermPayment.IsZero())

		// Only the 4000 of arrears still unpaid is taken from the second payment
		second, err := s.ApplyPayment(ngn(9000), now)
		require.NoError(t, err)
		assert.True(t, second.ArrearsPayment.Equal(decimal.NewFromInt(4000)))
		assert.True(t, second.CurrentTermPayment.Equal(decimal.NewFromInt(5000)))

		third, err := s.ApplyPayment(ngn(20000), now)
		require.NoError(t, err)
		assert.True(t, third.ArrearsPayment.IsZero())
		assert.True(t, third.CurrentTermPayment.Equal(decimal.NewFromInt(20000)))

		assert.True(t, s.IsSettled())
		assertSummaryInvariants(t, s)
	})

	t.Run("no payment sequence can exceed the total due", func(t *testing.T) {
		s := createTestSummary(t, 30000, 5000)
		paid := decimal.Zero

		for _, amount := range []float64{10000, 10000, 10000, 5000} {
			split, err := s.ApplyPayment(ngn(amount), now)
			require.NoError(t, err)
			paid = paid.Add(split.AmountPaid)
			assert.True(t, split.ArrearsPayment.Add(split.CurrentTermPayment).Equal(split.AmountPaid))
			assertSummaryInvariants(t, s)
		}

		assert.True(t, paid.Equal(s.TotalDue))

		_, err := s.ApplyPayment(ngn(0.01), now)
		assert.Error(t, err)
	})
}

func TestPaymentSummary_MaxPayable(t *testing.T) {
	s := createTestSummary(t, 50000, 0)
	assert.True(t, s.MaxPayable().Equal(decimal.NewFromInt(50000)))

	_, err := s.ApplyPayment(ngn(30000), time.Now())
	require.NoError(t, err)
	assert.True(t, s.MaxPayable().Equal(decimal.NewFromInt(20000)))
}

func TestOverpaymentError_Message(t *testing.T) {
	err := &OverpaymentError{
		Attempted:  decimal.NewFromInt(30000),
		MaxAllowed: decimal.NewFromInt(20000),
	}
	assert.Contains(t, err.Error(), "30000.00")
	assert.Contains(t, err.Error(), "20000.00")
	assert.Contains(t, err.Error(), "maximum allowed")
}
